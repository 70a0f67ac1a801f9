package chat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChitChat/tools/errs"
)

type fakeAuth struct {
	userID int64
	email  string
	err    error
}

func (f *fakeAuth) VerifyCredential(string) (int64, string, error) {
	return f.userID, f.email, f.err
}

type fakePresence struct {
	mu      sync.Mutex
	online  []int64
	offline []int64
}

func (f *fakePresence) Online(_ context.Context, _, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = append(f.online, userID)
}

func (f *fakePresence) Offline(_ context.Context, _, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = append(f.offline, userID)
}

func closeCode(t *testing.T, ws *fakeTransport) int {
	t.Helper()
	ws.mu.Lock()
	defer ws.mu.Unlock()
	require.NotEmpty(t, ws.controls, "expected a close control frame")
	frame := ws.controls[len(ws.controls)-1]
	require.GreaterOrEqual(t, len(frame), 2)
	return int(binary.BigEndian.Uint16(frame[:2]))
}

func serverFixture(store *fakeStore, auth *fakeAuth, presence PresenceTracker) *Server {
	reg := NewRegistry()
	bc := NewBroadcaster(reg, time.Second)
	return NewServer(reg, bc, NewAuthGate(auth, store), presence)
}

func TestAdmitRejectsBadCredential(t *testing.T) {
	store := newFakeStore(TypeGroup)
	srv := serverFixture(store, &fakeAuth{err: errors.New("signature invalid")}, nil)

	ws := newFakeTransport()
	_, err := srv.Admit(context.Background(), ws, "bad", 42)
	require.Error(t, err)
	assert.Equal(t, CloseAuthRejected, closeCode(t, ws))
	assert.True(t, ws.isClosed())
	assert.Equal(t, 0, srv.Registry().Rooms())
}

func TestAdmitRejectsUnknownUser(t *testing.T) {
	store := newFakeStore(TypeGroup) // user 5 never seeded
	srv := serverFixture(store, &fakeAuth{userID: 5, email: "ghost@test"}, nil)

	ws := newFakeTransport()
	_, err := srv.Admit(context.Background(), ws, "tok", 42)
	require.Error(t, err)
	assert.Equal(t, CloseAuthRejected, closeCode(t, ws))
}

func TestAdmitRejectsNonParticipant(t *testing.T) {
	store := newFakeStore(TypeGroup)
	store.users[5] = &User{ID: 5, Email: "e@test", FullName: "E"}
	srv := serverFixture(store, &fakeAuth{userID: 5, email: "e@test"}, nil)

	ws := newFakeTransport()
	_, err := srv.Admit(context.Background(), ws, "tok", 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotParticipant)
	assert.Equal(t, CloseNotParticipant, closeCode(t, ws))
	assert.Equal(t, 0, srv.Registry().Rooms())
}

func TestAdmitRejectsOnStoreFailure(t *testing.T) {
	store := newFakeStore(TypeGroup)
	store.users[5] = &User{ID: 5, Email: "e@test", FullName: "E"}
	store.failParticipant = true
	srv := serverFixture(store, &fakeAuth{userID: 5, email: "e@test"}, nil)

	ws := newFakeTransport()
	_, err := srv.Admit(context.Background(), ws, "tok", 42)
	require.Error(t, err)
	assert.Equal(t, CloseInternalError, closeCode(t, ws))
}

func TestAdmitRejectsEmailMismatch(t *testing.T) {
	store := newFakeStore(TypeGroup)
	store.users[5] = &User{ID: 5, Email: "real@test", FullName: "E"}
	srv := serverFixture(store, &fakeAuth{userID: 5, email: "other@test"}, nil)

	ws := newFakeTransport()
	_, err := srv.Admit(context.Background(), ws, "tok", 42)
	require.Error(t, err)
	assert.Equal(t, CloseAuthRejected, closeCode(t, ws))
}

func TestSessionTypingRelayAndTeardown(t *testing.T) {
	store := newFakeStore(TypeGroup)
	store.users[1] = &User{ID: 1, Email: "a@test", FullName: "Ada"}
	store.users[2] = &User{ID: 2, Email: "b@test", FullName: "Bob"}
	store.participants[1] = true
	store.participants[2] = true

	presence := &fakePresence{}
	srv := serverFixture(store, &fakeAuth{userID: 1, email: "a@test"}, presence)

	// peer already in the room to observe the relay
	peerWS := newFakeTransport()
	peer := NewConn(peerWS, 42, store.users[2])
	srv.Registry().Join(42, peer)

	// scripted inbound: typing on, garbage, unknown type, typing off; then EOF
	ws := newFakeTransport(
		[]byte(`{"type":"typing","isTyping":true}`),
		[]byte(`not json at all`),
		[]byte(`{"type":"presence"}`),
		[]byte(`{"type":"typing","isTyping":false}`),
	)
	sess, err := srv.Admit(context.Background(), ws, "tok", 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, presence.online)

	sess.Run(context.Background())

	// two typing events reached the peer, none echoed to the origin
	require.Equal(t, 2, peerWS.sentCount())
	assert.Equal(t, 0, ws.sentCount())

	var ev TypingEvent
	require.NoError(t, json.Unmarshal(peerWS.lastWrite(), &ev))
	assert.Equal(t, "typing_indicator", ev.Type)
	assert.Equal(t, int64(42), ev.ChatID)
	assert.Equal(t, int64(1), ev.User.ID)
	assert.Equal(t, "Ada", ev.User.Name)
	assert.False(t, ev.IsTyping)

	// teardown: deregistered, presence cleared, transport closed
	members := srv.Registry().Members(42)
	require.Len(t, members, 1)
	assert.Same(t, peer, members[0])
	assert.Equal(t, []int64{1}, presence.offline)
	assert.True(t, ws.isClosed())
}

func TestSessionTeardownIdempotentWithPrune(t *testing.T) {
	store := newFakeStore(TypeGroup)
	store.users[1] = &User{ID: 1, Email: "a@test", FullName: "Ada"}
	store.participants[1] = true
	presence := &fakePresence{}
	srv := serverFixture(store, &fakeAuth{userID: 1, email: "a@test"}, presence)

	ws := newFakeTransport()
	sess, err := srv.Admit(context.Background(), ws, "tok", 42)
	require.NoError(t, err)

	// broadcaster prunes the conn before the read loop notices
	ws.mu.Lock()
	ws.failSend = true
	ws.mu.Unlock()
	srv.Broadcaster().Broadcast(42, map[string]string{"k": "v"}, nil)
	assert.Equal(t, 0, srv.Registry().Rooms())

	sess.Run(context.Background()) // immediate read error, teardown again

	assert.Equal(t, 0, srv.Registry().Rooms())
	presence.mu.Lock()
	defer presence.mu.Unlock()
	assert.Equal(t, []int64{1}, presence.offline, "offline recorded exactly once")
}
