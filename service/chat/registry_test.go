package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(chatID, userID int64) *Conn {
	return NewConn(newFakeTransport(), chatID, &User{ID: userID, Email: "u@test", FullName: "U"})
}

func TestRegistryJoinLeave(t *testing.T) {
	reg := NewRegistry()
	a := newTestConn(1, 10)
	b := newTestConn(1, 11)

	reg.Join(1, a)
	reg.Join(1, b)
	reg.Join(1, b) // idempotent
	require.Len(t, reg.Members(1), 2)

	reg.Leave(1, a)
	require.Len(t, reg.Members(1), 1)
	assert.Same(t, b, reg.Members(1)[0])

	reg.Leave(1, b)
	assert.Nil(t, reg.Members(1))
	assert.Equal(t, 0, reg.Rooms(), "empty room entries must be removed")
}

func TestRegistryLeaveIdempotent(t *testing.T) {
	reg := NewRegistry()
	a := newTestConn(7, 10)

	reg.Join(7, a)
	reg.Leave(7, a)
	reg.Leave(7, a) // second leave is a no-op
	reg.Leave(9, a) // unknown room is a no-op

	assert.Equal(t, 0, reg.Rooms())
}

func TestRegistryMembersIsSnapshot(t *testing.T) {
	reg := NewRegistry()
	a := newTestConn(1, 10)
	b := newTestConn(1, 11)
	reg.Join(1, a)
	reg.Join(1, b)

	snap := reg.Members(1)
	reg.Leave(1, a)
	reg.Leave(1, b)

	assert.Len(t, snap, 2, "snapshot must not reflect later mutations")
}

func TestRegistryConcurrentMutation(t *testing.T) {
	reg := NewRegistry()
	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c := newTestConn(int64(w%4), int64(w*1000+i))
				reg.Join(c.ChatID, c)
				_ = reg.Members(c.ChatID)
				reg.Leave(c.ChatID, c)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Rooms(), "net effect of join+leave pairs is empty")
}
