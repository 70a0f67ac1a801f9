package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ChitChat/tools/ids"
)

// Transport is the slice of *websocket.Conn the realtime layer touches.
// Narrowed to an interface so fan-out and session tests can run against
// fakes instead of live sockets.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Close codes sent on rejected admission or fatal errors. Clients can
// distinguish bad credentials, membership refusal and server faults.
const (
	CloseAuthRejected   = websocket.ClosePolicyViolation   // 1008
	CloseNotParticipant = 4003                             // policy-specific
	CloseInternalError  = websocket.CloseInternalServerErr // 1011
)

// Conn is one live websocket bound to an authenticated user and a single
// room. Writes are serialized through its own mutex; the registry holds
// references but never owns the lifecycle.
type Conn struct {
	ID     string
	ChatID int64
	UserID int64
	Name   string // display name, used in typing payloads

	mu sync.Mutex
	ws Transport
}

func NewConn(ws Transport, chatID int64, user *User) *Conn {
	name := user.FullName
	if name == "" {
		name = user.Email
	}
	return &Conn{
		ID:     ids.GenerateString(),
		ChatID: chatID,
		UserID: user.ID,
		Name:   name,
		ws:     ws,
	}
}

// Send writes one text frame under a bounded deadline so a broken peer
// cannot stall the caller indefinitely.
func (c *Conn) Send(data []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// CloseWithCode sends a close frame with the given policy code, then tears
// down the transport.
func (c *Conn) CloseWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	closeQuiet(c.ws)
}

func closeQuiet(t Transport) {
	if t != nil {
		_ = t.Close()
	}
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}
