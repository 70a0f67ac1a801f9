package chat

// TypingRouter relays typing-state frames to the rest of the room. Events
// are never persisted and never retried; the originating connection is
// excluded from delivery.
type TypingRouter struct {
	bc *Broadcaster
}

func NewTypingRouter(bc *Broadcaster) *TypingRouter {
	return &TypingRouter{bc: bc}
}

func (t *TypingRouter) Relay(c *Conn, isTyping bool) {
	ev := BuildTypingEvent(c.ChatID, c.UserID, c.Name, isTyping)
	t.bc.Broadcast(c.ChatID, ev, c)
}
