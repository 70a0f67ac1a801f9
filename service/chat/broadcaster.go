package chat

import (
	"encoding/json"
	"time"

	"ChitChat/logger"
)

// Broadcaster fans one payload out to every member of a room. Delivery is
// best effort: each send runs under its own short deadline, a failed peer
// never blocks or fails delivery to the rest, and failed peers are pruned
// from the registry after the sweep.
type Broadcaster struct {
	reg         *Registry
	sendTimeout time.Duration
}

func NewBroadcaster(reg *Registry, sendTimeout time.Duration) *Broadcaster {
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Broadcaster{reg: reg, sendTimeout: sendTimeout}
}

// Broadcast serializes payload once and delivers it to a snapshot of the
// room's members, skipping except when non-nil. Partial delivery failure is
// not an error for the caller; membership self-heals instead.
func (b *Broadcaster) Broadcast(chatID int64, payload any, except *Conn) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("[broadcast] marshal payload chat=%d err=%v", chatID, err)
		return
	}

	members := b.reg.Members(chatID)
	if len(members) == 0 {
		return
	}

	var dead []*Conn
	for _, c := range members {
		if c == except {
			continue
		}
		if err := c.Send(data, b.sendTimeout); err != nil {
			logger.Warnf("[broadcast] send failed chat=%d conn=%s user=%d err=%v", chatID, c.ID, c.UserID, err)
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		b.reg.Leave(chatID, c)
		closeQuiet(c.ws)
	}
	if len(dead) > 0 {
		logger.Infof("[broadcast] pruned %d dead connections chat=%d", len(dead), chatID)
	}
}
