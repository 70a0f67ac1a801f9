package chat

import "sync"

// Registry tracks which live connections belong to which room. It is the one
// structure mutated from many goroutines: joins and leaves from sessions,
// prunes from the broadcaster. A single mutex guards the whole map; member
// reads hand out snapshots so broadcast iteration never races a teardown.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[int64]map[*Conn]struct{})}
}

// Join adds conn to the room's member set, creating it if absent.
// Idempotent when the conn is already present.
func (r *Registry) Join(chatID int64, c *Conn) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.rooms[chatID]
	if set == nil {
		set = make(map[*Conn]struct{})
		r.rooms[chatID] = set
	}
	set[c] = struct{}{}
}

// Leave removes conn from the room, deleting the room entry once empty.
// No-op when either is absent, so teardown paths may race safely.
func (r *Registry) Leave(chatID int64, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[chatID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.rooms, chatID)
	}
}

// Members returns a copy of the room's current member set. Never a live
// view: callers iterate while concurrent joins/leaves proceed.
func (r *Registry) Members(chatID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[chatID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Rooms reports how many rooms currently have members.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
