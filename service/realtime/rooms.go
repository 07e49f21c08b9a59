package realtime

import (
	"sync"
)

// Rooms maps a channel id to the set of connections subscribed to it.
// It is an explicitly owned object injected into the Server at construction;
// two servers in one test run get two isolated registries.
type Rooms struct {
	mu        sync.RWMutex
	byChannel map[string]map[string]*Conn    // channel -> conn_id -> conn
	byConn    map[string]map[string]struct{} // conn_id -> set of channels
}

func NewRooms() *Rooms {
	return &Rooms{
		byChannel: make(map[string]map[string]*Conn),
		byConn:    make(map[string]map[string]struct{}),
	}
}

// Join adds c to the room; joining twice is a no-op.
func (r *Rooms) Join(c *Conn, channelID string) {
	if c == nil || channelID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byChannel[channelID]
	if m == nil {
		m = make(map[string]*Conn)
		r.byChannel[channelID] = m
	}
	m[c.ID] = c

	s := r.byConn[c.ID]
	if s == nil {
		s = make(map[string]struct{})
		r.byConn[c.ID] = s
	}
	s[channelID] = struct{}{}
}

// Leave removes c from the room; leaving a room it never joined is a no-op.
func (r *Rooms) Leave(c *Conn, channelID string) {
	if c == nil || channelID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c.ID, channelID)
}

// LeaveAll removes the connection from every room it joined. Called on
// transport disconnect.
func (r *Rooms) LeaveAll(c *Conn) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for channelID := range r.byConn[c.ID] {
		r.leaveLocked(c.ID, channelID)
	}
}

func (r *Rooms) leaveLocked(connID, channelID string) {
	if m := r.byChannel[channelID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byChannel, channelID)
		}
	}
	if s := r.byConn[connID]; s != nil {
		delete(s, channelID)
		if len(s) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// Members returns the connections in the room, excluding exceptConnID when
// non-empty.
func (r *Rooms) Members(channelID, exceptConnID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byChannel[channelID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(m))
	for id, c := range m {
		if id == exceptConnID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Contains reports whether the connection is currently in the room.
func (r *Rooms) Contains(connID, channelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byChannel[channelID]
	if m == nil {
		return false
	}
	_, ok := m[connID]
	return ok
}

// Count returns the number of connections in the room.
func (r *Rooms) Count(channelID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel[channelID])
}

// Channels lists the rooms the connection has joined.
func (r *Rooms) Channels(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.byConn[connID]
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for ch := range s {
		out = append(out, ch)
	}
	return out
}
