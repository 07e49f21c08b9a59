package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ConnManager indexes live connections by connection id and by user id.
// A single user may hold multiple connections (one per tab/device), each
// tracked separately.
type ConnManager struct {
	mu     sync.RWMutex
	byID   map[string]*Conn            // conn_id -> conn
	byUser map[string]map[string]*Conn // user_id -> conn_id -> conn
	gwID   string
}

func NewConnManager(gwID string) *ConnManager {
	return &ConnManager{
		byID:   make(map[string]*Conn),
		byUser: make(map[string]map[string]*Conn),
		gwID:   gwID,
	}
}

func (m *ConnManager) GwID() string { return m.gwID }

func (m *ConnManager) Add(c *Conn) {
	if c == nil || c.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	mm := m.byUser[c.UserID]
	if mm == nil {
		mm = make(map[string]*Conn)
		m.byUser[c.UserID] = mm
	}
	mm[c.ID] = c
}

func (m *ConnManager) Remove(connID string) {
	if connID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[connID]
	if !ok {
		return
	}
	delete(m.byID, connID)
	if mm := m.byUser[c.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
}

func (m *ConnManager) Get(connID string) (*Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[connID]
	return c, ok
}

// ListByUser returns every connection the user currently holds.
func (m *ConnManager) ListByUser(userID string) []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close tears down every connection. Used on process shutdown.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.byID))
	for _, c := range m.byID {
		conns = append(conns, c)
	}
	m.byID = make(map[string]*Conn)
	m.byUser = make(map[string]map[string]*Conn)
	m.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
		closeQuiet(c.WS)
	}
}

func closeQuiet(ws *websocket.Conn) {
	if ws != nil {
		_ = ws.Close()
	}
}
