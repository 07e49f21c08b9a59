package realtime

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one authenticated websocket session. The identity claims were
// vetted by the handshake authenticator and are trusted for the connection's
// lifetime; no handler re-validates them against storage.
type Conn struct {
	ID        string
	UserID    string
	UserEmail string

	WS     *websocket.Conn
	Remote net.Addr

	Send      chan []byte // per-connection outbound queue, single writer goroutine
	CreatedAt time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id, userID, userEmail string, ws *websocket.Conn, queueSize int) *Conn {
	c := &Conn{
		ID:        id,
		UserID:    userID,
		UserEmail: userEmail,
		WS:        ws,
		Send:      make(chan []byte, queueSize),
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	if ws != nil {
		c.Remote = ws.RemoteAddr()
	}
	return c
}

// queue enqueues payload for the write pump without blocking. A full queue
// means a slow client; the frame is dropped (best-effort layer).
func (c *Conn) queue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Conn) Done() <-chan struct{} { return c.done }
