package realtime

import (
	"fmt"
)

// Handler processes one named inbound event for one connection.
type Handler interface {
	Event() string
	Handle(ctx *Context, env *Envelope, c *Conn) error
}

// Context carries the server into handlers.
type Context struct {
	S *Server
}

// Dispatcher routes inbound envelopes to per-event handlers.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, env *Envelope, c *Conn) error {
	h, ok := d.handlers[env.Event]
	if !ok {
		return fmt.Errorf("no handler for event=%q", env.Event)
	}
	return h.Handle(ctx, env, c)
}
