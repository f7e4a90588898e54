package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

// Transport sends text frames to one peer.
type Transport interface {
	// Send queues text for delivery. It must not block.
	Send(text string) error
	// Close terminates the connection. It must be idempotent.
	Close() error
}

// FrameHandler consumes inbound text frames of a connection.
type FrameHandler interface {
	HandleFrame(c *Conn, text string)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(c *Conn, text string)

// HandleFrame calls f(c, text).
func (f FrameHandlerFunc) HandleFrame(c *Conn, text string) { f(c, text) }

// Conn is one registered connection.
type Conn struct {
	id        string
	created   time.Time
	remote    string
	mobile    bool
	identity  *domain.Identity
	transport Transport
	hub       *Hub

	in      atomic.Int64
	out     atomic.Int64
	closed  atomic.Bool
	handler atomic.Value // handlerBox

	values sync.Map
}

type handlerBox struct{ h FrameHandler }

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Created returns when the connection was opened.
func (c *Conn) Created() time.Time { return c.created }

// RemoteAddr returns the peer address reported by the transport.
func (c *Conn) RemoteAddr() string { return c.remote }

// Mobile reports whether the client connected with the _MOBILE_ prefix.
func (c *Conn) Mobile() bool { return c.mobile }

// Identity returns the bound identity, nil for anonymous connections.
func (c *Conn) Identity() *domain.Identity { return c.identity }

// LoggedIn reports whether the connection is authenticated.
func (c *Conn) LoggedIn() bool { return c.identity != nil }

// UserID returns the authenticated user id or "".
func (c *Conn) UserID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.UserID
}

// In returns the number of frames received.
func (c *Conn) In() int64 { return c.in.Load() }

// Out returns the number of frames sent.
func (c *Conn) Out() int64 { return c.out.Load() }

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool { return c.closed.Load() }

// SetHandler replaces the frame handler of this connection.
func (c *Conn) SetHandler(h FrameHandler) {
	c.handler.Store(handlerBox{h})
}

// Handler returns the frame handler of this connection, if any.
func (c *Conn) Handler() FrameHandler {
	if b, ok := c.handler.Load().(handlerBox); ok {
		return b.h
	}
	return nil
}

// SetValue attaches subsystem data to the connection.
func (c *Conn) SetValue(key string, v any) { c.values.Store(key, v) }

// Value returns data attached with SetValue.
func (c *Conn) Value(key string) (any, bool) { return c.values.Load(key) }

// Send delivers one text frame.
func (c *Conn) Send(text string) error {
	if c.closed.Load() || c.transport == nil {
		return domain.ErrConnClosed.WithDetails(c.id)
	}
	if err := c.transport.Send(text); err != nil {
		return err
	}
	c.out.Add(1)
	if c.hub != nil {
		c.hub.metrics.MessagesOut.Inc()
	}
	return nil
}

// Close unregisters the connection and closes its transport.
func (c *Conn) Close() {
	if c.hub != nil {
		c.hub.Close(c)
		return
	}
	if c.closed.CompareAndSwap(false, true) && c.transport != nil {
		c.transport.Close()
	}
}
