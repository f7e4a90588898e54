package hub

import (
	"context"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
	"github.com/yndnr/wsmesh-go/pkg/cmap"
)

// Request describes an incoming connection attempt.
type Request struct {
	Origin     string
	RawQuery   string
	RemoteAddr string
}

// Limiter throttles inbound frames per connection id.
type Limiter interface {
	Allow(key string) bool
	Delete(key string)
}

// Options configures a Hub.
type Options struct {
	// Name tags log records and metrics ("clients", "peers").
	Name string

	// TrustedOrigin is a regular expression the Origin header must match
	// in full. Empty trusts every origin. A missing Origin is accepted.
	TrustedOrigin string

	// Authenticator verifies the credential part of the query. Nil makes
	// every connection anonymous.
	Authenticator domain.Authenticator

	// SubscribeHook decides whether a new connection is kept. Nil accepts.
	// The connection has no transport yet, so Send fails with
	// ErrConnClosed inside the hook.
	SubscribeHook func(c *Conn) bool

	// Handler is installed on every new connection.
	Handler FrameHandler

	// Limiter throttles inbound frames. Nil disables throttling.
	Limiter Limiter

	// SendQueue is the per-connection outbound queue length.
	SendQueue int

	// PingInterval is the websocket keepalive period.
	PingInterval time.Duration

	// MaxMessageSize bounds inbound frames.
	MaxMessageSize int64

	Metrics *metric.Registry
	Logger  logger.Logger
}

// Hub is the connection registry.
type Hub struct {
	name    string
	opts    Options
	conns   *cmap.Map[string, *Conn]
	origin  atomic.Pointer[regexp.Regexp]
	metrics *metric.Registry
	logger  logger.Logger

	visits   atomic.Int64
	logins   atomic.Int64
	loggedIn atomic.Int64

	mu      sync.RWMutex
	onOpen  []func(*Conn)
	onClose []func(*Conn)
}

// New creates a hub. It fails only on an invalid TrustedOrigin pattern.
func New(opts Options) (*Hub, error) {
	if opts.Name == "" {
		opts.Name = "hub"
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 50 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 << 10
	}
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry()
	}
	h := &Hub{
		name:    opts.Name,
		opts:    opts,
		conns:   cmap.New[string, *Conn](),
		metrics: opts.Metrics,
		logger:  logger.Component(opts.Logger, opts.Name),
	}
	if err := h.SetTrustedOrigin(opts.TrustedOrigin); err != nil {
		return nil, err
	}
	return h, nil
}

// SetTrustedOrigin replaces the trusted origin pattern at runtime.
func (h *Hub) SetTrustedOrigin(pattern string) error {
	if pattern == "" {
		h.origin.Store(nil)
		return nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return domain.ErrInvalidArgument.WithDetails("trusted origin").WithCause(err)
	}
	h.origin.Store(re)
	return nil
}

// OriginTrusted reports whether a connection from origin may be opened.
func (h *Hub) OriginTrusted(origin string) bool {
	re := h.origin.Load()
	return origin == "" || re == nil || re.MatchString(origin)
}

// OnOpen registers a callback run for every accepted connection.
func (h *Hub) OnOpen(fn func(*Conn)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOpen = append(h.onOpen, fn)
}

// OnClose registers a callback run for every closed connection.
func (h *Hub) OnClose(fn func(*Conn)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClose = append(h.onClose, fn)
}

// Open admits a connection attempt over t and registers it. A rejected
// attempt closes t. Failed authentication is not a rejection: the
// connection continues anonymous.
func (h *Hub) Open(ctx context.Context, t Transport, req Request) (*Conn, error) {
	c, err := h.Admit(ctx, req)
	if err != nil {
		t.Close()
		return nil, err
	}
	h.Register(c, t)
	return c, nil
}

// Admit runs the origin check, authentication and the subscribe hook for
// a connection attempt without registering anything. The returned Conn
// has no transport yet; pass it to Register.
func (h *Hub) Admit(ctx context.Context, req Request) (*Conn, error) {
	if !h.OriginTrusted(req.Origin) {
		h.logger.Info("connection rejected, untrusted origin", "origin", req.Origin, "remote", req.RemoteAddr)
		h.metrics.Rejected.WithLabelValues("origin").Inc()
		return nil, domain.ErrConnUntrustedOrigin.WithDetails(req.Origin)
	}

	mobile, auth := ParseQuery(req.RawQuery)
	c := &Conn{
		id:      ulid.Make().String(),
		created: time.Now(),
		remote:  req.RemoteAddr,
		mobile:  mobile,
		hub:     h,
	}
	if h.opts.Handler != nil {
		c.SetHandler(h.opts.Handler)
	}
	if auth != "" && h.opts.Authenticator != nil {
		id, err := h.opts.Authenticator.Authenticate(ctx, auth)
		if err != nil {
			h.logger.Info("authentication failed, continuing anonymous",
				"conn", c.id, "error", err, "auth", auth)
		} else {
			c.identity = id
		}
	}

	if h.opts.SubscribeHook != nil && !h.opts.SubscribeHook(c) {
		h.logger.Info("connection rejected by subscribe hook", "conn", c.id, "user", c.UserID())
		h.metrics.Rejected.WithLabelValues("hook").Inc()
		c.closed.Store(true)
		return nil, domain.ErrConnRejected.WithDetails(c.id)
	}
	return c, nil
}

// Register attaches t to an admitted connection, adds it to the registry
// and runs the open callbacks.
func (h *Hub) Register(c *Conn, t Transport) {
	c.transport = t
	h.conns.Compute(c.id, func(_ *Conn, _ bool) (*Conn, bool) {
		h.visits.Add(1)
		if c.LoggedIn() {
			h.logins.Add(1)
			h.loggedIn.Add(1)
		}
		return c, true
	})
	h.metrics.Visits.Inc()
	if c.LoggedIn() {
		h.metrics.Logins.Inc()
	}
	h.logger.Debug("connection opened", "conn", c.id, "user", c.UserID(), "mobile", c.mobile)

	h.mu.RLock()
	callbacks := slices.Clone(h.onOpen)
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(c)
	}
}

// Message dispatches one inbound frame to the connection's handler.
func (h *Hub) Message(c *Conn, text string) {
	if c.closed.Load() {
		return
	}
	c.in.Add(1)
	h.metrics.MessagesIn.Inc()

	if h.opts.Limiter != nil && !h.opts.Limiter.Allow(c.id) {
		h.metrics.RateLimited.Inc()
		h.logger.Debug("frame dropped by rate limit", "conn", c.id)
		return
	}
	handler := c.Handler()
	if handler == nil {
		h.logger.Debug("no frame handler, frame ignored", "conn", c.id)
		return
	}
	handler.HandleFrame(c, text)
}

// Close unregisters c and closes its transport. Closing a connection that
// is not registered is a no-op; it reports whether c was removed.
func (h *Hub) Close(c *Conn) bool {
	removed := false
	h.conns.Compute(c.id, func(old *Conn, exists bool) (*Conn, bool) {
		if exists && old == c {
			removed = true
			if c.LoggedIn() {
				h.loggedIn.Add(-1)
			}
		}
		return old, exists && old != c
	})
	if !removed {
		h.logger.Debug("close of unknown connection ignored", "conn", c.id)
		return false
	}

	c.closed.Store(true)
	if err := c.transport.Close(); err != nil {
		h.logger.Debug("transport close", "conn", c.id, "error", err)
	}
	if h.opts.Limiter != nil {
		h.opts.Limiter.Delete(c.id)
	}
	h.logger.Debug("connection closed", "conn", c.id, "user", c.UserID(), "in", c.In(), "out", c.Out())

	h.mu.RLock()
	callbacks := slices.Clone(h.onClose)
	h.mu.RUnlock()
	for _, fn := range callbacks {
		fn(c)
	}
	return true
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	for _, c := range h.conns.Values() {
		h.Close(c)
	}
}

// Get returns the connection with the given id.
func (h *Hub) Get(id string) (*Conn, bool) {
	return h.conns.Get(id)
}

// Count returns the number of open connections.
func (h *Hub) Count() int { return h.conns.Count() }

// Visits returns the number of accepted connections since start.
func (h *Hub) Visits() int64 { return h.visits.Load() }

// Logins returns the number of accepted authenticated connections.
func (h *Hub) Logins() int64 { return h.logins.Load() }

// LoggedIn returns the number of open authenticated connections.
func (h *Hub) LoggedIn() int64 { return h.loggedIn.Load() }

// Conns returns a snapshot of the open connections.
func (h *Hub) Conns() []*Conn { return h.conns.Values() }

// Post sends text(c) to every connection matching pred (nil matches all).
// An empty text skips the recipient. A failure on one recipient does not
// affect the others. It returns the number of frames delivered.
func (h *Hub) Post(text func(*Conn) string, pred func(*Conn) bool) int {
	sent := 0
	for _, c := range h.conns.Values() {
		if pred != nil && !pred(c) {
			continue
		}
		msg := text(c)
		if msg == "" {
			continue
		}
		if err := c.Send(msg); err != nil {
			h.metrics.DeliveryFailure.Inc()
			h.logger.Warn("delivery failed", "conn", c.id, "user", c.UserID(), "error", err)
			continue
		}
		sent++
	}
	return sent
}

// PostText sends the same text to every connection matching pred.
func (h *Hub) PostText(text string, pred func(*Conn) bool) int {
	return h.Post(func(*Conn) string { return text }, pred)
}

// LoginUsers returns the sorted distinct user ids of open authenticated
// connections.
func (h *Hub) LoginUsers() []string {
	var users []string
	for _, c := range h.conns.Values() {
		if c.LoggedIn() {
			users = append(users, c.identity.UserID)
		}
	}
	slices.Sort(users)
	return slices.Compact(users)
}

// HasLoginUser reports whether userID has an open authenticated
// connection.
func (h *Hub) HasLoginUser(userID string) bool {
	found := false
	h.conns.Range(func(_ string, c *Conn) bool {
		found = c.LoggedIn() && c.UserID() == userID
		return !found
	})
	return found
}

// Stats is a snapshot of the registry counters.
type Stats struct {
	Clients  int   `json:"clients"`
	Visits   int64 `json:"visits"`
	Logins   int64 `json:"logins"`
	LoggedIn int64 `json:"logged_in"`
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:  h.Count(),
		Visits:   h.Visits(),
		Logins:   h.Logins(),
		LoggedIn: h.LoggedIn(),
	}
}

// RegisterMetrics exposes live connection gauges under the hub name.
func (h *Hub) RegisterMetrics(reg *metric.Registry) {
	reg.GaugeFunc(h.name, "connections", "Open connections", func() float64 { return float64(h.Count()) })
	reg.GaugeFunc(h.name, "logged_in", "Open authenticated connections", func() float64 { return float64(h.LoggedIn()) })
}
