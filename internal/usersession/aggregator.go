package usersession

import (
	"slices"
	"sync"
	"time"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/hub"
	"github.com/yndnr/wsmesh-go/internal/infra/scheduler"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
)

// ConnValueKey is the hub.Conn value holding the connection's *Session.
const ConnValueKey = "usersession"

// Config holds the session timings.
type Config struct {
	// Grace is the delay between the last close and the logout.
	Grace time.Duration `koanf:"grace"`
	// Expire is how long a logged out session is kept.
	Expire time.Duration `koanf:"expire"`
	// SweepInterval is the period of the expiry sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		Grace:         30 * time.Second,
		Expire:        7 * 24 * time.Hour,
		SweepInterval: 10 * time.Second,
	}
}

// Options configures an Aggregator.
type Options struct {
	Config    Config
	Scheduler scheduler.Scheduler
	// Factory creates the application data of a new session.
	Factory func(userID string) any
	// Cleanup is called when an expired session is removed.
	Cleanup func(*Session)
	Metrics *metric.Registry
	Logger  logger.Logger
}

// Aggregator tracks user sessions.
type Aggregator struct {
	cfg     Config
	sched   scheduler.Scheduler
	factory func(string) any
	cleanup func(*Session)
	metrics *metric.Registry
	logger  logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	queue    []expiry
	onLogin  []func(string)
	onLogout []func(string)
	sweep    scheduler.Task
}

// New creates an aggregator. Zero timings take their defaults.
func New(opts Options) *Aggregator {
	def := DefaultConfig()
	if opts.Config.Grace <= 0 {
		opts.Config.Grace = def.Grace
	}
	if opts.Config.Expire <= 0 {
		opts.Config.Expire = def.Expire
	}
	if opts.Config.SweepInterval <= 0 {
		opts.Config.SweepInterval = def.SweepInterval
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry()
	}
	return &Aggregator{
		cfg:      opts.Config,
		sched:    opts.Scheduler,
		factory:  opts.Factory,
		cleanup:  opts.Cleanup,
		metrics:  opts.Metrics,
		logger:   logger.Component(opts.Logger, "usersession"),
		sessions: make(map[string]*Session),
	}
}

// Start begins the periodic expiry sweep.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sweep != nil {
		return
	}
	a.sweep = a.sched.Every(a.cfg.SweepInterval, a.Sweep)
	for _, s := range a.sessions {
		if s.state == Closing && s.closing == nil {
			a.armClosing(s)
		}
	}
	a.logger.Info("session aggregator started",
		"grace", a.cfg.Grace, "expire", a.cfg.Expire, "sweep_interval", a.cfg.SweepInterval)
}

// Stop ends the sweep and cancels pending closing timers. Closing sessions
// stay closing; Start arms their timers again.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sweep != nil {
		a.sweep.Stop()
		a.sweep = nil
	}
	for _, s := range a.sessions {
		if s.closing != nil {
			s.closing.Stop()
			s.closing = nil
			s.gen++
		}
	}
}

// OnLogin registers a listener for user logins.
func (a *Aggregator) OnLogin(fn func(userID string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogin = append(a.onLogin, fn)
}

// OnLogout registers a listener for user logouts.
func (a *Aggregator) OnLogout(fn func(userID string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogout = append(a.onLogout, fn)
}

// Attach opens a session for every authenticated connection of h and
// closes it when the connection goes away.
func (a *Aggregator) Attach(h *hub.Hub) {
	h.OnOpen(func(c *hub.Conn) {
		if c.LoggedIn() {
			c.SetValue(ConnValueKey, a.Open(c.Identity()))
		}
	})
	h.OnClose(func(c *hub.Conn) {
		if c.LoggedIn() {
			a.Close(c.Identity())
		}
	})
}

// Open counts one more connection for the identity's user and returns the
// session.
func (a *Aggregator) Open(id *domain.Identity) *Session {
	s, login, listeners := a.open(id.UserID)
	if login {
		a.metrics.SessionLogins.Inc()
		a.logger.Info("user login", "user", s.UserID)
		notify(listeners, s.UserID)
	}
	return s
}

// open reports whether the connection logs the user in, and the login
// listeners to call when it does.
func (a *Aggregator) open(userID string) (*Session, bool, []func(string)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[userID]
	if !ok {
		s = &Session{UserID: userID}
		if a.factory != nil {
			s.Data = a.factory(userID)
		}
		a.sessions[userID] = s
	}

	s.count++
	if s.count != 1 {
		return s, false, nil
	}
	login := false
	switch s.state {
	case Closing:
		if s.closing != nil {
			s.closing.Stop()
			s.closing = nil
		}
		a.logger.Debug("reconnect within grace period", "user", s.UserID)
	default:
		login = true
	}
	s.state = Active
	s.gen++
	if !login {
		return s, false, nil
	}
	return s, true, slices.Clone(a.onLogin)
}

// Close counts one connection less for the identity's user. At zero the
// closing timer starts.
func (a *Aggregator) Close(id *domain.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[id.UserID]
	if !ok || s.state != Active || s.count == 0 {
		a.logger.Warn("close without open session", "user", id.UserID)
		return
	}
	s.count--
	if s.count > 0 {
		return
	}
	s.state = Closing
	a.armClosing(s)
}

// armClosing starts the grace timer of a closing session. a.mu is held.
func (a *Aggregator) armClosing(s *Session) {
	s.gen++
	gen := s.gen
	s.closing = a.sched.After(a.cfg.Grace, func() { a.closeTimer(s, gen) })
}

func (a *Aggregator) closeTimer(s *Session, gen uint64) {
	a.mu.Lock()
	if s.gen != gen || s.state != Closing {
		a.mu.Unlock()
		return
	}
	s.closing = nil
	s.state = Expiring
	s.gen++
	s.deadline = a.sched.Now().Add(a.cfg.Expire)
	a.queue = append(a.queue, expiry{s: s, gen: s.gen, deadline: s.deadline})
	listeners := slices.Clone(a.onLogout)
	a.mu.Unlock()

	a.metrics.SessionLogouts.Inc()
	a.logger.Info("user logout", "user", s.UserID)
	notify(listeners, s.UserID)
}

// Sweep removes sessions whose expiry has passed. It stops at the first
// entry that is not yet due.
func (a *Aggregator) Sweep() {
	now := a.sched.Now()
	var removed []*Session

	a.mu.Lock()
	for len(a.queue) > 0 {
		e := a.queue[0]
		if e.deadline.After(now) {
			break
		}
		a.queue = a.queue[1:]
		if e.s.gen != e.gen || e.s.state != Expiring {
			continue
		}
		e.s.state = Absent
		delete(a.sessions, e.s.UserID)
		removed = append(removed, e.s)
	}
	a.mu.Unlock()

	for _, s := range removed {
		a.metrics.SessionExpired.Inc()
		a.logger.Info("expired session", "user", s.UserID)
		if a.cleanup != nil {
			a.cleanup(s)
		}
	}
}

// Get returns the session of a user, if any.
func (a *Aggregator) Get(userID string) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[userID]
	return s, ok
}

// Len returns the number of sessions in any state.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// Count returns the number of open connections of a user.
func (a *Aggregator) Count(userID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[userID]; ok {
		return s.count
	}
	return 0
}

// State returns the lifecycle state of a user's session.
func (a *Aggregator) State(userID string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[userID]; ok {
		return s.state
	}
	return Absent
}

// Active returns the number of sessions with open connections.
func (a *Aggregator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.sessions {
		if s.state == Active {
			n++
		}
	}
	return n
}

// RegisterMetrics exposes session gauges.
func (a *Aggregator) RegisterMetrics(reg *metric.Registry) {
	reg.GaugeFunc("session", "active", "User sessions with open connections",
		func() float64 { return float64(a.Active()) })
	reg.GaugeFunc("session", "total", "User sessions in any state",
		func() float64 { return float64(a.Len()) })
}

func notify(fns []func(string), userID string) {
	for _, fn := range fns {
		fn(userID)
	}
}
