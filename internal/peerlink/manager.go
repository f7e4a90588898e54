package peerlink

import (
	"context"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wsmesh-go/internal/infra/scheduler"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Self is the local node id, subscribed on every link.
	Self      string
	Signer    Signer
	Handler   RelayHandler
	Config    Config
	Scheduler scheduler.Scheduler
	Dialer    *websocket.Dialer
	Metrics   *metric.Registry
	Logger    logger.Logger
}

// Manager owns one Client per remote node.
type Manager struct {
	opts   ManagerOptions
	logger logger.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewManager creates a manager without links.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry()
	}
	return &Manager{
		opts:    opts,
		logger:  logger.Component(opts.Logger, "peerlink"),
		clients: make(map[string]*Client),
	}
}

// Self returns the local node id.
func (m *Manager) Self() string { return m.opts.Self }

// Add creates and opens the link to a node. A failed first dial is logged
// and retried in the background. Adding a known node returns its client;
// a changed URL replaces the link.
func (m *Manager) Add(ctx context.Context, node, url string) (*Client, error) {
	m.mu.Lock()
	if old, ok := m.clients[node]; ok {
		if old.URL() == url {
			m.mu.Unlock()
			return old, nil
		}
		delete(m.clients, node)
		defer old.Close()
	}
	c, err := NewClient(ClientOptions{
		NodeID:    node,
		URL:       url,
		Signer:    m.opts.Signer,
		Handler:   m.opts.Handler,
		Config:    m.opts.Config,
		Scheduler: m.opts.Scheduler,
		Dialer:    m.opts.Dialer,
		Metrics:   m.opts.Metrics,
		Logger:    m.opts.Logger,
	})
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.clients[node] = c
	m.mu.Unlock()

	if m.opts.Self != "" {
		c.Subscribe(m.opts.Self)
	}
	if err := c.Open(ctx); err != nil {
		m.logger.Info("peer link not up yet", "node", node, "error", err)
	}
	return c, nil
}

// Remove closes and forgets the link to a node.
func (m *Manager) Remove(node string) bool {
	m.mu.Lock()
	c, ok := m.clients[node]
	delete(m.clients, node)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
	return ok
}

// Get returns the link to a node.
func (m *Manager) Get(node string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[node]
	return c, ok
}

// Nodes returns the remote node ids in order.
func (m *Manager) Nodes() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.clients))
	for node := range m.clients {
		out = append(out, node)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (m *Manager) snapshot() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast sends v to every connected node and returns the number of
// nodes reached.
func (m *Manager) Broadcast(v any) int {
	n := 0
	for _, c := range m.snapshot() {
		if !c.Connected() {
			continue
		}
		if err := c.Put(v); err != nil {
			m.logger.Warn("broadcast failed", "node", c.NodeID(), "error", err)
			continue
		}
		n++
	}
	return n
}

// Connected returns the number of links that are up.
func (m *Manager) Connected() int {
	n := 0
	for _, c := range m.snapshot() {
		if c.Connected() {
			n++
		}
	}
	return n
}

// CloseAll closes every link.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}

// RegisterMetrics exposes the link gauges.
func (m *Manager) RegisterMetrics(reg *metric.Registry) {
	reg.GaugeFunc("peer", "links", "Configured peer links",
		func() float64 { return float64(len(m.Nodes())) })
	reg.GaugeFunc("peer", "links_connected", "Peer links that are up",
		func() float64 { return float64(m.Connected()) })
	reg.MustRegister(metric.NewCollector("peer", "link_up", "Peer link state by node (1 up, 0 down)", "node",
		m.linkStates))
}

func (m *Manager) linkStates() map[string]float64 {
	out := make(map[string]float64)
	for _, c := range m.snapshot() {
		v := 0.0
		if c.Connected() {
			v = 1
		}
		out[c.NodeID()] = v
	}
	return out
}
