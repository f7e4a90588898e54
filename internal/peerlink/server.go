package peerlink

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/core/service"
	"github.com/yndnr/wsmesh-go/internal/hub"
	"github.com/yndnr/wsmesh-go/internal/infra/scheduler"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Handler   RelayHandler
	Config    Config
	Scheduler scheduler.Scheduler
	Metrics   *metric.Registry
	Logger    logger.Logger
}

// Server is the receiving side of peer links. It is the frame handler of
// a dedicated hub.Hub.
type Server struct {
	cfg     Config
	sched   scheduler.Scheduler
	metrics *metric.Registry
	logger  logger.Logger

	mu          sync.Mutex
	handler     RelayHandler
	subscribers map[string]*hub.Conn
	heartbeat   scheduler.Task
}

var _ hub.FrameHandler = (*Server)(nil)

// NewServer creates a server without subscribers.
func NewServer(opts ServerOptions) *Server {
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry()
	}
	return &Server{
		cfg:         opts.Config.withDefaults(),
		sched:       opts.Scheduler,
		metrics:     opts.Metrics,
		logger:      logger.Component(opts.Logger, "peerlink-server"),
		handler:     opts.Handler,
		subscribers: make(map[string]*hub.Conn),
	}
}

// Admit is a hub subscribe hook that accepts only authenticated nodes and
// admins.
func Admit(c *hub.Conn) bool {
	id := c.Identity()
	return id != nil && (id.GroupID == service.NodeGroupID || id.Admin)
}

// Attach drops the subscriptions of connections closed on h.
func (s *Server) Attach(h *hub.Hub) {
	h.OnClose(s.detach)
}

// SetHandler replaces the relay handler.
func (s *Server) SetHandler(h RelayHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Start begins the subscriber heartbeat.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeat == nil {
		s.heartbeat = s.sched.Every(s.cfg.Heartbeat, s.ping)
	}
}

// Stop ends the heartbeat.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

func (s *Server) ping() {
	for _, node := range s.Subscribers() {
		s.PutText(node, "")
	}
}

// HandleFrame executes one frame of a peer connection. A frame without an
// argument closes the connection.
func (s *Server) HandleFrame(c *hub.Conn, text string) {
	verb, arg, ok := strings.Cut(text, " ")
	if !ok {
		s.logger.Warn("malformed frame, closing link", "conn", c.ID(), "user", c.UserID())
		c.Close()
		return
	}
	s.metrics.PeerFrames.WithLabelValues("in").Inc()

	switch verb {
	case "SUBSCRIBE", "SUB":
		s.mu.Lock()
		s.subscribers[arg] = c
		s.mu.Unlock()
		c.SetValue("node", arg)
		s.logger.Info("node subscribed", "node", arg, "conn", c.ID())

	case "UNSUBSCRIBE", "UNSUB":
		s.RemoveSubscriber(arg)

	case "POST", "MSG":
		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()
		if h != nil {
			h(nodeOf(c), arg)
		}

	default:
		s.logger.Debug("unknown peer verb ignored", "verb", verb, "conn", c.ID())
	}
}

// nodeOf names the node behind c: the id it subscribed with, else the
// node id of its credentials.
func nodeOf(c *hub.Conn) string {
	if v, ok := c.Value("node"); ok {
		return v.(string)
	}
	return strings.TrimPrefix(c.UserID(), service.NodeUserPrefix)
}

func (s *Server) detach(c *hub.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for node, sc := range s.subscribers {
		if sc == c {
			delete(s.subscribers, node)
			s.logger.Info("node link closed", "node", node)
		}
	}
}

// Subscribers returns the subscribed node ids in order.
func (s *Server) Subscribers() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.subscribers))
	for node := range s.subscribers {
		out = append(out, node)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// RemoveSubscriber drops a subscription without closing its connection.
func (s *Server) RemoveSubscriber(node string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, node)
}

// PutText sends "POST <msg>" to a subscribed node, or "PING" when msg is
// empty.
func (s *Server) PutText(node, msg string) error {
	s.mu.Lock()
	c, ok := s.subscribers[node]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("node not connected", "node", node)
		return domain.ErrPeerNotFound.WithDetails(node)
	}
	frame := "PING"
	if msg != "" {
		frame = "POST " + msg
	}
	if err := c.Send(frame); err != nil {
		return err
	}
	s.metrics.PeerFrames.WithLabelValues("out").Inc()
	return nil
}

// Put sends v JSON encoded to a subscribed node.
func (s *Server) Put(node string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.ErrInvalidArgument.WithDetails("encode payload").WithCause(err)
	}
	return s.PutText(node, string(data))
}

// RegisterMetrics exposes the subscriber count.
func (s *Server) RegisterMetrics(reg *metric.Registry) {
	reg.GaugeFunc("peer", "subscribers", "Nodes subscribed to this node",
		func() float64 { return float64(len(s.Subscribers())) })
}
