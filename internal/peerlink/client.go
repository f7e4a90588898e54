package peerlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/infra/scheduler"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
)

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Backoff
	Stopped
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	case Stopped:
		return "stopped"
	default:
		return "disconnected"
	}
}

// RelayHandler receives the payload of a POST frame from node.
type RelayHandler func(node, payload string)

// Signer produces the credential query string of a link.
type Signer interface {
	Sign(scope string) string
}

// Config holds the link timings.
type Config struct {
	MinRetry    time.Duration `koanf:"min_retry"`
	MaxRetry    time.Duration `koanf:"max_retry"`
	SlowRetry   time.Duration `koanf:"slow_retry"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	// ReadTimeout closes a link that received nothing for this long.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// Heartbeat is the PING period of the Server.
	Heartbeat time.Duration `koanf:"heartbeat"`
	// NoRetry disables reconnection.
	NoRetry bool `koanf:"no_retry"`
}

// DefaultConfig returns the default link timings.
func DefaultConfig() Config {
	return Config{
		MinRetry:     60 * time.Second,
		MaxRetry:     time.Hour,
		SlowRetry:    8 * time.Minute,
		DialTimeout:  20 * time.Second,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Second,
		Heartbeat:    2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinRetry <= 0 {
		c.MinRetry = def.MinRetry
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = def.MaxRetry
	}
	if c.SlowRetry <= 0 {
		c.SlowRetry = def.SlowRetry
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = def.Heartbeat
	}
	return c
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// NodeID identifies the remote node in relayed frames.
	NodeID string
	// URL is the remote peer endpoint, ws:// or wss://.
	URL       string
	Signer    Signer
	Handler   RelayHandler
	Config    Config
	Scheduler scheduler.Scheduler
	Dialer    *websocket.Dialer
	Metrics   *metric.Registry
	Logger    logger.Logger
}

// Client is the dialing side of a peer link.
type Client struct {
	nodeID  string
	url     *url.URL
	signer  Signer
	cfg     Config
	sched   scheduler.Scheduler
	dialer  *websocket.Dialer
	metrics *metric.Registry
	logger  logger.Logger

	mu      sync.Mutex
	state   State
	ws      *websocket.Conn
	channel string
	handler RelayHandler
	backoff backoff
	retry   scheduler.Task

	writeMu sync.Mutex
}

// NewClient creates a disconnected client. Call Open to connect.
func NewClient(opts ClientOptions) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("peer url").WithCause(err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, domain.ErrInvalidArgument.WithDetails("peer url scheme " + u.Scheme)
	}
	if opts.Signer == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("peer signer")
	}
	cfg := opts.Config.withDefaults()
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New()
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	}
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry()
	}
	return &Client{
		nodeID:  opts.NodeID,
		url:     u,
		signer:  opts.Signer,
		cfg:     cfg,
		sched:   opts.Scheduler,
		dialer:  opts.Dialer,
		metrics: opts.Metrics,
		logger:  logger.Component(opts.Logger, "peerlink").With("node", opts.NodeID),
		handler: opts.Handler,
		backoff: backoff{min: cfg.MinRetry, max: cfg.MaxRetry},
	}, nil
}

// NodeID returns the remote node id.
func (c *Client) NodeID() string { return c.nodeID }

// URL returns the remote endpoint.
func (c *Client) URL() string { return c.url.String() }

// SetHandler replaces the relay handler.
func (c *Client) SetHandler(h RelayHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the link is up.
func (c *Client) Connected() bool { return c.State() == Connected }

// Open dials the remote node. On failure a retry is scheduled and the
// dial error is returned; handshake rejections surface as
// domain.ErrPeerHandshake and retry after the slow delay.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Stopped:
		c.mu.Unlock()
		return domain.ErrPeerStopped.WithDetails(c.nodeID)
	case Connecting, Connected:
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()

	target := *c.url
	target.RawQuery = c.signer.Sign("")

	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	ws, resp, err := c.dialer.DialContext(dctx, target.String(), nil)
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return c.dialFailed(err, resp != nil)
	}

	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		ws.Close()
		return domain.ErrPeerStopped.WithDetails(c.nodeID)
	}
	c.ws = ws
	c.state = Connected
	c.backoff.Reset()
	channel := c.channel
	c.mu.Unlock()

	ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go c.readLoop(ws)

	c.logger.Info("peer link connected", "url", c.url.String())
	if channel != "" {
		if err := c.send("SUBSCRIBE " + channel); err != nil {
			c.logger.Warn("subscription replay failed", "channel", channel, "error", err)
		}
	}
	return nil
}

func (c *Client) dialFailed(err error, handshake bool) error {
	handshake = handshake || errors.Is(err, websocket.ErrBadHandshake)

	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return domain.ErrPeerStopped.WithDetails(c.nodeID)
	}
	var delay time.Duration
	if handshake {
		delay = c.cfg.SlowRetry
		c.backoff.Set(delay)
	} else {
		delay = c.backoff.Next()
	}
	c.state = Backoff
	c.scheduleRetry(delay)
	c.mu.Unlock()

	c.logger.Warn("peer link connect failed", "url", c.url.String(), "retry_in", delay, "error", err)
	if handshake {
		return domain.ErrPeerHandshake.WithDetails(c.nodeID).WithCause(err)
	}
	return fmt.Errorf("dial peer %s: %w", c.nodeID, err)
}

// scheduleRetry must be called with c.mu held.
func (c *Client) scheduleRetry(delay time.Duration) {
	if c.cfg.NoRetry {
		c.state = Disconnected
		return
	}
	c.retry = c.sched.After(delay, func() {
		c.metrics.PeerReconnects.WithLabelValues(c.nodeID).Inc()
		c.Open(context.Background())
	})
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.lost(ws, err)
			return
		}
		ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.metrics.PeerFrames.WithLabelValues("in").Inc()

		c.mu.Lock()
		c.backoff.Reset()
		h := c.handler
		c.mu.Unlock()
		c.dispatch(h, string(data))
	}
}

func (c *Client) dispatch(h RelayHandler, text string) {
	verb, payload, ok := strings.Cut(text, " ")
	if !ok {
		if text != "PING" {
			c.logger.Warn("malformed frame from peer", "frame", text)
		}
		return
	}
	if verb == "POST" && h != nil {
		h(c.nodeID, payload)
	}
}

// lost handles the end of a link's read loop.
func (c *Client) lost(ws *websocket.Conn, err error) {
	ws.Close()

	c.mu.Lock()
	if c.ws != ws {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	if c.state == Stopped {
		c.mu.Unlock()
		return
	}
	c.state = Backoff
	delay := c.backoff.Next()
	c.scheduleRetry(delay)
	c.mu.Unlock()

	c.logger.Info("peer link lost", "retry_in", delay, "error", err)
}

// Close stops the link for good.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return nil
	}
	c.state = Stopped
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws == nil {
		return nil
	}
	c.writeMu.Lock()
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return ws.Close()
}

// Subscribe asks the remote node to send its POST frames for channel to
// this link. The subscription is replayed after every reconnect, so it is
// recorded even when the link is down.
func (c *Client) Subscribe(channel string) error {
	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()
	return c.send("SUBSCRIBE " + channel)
}

// Unsubscribe drops the current subscription.
func (c *Client) Unsubscribe() error {
	c.mu.Lock()
	channel := c.channel
	c.channel = ""
	c.mu.Unlock()
	if channel == "" {
		return nil
	}
	return c.send("UNSUBSCRIBE " + channel)
}

// PutText sends a POST frame. Nothing is buffered while disconnected.
func (c *Client) PutText(msg string) error {
	return c.send("POST " + msg)
}

// Put sends v JSON encoded.
func (c *Client) Put(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.ErrInvalidArgument.WithDetails("encode payload").WithCause(err)
	}
	return c.PutText(string(data))
}

func (c *Client) send(text string) error {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == Connected && ws != nil
	c.mu.Unlock()
	if !connected {
		c.logger.Debug("peer not connected, frame dropped")
		return domain.ErrPeerNotConnected.WithDetails(c.nodeID)
	}

	c.writeMu.Lock()
	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err := ws.WriteMessage(websocket.TextMessage, []byte(text))
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("peer delivery failed", "error", err)
		return fmt.Errorf("send to peer %s: %w", c.nodeID, err)
	}
	c.metrics.PeerFrames.WithLabelValues("out").Inc()
	return nil
}
