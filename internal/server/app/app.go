package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/core/service"
	"github.com/yndnr/wsmesh-go/internal/discovery"
	"github.com/yndnr/wsmesh-go/internal/hub"
	"github.com/yndnr/wsmesh-go/internal/infra/scheduler"
	"github.com/yndnr/wsmesh-go/internal/infra/shutdown"
	"github.com/yndnr/wsmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/wsmesh-go/internal/peerlink"
	"github.com/yndnr/wsmesh-go/internal/pubsub"
	"github.com/yndnr/wsmesh-go/internal/server/config"
	"github.com/yndnr/wsmesh-go/internal/server/httpserver"
	"github.com/yndnr/wsmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/wsmesh-go/internal/storage"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
	"github.com/yndnr/wsmesh-go/internal/usersession"
)

// PresenceRoom carries login and logout events of users on every node.
const PresenceRoom = "presence"

// Options configures an App.
type Options struct {
	Config *config.ServerConfig
	Logger logger.Logger

	// Scheduler drives every timer. Nil uses the wall clock.
	Scheduler scheduler.Scheduler
}

// App is one running node.
type App struct {
	cfg     *config.ServerConfig
	nodeID  string
	log     logger.Logger
	sched   scheduler.Scheduler
	metrics *metric.Registry

	engine   *storage.Engine
	store    *storage.Store
	auth     *service.AuthService
	clients  *hub.Hub
	peers    *hub.Hub
	broker   *pubsub.Broker
	sessions *usersession.Aggregator
	server   *peerlink.Server
	links    *peerlink.Manager
	gossip   *discovery.Discovery
	http     *httpserver.Server
	certs    *tlsroots.Reloader
	shutdown *shutdown.Handler

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	addr   net.Addr
	serve  chan error
}

// New builds a node from a verified configuration. Nothing listens until
// Start.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.New()
	}
	nodeID, generated, err := config.ResolveNodeID(cfg)
	if err != nil {
		return nil, err
	}
	if generated {
		log.Info("no node id configured, generated one", "node", nodeID)
	}

	a := &App{
		cfg:      cfg,
		nodeID:   nodeID,
		log:      log.With("node", nodeID),
		sched:    sched,
		metrics:  metric.NewRegistry(),
		shutdown: shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initAuth(); err != nil {
		a.engine.Close()
		return nil, err
	}
	if err := a.initClients(); err != nil {
		a.engine.Close()
		return nil, err
	}
	if err := a.initPeers(); err != nil {
		a.engine.Close()
		return nil, err
	}
	if err := a.initHTTP(); err != nil {
		a.engine.Close()
		return nil, err
	}
	a.registerMetrics()
	a.registerHooks()
	return a, nil
}

func (a *App) initStorage() error {
	engine, err := storage.Open(config.ToStorageConfig(a.cfg), a.log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.engine = engine
	a.store = storage.NewStore(engine)
	return nil
}

func (a *App) initAuth() error {
	keys := service.NewKeyRing(a.store, []byte(a.cfg.Auth.ClusterSecret))
	auth, err := service.NewAuthService(keys, a.store, config.ToAuthConfig(a.cfg), a.log)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	a.auth = auth
	return nil
}

func (a *App) initClients() error {
	a.broker = pubsub.New(pubsub.Options{Metrics: a.metrics, Logger: a.log})
	a.broker.CreateRoom(PresenceRoom, domain.AccessPolicy{Login: true}, "presence")
	for _, r := range a.cfg.Rooms {
		a.broker.CreateRoom(r.Name, r.Policy(), r.Kind)
	}

	a.sessions = usersession.New(usersession.Options{
		Config:    config.ToSessionConfig(a.cfg),
		Scheduler: a.sched,
		Cleanup:   a.sessionExpired,
		Metrics:   a.metrics,
		Logger:    a.log,
	})
	a.sessions.OnLogin(func(userID string) { a.presence(peerlink.EventLogin, userID) })
	a.sessions.OnLogout(func(userID string) { a.presence(peerlink.EventLogout, userID) })

	limits := a.cfg.Limits
	clients, err := hub.New(hub.Options{
		Name:           "clients",
		TrustedOrigin:  a.cfg.Server.TrustedOrigin,
		Authenticator:  a.auth,
		Handler:        a.broker,
		Limiter:        service.NewRateLimiterRegistry(limits.CommandsPerSecond, limits.Burst),
		SendQueue:      limits.SendQueue,
		MaxMessageSize: limits.MaxMessageSize,
		Metrics:        a.metrics,
		Logger:         a.log,
	})
	if err != nil {
		return fmt.Errorf("init client hub: %w", err)
	}
	a.clients = clients
	a.broker.Attach(clients)
	a.sessions.Attach(clients)
	return nil
}

func (a *App) initPeers() error {
	peerCfg := config.ToPeerConfig(a.cfg)
	a.server = peerlink.NewServer(peerlink.ServerOptions{
		Handler:   a.relay,
		Config:    peerCfg,
		Scheduler: a.sched,
		Metrics:   a.metrics,
		Logger:    a.log,
	})
	peers, err := hub.New(hub.Options{
		Name:          "peers",
		Authenticator: a.auth,
		SubscribeHook: peerlink.Admit,
		Handler:       a.server,
		Metrics:       a.metrics,
		Logger:        a.log,
	})
	if err != nil {
		return fmt.Errorf("init peer hub: %w", err)
	}
	a.peers = peers
	a.server.Attach(peers)

	var signer peerlink.Signer
	if a.cfg.Auth.ClusterSecret != "" {
		key, err := service.NewKeyRing(nil, []byte(a.cfg.Auth.ClusterSecret)).NodeKey(a.nodeID)
		if err != nil {
			return fmt.Errorf("derive node key: %w", err)
		}
		signer = service.NewSigner(service.NodeUserID(a.nodeID), key)
	}
	tlsCfg, err := tlsroots.LoadClientConfig(a.cfg.Peer.TLSCAFile)
	if err != nil {
		return fmt.Errorf("load peer ca: %w", err)
	}
	a.links = peerlink.NewManager(peerlink.ManagerOptions{
		Self:   a.nodeID,
		Signer: signer,
		Dialer: &websocket.Dialer{
			HandshakeTimeout: peerCfg.DialTimeout,
			TLSClientConfig:  tlsCfg,
		},
		Handler:   a.relay,
		Config:    peerCfg,
		Scheduler: a.sched,
		Metrics:   a.metrics,
		Logger:    a.log,
	})
	return nil
}

func (a *App) initHTTP() error {
	h := a.cfg.Server.HTTP
	opts := httpserver.ServerOptions{
		Addr:              h.Addr,
		ReadHeaderTimeout: h.ReadTimeout,
		Logger:            logger.Component(a.log, "http"),
	}
	if h.TLSCertFile != "" {
		certs, err := tlsroots.NewReloader(h.TLSCertFile, h.TLSKeyFile, tlsroots.WithLogger(a.log))
		if err != nil {
			return fmt.Errorf("load server certificate: %w", err)
		}
		a.certs = certs
		opts.TLSConfig = certs.ServerConfig()
	}
	rc := httpserver.RouterConfig{
		WSPath:         h.WSPath,
		Clients:        a.clients,
		PeerPath:       h.PeerPath,
		Peers:          a.peers,
		AdminAllowList: h.AdminAllow,
		API: handler.New(handler.Options{
			Stats:  func() any { return a.Stats() },
			Ready:  a.ready,
			Logger: a.log,
		}),
		Logger: a.log,
	}
	if a.cfg.Metrics.Enabled {
		rc.MetricsPath = a.cfg.Metrics.Path
		rc.Metrics = a.metrics.Handler()
	}
	opts.Handler = httpserver.NewRouter(rc)
	a.http = httpserver.New(opts)
	return nil
}

func (a *App) registerMetrics() {
	a.auth.RegisterMetrics(a.metrics)
	a.clients.RegisterMetrics(a.metrics)
	a.peers.RegisterMetrics(a.metrics)
	a.broker.RegisterMetrics(a.metrics)
	a.sessions.RegisterMetrics(a.metrics)
	a.server.RegisterMetrics(a.metrics)
	a.links.RegisterMetrics(a.metrics)
	a.engine.RegisterMetrics(a.metrics.Prometheus())
}

// NodeID returns the id of this node.
func (a *App) NodeID() string { return a.nodeID }

// Store returns the user and group store.
func (a *App) Store() *storage.Store { return a.store }

// Broker returns the room broker.
func (a *App) Broker() *pubsub.Broker { return a.broker }

// Sessions returns the user session aggregator.
func (a *App) Sessions() *usersession.Aggregator { return a.sessions }

// Links returns the outbound peer-link manager.
func (a *App) Links() *peerlink.Manager { return a.links }

// Addr returns the bound HTTP address once Start has returned.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Start binds the listener, starts timers and opens the configured peer
// links. Listener errors after Start surface through Wait.
func (a *App) Start() error {
	ln, err := a.http.Listen()
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Server.HTTP.Addr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.serve = make(chan error, 1)
	a.mu.Unlock()

	a.sessions.Start()
	a.server.Start()
	if a.certs != nil {
		if err := a.certs.Start(); err != nil {
			a.log.Warn("certificate reload disabled", "error", err)
		}
	}
	go func() { a.serve <- a.http.Serve(ln) }()
	a.log.Info("wsmesh node listening",
		"addr", ln.Addr().String(),
		"tls", a.http.TLS(),
		"ws_path", a.cfg.Server.HTTP.WSPath,
		"peer_path", a.cfg.Server.HTTP.PeerPath)

	for _, l := range a.cfg.Peer.Links {
		if _, err := a.links.Add(a.ctx, l.ID, l.URL); err != nil {
			a.log.Warn("peer link not added", "peer", l.ID, "error", err)
		}
	}
	if a.cfg.Cluster.Enabled {
		if err := a.startDiscovery(); err != nil {
			a.Shutdown()
			return err
		}
	}
	return nil
}

func (a *App) startDiscovery() error {
	dc := config.ToDiscoveryConfig(a.cfg, a.nodeID)
	dc.OnJoin = func(m discovery.Member) {
		if m.PeerURL == "" {
			a.log.Warn("cluster member without peer url", "peer", m.ID)
			return
		}
		go func() {
			if _, err := a.links.Add(a.ctx, m.ID, m.PeerURL); err != nil {
				a.log.Warn("peer link not added", "peer", m.ID, "error", err)
			}
		}()
	}
	dc.OnLeave = func(m discovery.Member) {
		a.links.Remove(m.ID)
	}
	d, err := discovery.New(dc, a.log)
	if err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	a.gossip = d
	return nil
}

func (a *App) registerHooks() {
	a.shutdown.OnShutdown("storage", func(context.Context) error {
		return a.engine.Close()
	})
	a.shutdown.OnShutdown("sessions", func(context.Context) error {
		a.sessions.Stop()
		return nil
	})
	a.shutdown.OnShutdown("clients", func(context.Context) error {
		a.clients.CloseAll()
		return nil
	})
	a.shutdown.OnShutdown("peers", func(context.Context) error {
		a.cancel()
		a.links.CloseAll()
		a.server.Stop()
		a.peers.CloseAll()
		return nil
	})
	a.shutdown.OnShutdown("discovery", func(context.Context) error {
		if a.gossip == nil {
			return nil
		}
		if err := a.gossip.Leave(a.cfg.Server.HTTP.ShutdownTimeout / 3); err != nil {
			a.log.Warn("cluster leave failed", "error", err)
		}
		return a.gossip.Shutdown()
	})
	a.shutdown.OnShutdown("http", a.http.Shutdown)
	a.shutdown.OnShutdown("tls", func(context.Context) error {
		if a.certs == nil {
			return nil
		}
		return a.certs.Stop()
	})
}

// Wait blocks until a termination signal, ctx cancellation or a listener
// failure, then shuts the node down.
func (a *App) Wait(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	serve := a.serve
	a.mu.Unlock()
	if serve == nil {
		return errors.New("app: not started")
	}

	failed := make(chan error, 1)
	go func() {
		if err := <-serve; err != nil {
			a.log.Error("http server failed", "error", err)
			failed <- err
			cancel()
		}
	}()
	err := a.shutdown.Wait(ctx)
	a.log.Info("wsmesh node stopped")
	select {
	case serveErr := <-failed:
		return errors.Join(serveErr, err)
	default:
		return err
	}
}

// Shutdown stops the node.
func (a *App) Shutdown() error {
	return a.shutdown.Shutdown()
}

func (a *App) ready() error {
	select {
	case <-a.shutdown.Done():
		return errors.New("shutting down")
	default:
		return nil
	}
}

// Apply takes over the settings that may change at runtime: the log level
// and the trusted origin pattern.
func (a *App) Apply(cfg *config.ServerConfig) error {
	if cfg.Log.Level != logger.GetLevel() {
		logger.SetLevel(cfg.Log.Level)
		a.log.Info("log level changed", "level", cfg.Log.Level)
	}
	if cfg.Server.TrustedOrigin != a.cfg.Server.TrustedOrigin {
		if err := a.clients.SetTrustedOrigin(cfg.Server.TrustedOrigin); err != nil {
			return err
		}
		a.log.Info("trusted origin changed", "pattern", cfg.Server.TrustedOrigin)
		a.cfg.Server.TrustedOrigin = cfg.Server.TrustedOrigin
	}
	return nil
}
