package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultWSPath          = "/ws"
	DefaultPeerPath        = "/peer"
	DefaultReadTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultGrace         = 30 * time.Second
	DefaultExpire        = 7 * 24 * time.Hour
	DefaultSweepInterval = 10 * time.Second

	DefaultNonceCapacity     = 100000
	DefaultMaxSkew           = 5 * time.Minute
	DefaultIdentityCacheSize = 1000

	DefaultMinRetry    = 60 * time.Second
	DefaultMaxRetry    = time.Hour
	DefaultSlowRetry   = 8 * time.Minute
	DefaultHeartbeat   = 2 * time.Minute
	DefaultDialTimeout = 20 * time.Second

	DefaultGossipPort = 7946

	DefaultDataDir    = "/var/lib/wsmesh-server/data"
	DefaultGCInterval = 10 * time.Minute

	DefaultCommandsPerSecond = 20
	DefaultBurst             = 40
	DefaultSendQueue         = 256
	DefaultMaxMessageSize    = 64 << 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath = "/metrics"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				WSPath:          DefaultWSPath,
				PeerPath:        DefaultPeerPath,
				ReadTimeout:     DefaultReadTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
		},
		Session: SessionSection{
			Grace:         DefaultGrace,
			Expire:        DefaultExpire,
			SweepInterval: DefaultSweepInterval,
		},
		Auth: AuthSection{
			NonceCapacity:     DefaultNonceCapacity,
			MaxSkew:           DefaultMaxSkew,
			IdentityCacheSize: DefaultIdentityCacheSize,
		},
		Peer: PeerSection{
			MinRetry:    DefaultMinRetry,
			MaxRetry:    DefaultMaxRetry,
			SlowRetry:   DefaultSlowRetry,
			Heartbeat:   DefaultHeartbeat,
			DialTimeout: DefaultDialTimeout,
		},
		Cluster: ClusterSection{
			GossipAddr: "0.0.0.0",
			GossipPort: DefaultGossipPort,
		},
		Storage: StorageSection{
			DataDir:    DefaultDataDir,
			GCInterval: DefaultGCInterval,
		},
		Limits: LimitsSection{
			CommandsPerSecond: DefaultCommandsPerSecond,
			Burst:             DefaultBurst,
			SendQueue:         DefaultSendQueue,
			MaxMessageSize:    DefaultMaxMessageSize,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}
