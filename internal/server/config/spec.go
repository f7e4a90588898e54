package config

import "time"

// ServerConfig is the root configuration for wsmesh-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Session SessionSection `koanf:"session"`
	Auth    AuthSection    `koanf:"auth"`
	Peer    PeerSection    `koanf:"peer"`
	Cluster ClusterSection `koanf:"cluster"`
	Storage StorageSection `koanf:"storage"`
	Limits  LimitsSection  `koanf:"limits"`
	Log     LogSection     `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`

	// Rooms are created at startup.
	Rooms []RoomConfig `koanf:"rooms"`
}

// ServerSection configures the HTTP endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// TrustedOrigin is a regular expression matched against the Origin
	// header of client connections. Empty trusts every origin. It is
	// applied again on configuration reload.
	TrustedOrigin string `koanf:"trusted_origin"`

	// Services are advertised to clients in every identity.
	Services []string `koanf:"services"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	WSPath          string        `koanf:"ws_path"`
	PeerPath        string        `koanf:"peer_path"`
	TLSCertFile     string        `koanf:"tls_cert_file"`
	TLSKeyFile      string        `koanf:"tls_key_file"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AdminAllow lists the IPs or CIDR blocks allowed to read /metrics and
	// /stats. Empty allows everyone.
	AdminAllow []string `koanf:"admin_allow"`
}

// SessionSection configures the user session aggregator.
type SessionSection struct {
	Grace         time.Duration `koanf:"grace"`
	Expire        time.Duration `koanf:"expire"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// AuthSection configures credential verification.
type AuthSection struct {
	NonceCapacity     int           `koanf:"nonce_capacity"`
	MaxSkew           time.Duration `koanf:"max_skew"`
	IdentityCacheSize int           `koanf:"identity_cache_size"`

	// ClusterSecret derives the keys nodes authenticate peer links with.
	// All nodes of a cluster share it.
	ClusterSecret string `koanf:"cluster_secret"`
}

// PeerSection configures node-to-node links.
type PeerSection struct {
	// NodeID names this node. Empty generates one at startup.
	NodeID string `koanf:"node_id"`

	// AdvertiseURL is the ws:// URL other nodes dial to reach this node's
	// peer endpoint.
	AdvertiseURL string `koanf:"advertise_url"`

	// Links are statically configured remote nodes.
	Links []LinkConfig `koanf:"links"`

	MinRetry    time.Duration `koanf:"min_retry"`
	MaxRetry    time.Duration `koanf:"max_retry"`
	SlowRetry   time.Duration `koanf:"slow_retry"`
	Heartbeat   time.Duration `koanf:"heartbeat"`
	DialTimeout time.Duration `koanf:"dial_timeout"`

	// TLSCAFile adds a PEM bundle to the roots trusted when dialing wss://
	// links.
	TLSCAFile string `koanf:"tls_ca_file"`
}

// LinkConfig is one static peer link.
type LinkConfig struct {
	ID  string `koanf:"id"`
	URL string `koanf:"url"`
}

// ClusterSection configures gossip discovery of peer nodes.
type ClusterSection struct {
	Enabled       bool     `koanf:"enabled"`
	GossipAddr    string   `koanf:"gossip_addr"`
	GossipPort    int      `koanf:"gossip_port"`
	AdvertiseAddr string   `koanf:"advertise_addr"`
	Seeds         []string `koanf:"seeds"`
}

// StorageSection configures the user and group store.
type StorageSection struct {
	DataDir    string        `koanf:"data_dir"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// LimitsSection bounds per-connection resources.
type LimitsSection struct {
	// CommandsPerSecond limits client frames per connection; 0 disables.
	CommandsPerSecond float64 `koanf:"commands_per_second"`
	Burst             int     `koanf:"burst"`
	SendQueue         int     `koanf:"send_queue"`
	MaxMessageSize    int64   `koanf:"max_message_size"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// RoomConfig is a room created at startup.
type RoomConfig struct {
	Name      string `koanf:"name"`
	Kind      string `koanf:"kind"`
	Login     bool   `koanf:"login"`
	Operator  bool   `koanf:"operator"`
	Admin     bool   `koanf:"admin"`
	AllowPost bool   `koanf:"allow_post"`
}
