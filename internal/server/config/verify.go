package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

// Verify validates the configuration and creates the data directory.
func Verify(cfg *ServerConfig) error {
	checks := []func(*ServerConfig) error{
		verifyServer,
		verifySession,
		verifyPeer,
		verifyCluster,
		verifyStorage,
		verifyLog,
		verifyRooms,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func verifyServer(cfg *ServerConfig) error {
	h := cfg.Server.HTTP
	if _, _, err := net.SplitHostPort(h.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if !strings.HasPrefix(h.WSPath, "/") || !strings.HasPrefix(h.PeerPath, "/") {
		return errors.New("server.http.ws_path and peer_path must start with /")
	}
	if h.WSPath == h.PeerPath {
		return errors.New("server.http.ws_path and peer_path must differ")
	}
	if (h.TLSCertFile == "") != (h.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{h.TLSCertFile, h.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http tls file: %w", err)
		}
	}
	for _, entry := range h.AdminAllow {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("server.http.admin_allow: %w", err)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("server.http.admin_allow: invalid IP %q", entry)
		}
	}
	if cfg.Server.TrustedOrigin != "" {
		if _, err := regexp.Compile(cfg.Server.TrustedOrigin); err != nil {
			return fmt.Errorf("server.trusted_origin: %w", err)
		}
	}
	return nil
}

func verifySession(cfg *ServerConfig) error {
	s := cfg.Session
	if s.Grace <= 0 || s.Expire <= 0 || s.SweepInterval <= 0 {
		return errors.New("session.grace, expire and sweep_interval must be positive")
	}
	return nil
}

func verifyPeer(cfg *ServerConfig) error {
	p := cfg.Peer
	if p.NodeID != "" {
		if err := domain.ValidateID(p.NodeID); err != nil {
			return fmt.Errorf("peer.node_id: %w", err)
		}
	}
	if p.MinRetry <= 0 || p.MaxRetry < p.MinRetry {
		return errors.New("peer.min_retry must be positive and not above max_retry")
	}
	if p.TLSCAFile != "" {
		if _, err := os.Stat(p.TLSCAFile); err != nil {
			return fmt.Errorf("peer.tls_ca_file: %w", err)
		}
	}
	if (len(p.Links) > 0 || cfg.Cluster.Enabled) && cfg.Auth.ClusterSecret == "" {
		return errors.New("auth.cluster_secret is required for peer links")
	}
	seen := make(map[string]bool)
	for _, l := range p.Links {
		if l.ID == "" || seen[l.ID] {
			return fmt.Errorf("peer.links: missing or duplicate id %q", l.ID)
		}
		seen[l.ID] = true
		if err := verifyWSURL(l.URL); err != nil {
			return fmt.Errorf("peer.links[%s].url: %w", l.ID, err)
		}
	}
	if p.AdvertiseURL != "" {
		if err := verifyWSURL(p.AdvertiseURL); err != nil {
			return fmt.Errorf("peer.advertise_url: %w", err)
		}
	}
	return nil
}

func verifyWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func verifyCluster(cfg *ServerConfig) error {
	c := cfg.Cluster
	if !c.Enabled {
		return nil
	}
	if c.GossipPort < 0 || c.GossipPort > 65535 {
		return fmt.Errorf("cluster.gossip_port out of range: %d", c.GossipPort)
	}
	if cfg.Peer.AdvertiseURL == "" {
		return errors.New("peer.advertise_url is required when cluster discovery is enabled")
	}
	return nil
}

func verifyStorage(cfg *ServerConfig) error {
	s := cfg.Storage
	if s.InMemory {
		return nil
	}
	if s.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(s.DataDir, 0o750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}
	return nil
}

func verifyLog(cfg *ServerConfig) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	return nil
}

func verifyRooms(cfg *ServerConfig) error {
	seen := make(map[string]bool)
	for _, r := range cfg.Rooms {
		if r.Name == "" || seen[r.Name] {
			return fmt.Errorf("rooms: missing or duplicate name %q", r.Name)
		}
		if strings.ContainsAny(r.Name, ",") {
			return fmt.Errorf("rooms: name %q contains a comma", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}
