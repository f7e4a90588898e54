package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/core/service"
	"github.com/yndnr/wsmesh-go/internal/discovery"
	"github.com/yndnr/wsmesh-go/internal/peerlink"
	"github.com/yndnr/wsmesh-go/internal/storage"
	"github.com/yndnr/wsmesh-go/internal/usersession"
)

// ResolveNodeID returns the configured node id, generating one when empty.
// The second result reports whether the id was generated.
func ResolveNodeID(cfg *ServerConfig) (string, bool, error) {
	if cfg.Peer.NodeID != "" {
		return cfg.Peer.NodeID, false, nil
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", false, fmt.Errorf("read random bytes: %w", err)
	}
	return "wsnode-" + hex.EncodeToString(buf), true, nil
}

// ToSessionConfig maps the session section.
func ToSessionConfig(cfg *ServerConfig) usersession.Config {
	return usersession.Config{
		Grace:         cfg.Session.Grace,
		Expire:        cfg.Session.Expire,
		SweepInterval: cfg.Session.SweepInterval,
	}
}

// ToAuthConfig maps the auth section.
func ToAuthConfig(cfg *ServerConfig) service.AuthConfig {
	return service.AuthConfig{
		MaxSkew:           cfg.Auth.MaxSkew,
		NonceCapacity:     cfg.Auth.NonceCapacity,
		IdentityCacheSize: cfg.Auth.IdentityCacheSize,
		Services:          cfg.Server.Services,
	}
}

// ToPeerConfig maps the peer timings.
func ToPeerConfig(cfg *ServerConfig) peerlink.Config {
	return peerlink.Config{
		MinRetry:    cfg.Peer.MinRetry,
		MaxRetry:    cfg.Peer.MaxRetry,
		SlowRetry:   cfg.Peer.SlowRetry,
		Heartbeat:   cfg.Peer.Heartbeat,
		DialTimeout: cfg.Peer.DialTimeout,
	}
}

// ToDiscoveryConfig maps the cluster section for node nodeID.
func ToDiscoveryConfig(cfg *ServerConfig, nodeID string) discovery.Config {
	return discovery.Config{
		NodeID:        nodeID,
		BindAddr:      cfg.Cluster.GossipAddr,
		BindPort:      cfg.Cluster.GossipPort,
		AdvertiseAddr: cfg.Cluster.AdvertiseAddr,
		PeerURL:       cfg.Peer.AdvertiseURL,
		Seeds:         cfg.Cluster.Seeds,
	}
}

// ToStorageConfig maps the storage section.
func ToStorageConfig(cfg *ServerConfig) storage.Config {
	sc := storage.DefaultConfig(cfg.Storage.DataDir)
	sc.InMemory = cfg.Storage.InMemory
	if cfg.Storage.GCInterval > 0 {
		sc.GCInterval = cfg.Storage.GCInterval
	}
	return sc
}

// Policy returns the access policy of a configured room.
func (r RoomConfig) Policy() domain.AccessPolicy {
	return domain.AccessPolicy{
		Login:     r.Login,
		Operator:  r.Operator,
		Admin:     r.Admin,
		AllowPost: r.AllowPost,
	}
}
