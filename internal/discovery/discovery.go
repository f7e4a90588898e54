// Package discovery finds peer nodes with the memberlist gossip protocol.
//
// Every node publishes the URL of its peer-link endpoint in its member
// metadata. Join and leave events are reported with that URL so the
// caller can open and close peer links.
package discovery

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/memberlist"

	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// Config configures gossip membership.
type Config struct {
	// NodeID is the unique member name.
	NodeID string
	// BindAddr and BindPort are the gossip listen address. Port 0 picks a
	// free port.
	BindAddr string
	BindPort int
	// AdvertiseAddr overrides the address announced to other members.
	AdvertiseAddr string
	// PeerURL is the peer-link endpoint published in metadata.
	PeerURL string
	// Seeds are members to join at start.
	Seeds []string

	// OnJoin is called for every other member that joins.
	OnJoin func(m Member)
	// OnLeave is called for every other member that leaves or fails.
	OnLeave func(m Member)
}

// Member is a cluster node.
type Member struct {
	ID         string
	GossipAddr string
	PeerURL    string
}

// nodeMetadata is the JSON carried in memberlist node metadata.
type nodeMetadata struct {
	PeerURL string `json:"peer_url"`
}

// Discovery is a running memberlist instance.
type Discovery struct {
	cfg    Config
	list   *memberlist.Memberlist
	logger logger.Logger

	mu       sync.Mutex
	shutdown bool
}

// New creates the memberlist, starts gossiping and joins the seeds.
func New(cfg Config, log logger.Logger) (*Discovery, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("discovery: node id is required")
	}
	log = logger.Component(log, "discovery")

	meta, err := json.Marshal(nodeMetadata{PeerURL: cfg.PeerURL})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}

	d := &Discovery{cfg: cfg, logger: log}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	}
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Events = &eventDelegate{d: d}
	mlConfig.LogOutput = nil
	mlConfig.Logger = newHCLogger(log).StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})

	list, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.list = list

	if len(cfg.Seeds) > 0 {
		n, err := list.Join(cfg.Seeds)
		if err != nil {
			list.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		log.Info("joined cluster", "node_id", cfg.NodeID, "seeds", cfg.Seeds, "joined_count", n)
	} else {
		log.Info("started discovery (bootstrap mode)", "node_id", cfg.NodeID)
	}
	return d, nil
}

// LocalAddr returns the gossip address other nodes can use as a seed.
func (d *Discovery) LocalAddr() string {
	n := d.list.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members returns every live member except the local node.
func (d *Discovery) Members() []Member {
	var out []Member
	for _, n := range d.list.Members() {
		if n.Name == d.cfg.NodeID {
			continue
		}
		out = append(out, toMember(n))
	}
	return out
}

// Leave announces departure and waits up to timeout for it to propagate.
func (d *Discovery) Leave(timeout time.Duration) error {
	if err := d.list.Leave(timeout); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops gossiping. It is safe to call more than once.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return nil
	}
	d.shutdown = true
	if err := d.list.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	d.logger.Info("discovery shutdown complete")
	return nil
}

func toMember(n *memberlist.Node) Member {
	m := Member{
		ID:         n.Name,
		GossipAddr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))),
	}
	var meta nodeMetadata
	if len(n.Meta) > 0 && json.Unmarshal(n.Meta, &meta) == nil {
		m.PeerURL = meta.PeerURL
	}
	return m
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	d *Discovery
}

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	if n.Name == e.d.cfg.NodeID {
		return
	}
	m := toMember(n)
	if m.PeerURL == "" {
		e.d.logger.Warn("node joined without peer url", "node_id", m.ID, "gossip_addr", m.GossipAddr)
	} else {
		e.d.logger.Info("node joined", "node_id", m.ID, "gossip_addr", m.GossipAddr, "peer_url", m.PeerURL)
	}
	if e.d.cfg.OnJoin != nil {
		e.d.cfg.OnJoin(m)
	}
}

func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	if n.Name == e.d.cfg.NodeID {
		return
	}
	e.d.logger.Info("node left", "node_id", n.Name)
	if e.d.cfg.OnLeave != nil {
		e.d.cfg.OnLeave(toMember(n))
	}
}

func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	e.d.logger.Debug("node updated", "node_id", n.Name)
}

// metadataDelegate provides node metadata to memberlist.
type metadataDelegate struct {
	meta []byte
}

func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return m.meta[:limit]
	}
	return m.meta
}

func (m *metadataDelegate) NotifyMsg([]byte)                       {}
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *metadataDelegate) LocalState(join bool) []byte              { return nil }
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool)   {}
