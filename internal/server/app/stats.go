package app

import (
	"github.com/yndnr/wsmesh-go/internal/hub"
	"github.com/yndnr/wsmesh-go/internal/pubsub"
)

// Stats is the snapshot served at /stats.
type Stats struct {
	Node        string            `json:"node"`
	Clients     hub.Stats         `json:"clients"`
	Peers       hub.Stats         `json:"peers"`
	Sessions    int               `json:"sessions"`
	Active      int               `json:"active_sessions"`
	LoginUsers  []string          `json:"login_users"`
	Rooms       []pubsub.RoomInfo `json:"rooms"`
	Links       map[string]string `json:"links"`
	Subscribers []string          `json:"subscribers"`
}

// Stats returns the current node statistics.
func (a *App) Stats() Stats {
	links := make(map[string]string)
	for _, node := range a.links.Nodes() {
		if c, ok := a.links.Get(node); ok {
			links[node] = c.State().String()
		}
	}
	return Stats{
		Node:        a.nodeID,
		Clients:     a.clients.Stats(),
		Peers:       a.peers.Stats(),
		Sessions:    a.sessions.Len(),
		Active:      a.sessions.Active(),
		LoginUsers:  a.clients.LoginUsers(),
		Rooms:       a.broker.Rooms(),
		Links:       links,
		Subscribers: a.server.Subscribers(),
	}
}
