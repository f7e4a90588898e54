package app

import (
	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/peerlink"
	"github.com/yndnr/wsmesh-go/internal/pubsub"
	"github.com/yndnr/wsmesh-go/internal/usersession"
)

// presence publishes a local login or logout and relays it to peers.
func (a *App) presence(kind, userID string) {
	ev := peerlink.Event{Kind: kind, Node: a.nodeID, UserID: userID, Time: a.sched.Now()}
	if _, err := a.broker.PublishJSON(PresenceRoom, ev, ""); err != nil {
		a.log.Warn("presence not published", "user", userID, "error", err)
	}
	a.broadcast(ev)
}

// Notify delivers n to userID on this node and on every linked node. It
// returns the number of local connections reached.
func (a *App) Notify(userID string, n domain.Notification) (int, error) {
	sent, err := a.broker.NotifyUser(userID, n)
	if err != nil {
		return sent, err
	}
	a.broadcast(peerlink.Event{
		Kind:         peerlink.EventNotify,
		Node:         a.nodeID,
		UserID:       userID,
		Time:         a.sched.Now(),
		Notification: &n,
	})
	return sent, nil
}

// broadcast sends ev over every outbound link and to inbound subscribers
// that have no outbound link from this node.
func (a *App) broadcast(ev peerlink.Event) int {
	sent := a.links.Broadcast(ev)
	for _, node := range a.server.Subscribers() {
		if c, ok := a.links.Get(node); ok && c.Connected() {
			continue
		}
		if err := a.server.Put(node, ev); err != nil {
			a.log.Debug("event not relayed", "peer", node, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// relay handles an event received from node over either side of a link.
func (a *App) relay(node, payload string) {
	ev, err := peerlink.DecodeEvent(payload)
	if err != nil {
		a.log.Warn("peer event dropped", "peer", node, "error", err)
		return
	}
	switch ev.Kind {
	case peerlink.EventLogin, peerlink.EventLogout:
		a.broker.PublishJSON(PresenceRoom, ev, "")
	case peerlink.EventNotify:
		if ev.Notification == nil || ev.UserID == "" {
			a.log.Warn("notify event without target", "peer", node)
			return
		}
		a.broker.NotifyUser(ev.UserID, *ev.Notification)
	default:
		a.log.Debug("unknown peer event", "peer", node, "kind", ev.Kind)
	}
}

// sessionExpired drops state bound to a user whose session was removed.
func (a *App) sessionExpired(s *usersession.Session) {
	a.auth.InvalidateUser(s.UserID)
	if !a.clients.HasLoginUser(s.UserID) {
		a.broker.RemoveRoom(pubsub.UserRoom(s.UserID))
	}
}
