package pubsub

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/hub"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
)

// Protocol verbs.
const (
	VerbSubscribe   = "SUBSCRIBE"
	VerbUnsubscribe = "UNSUBSCRIBE"
	VerbPut         = "PUT"
)

// UserRoomPrefix prefixes the private room of every authenticated user.
const UserRoomPrefix = "notify:"

// KindNotification is the payload kind of user rooms.
const KindNotification = "notification"

// Options configures a Broker.
type Options struct {
	Metrics *metric.Registry
	Logger  logger.Logger
}

// Broker owns the rooms.
type Broker struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	metrics *metric.Registry
	logger  logger.Logger
}

var _ hub.FrameHandler = (*Broker)(nil)

// New creates an empty broker.
func New(opts Options) *Broker {
	if opts.Metrics == nil {
		opts.Metrics = metric.NewRegistry()
	}
	return &Broker{
		rooms:   make(map[string]*Room),
		metrics: opts.Metrics,
		logger:  logger.Component(opts.Logger, "pubsub"),
	}
}

// UserRoom returns the name of the private room of userID.
func UserRoom(userID string) string {
	return UserRoomPrefix + userID
}

// Attach follows the lifecycle of h's connections: authenticated
// connections get their user room, closed connections leave every room.
func (b *Broker) Attach(h *hub.Hub) {
	h.OnOpen(func(c *hub.Conn) {
		if c.LoggedIn() {
			b.CreateUserRoom(UserRoom(c.UserID()), c.UserID(), KindNotification)
		}
	})
	h.OnClose(b.Detach)
}

// CreateRoom creates a room. An existing room is left unchanged.
func (b *Broker) CreateRoom(name string, policy domain.AccessPolicy, kind string) {
	b.create(newRoom(name, policy, kind, ""))
}

// CreateUserRoom creates a room only owner's connections may join.
func (b *Broker) CreateUserRoom(name, owner, kind string) {
	b.create(newRoom(name, domain.AccessPolicy{Login: true}, kind, owner))
}

func (b *Broker) create(r *Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[r.name]; ok {
		return
	}
	b.rooms[r.name] = r
	b.logger.Debug("room created", "room", r.name, "owner", r.owner)
}

// RemoveRoom deletes a room, reporting whether it existed.
func (b *Broker) RemoveRoom(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[name]; !ok {
		return false
	}
	delete(b.rooms, name)
	return true
}

// HasRoom reports whether a room exists.
func (b *Broker) HasRoom(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[name]
	return ok
}

// Rooms lists all rooms ordered by name.
func (b *Broker) Rooms() []RoomInfo {
	b.mu.RLock()
	out := make([]RoomInfo, 0, len(b.rooms))
	for _, r := range b.rooms {
		out = append(out, r.info())
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscribe adds c to a room after checking the room policy. The policy is
// evaluated once; later changes to the identity do not affect membership.
func (b *Broker) Subscribe(c *hub.Conn, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rooms[name]
	if !ok {
		b.logger.Warn("room not found", "room", name, "conn", c.ID())
		return domain.ErrRoomNotFound.WithDetails(name)
	}
	if c.Closed() {
		return domain.ErrConnClosed.WithDetails(c.ID())
	}
	if !r.authorized(c) {
		b.metrics.DeniedAccess.WithLabelValues("subscribe").Inc()
		b.logger.Warn("room access denied", "room", name, "conn", c.ID(), "user", c.UserID())
		return domain.ErrRoomAccessDenied.WithDetails(name)
	}
	r.members[c.ID()] = c
	return nil
}

// Unsubscribe removes c from a room if both exist.
func (b *Broker) Unsubscribe(c *hub.Conn, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rooms[name]; ok {
		delete(r.members, c.ID())
	}
}

// Detach removes c from every room.
func (b *Broker) Detach(c *hub.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.rooms {
		delete(r.members, c.ID())
	}
}

// IsMember reports whether c is subscribed to a room.
func (b *Broker) IsMember(c *hub.Conn, name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rooms[name]
	if !ok {
		return false
	}
	_, member := r.members[c.ID()]
	return member
}

// CanPost reports whether c may publish into a room: the room allows
// posting or c is an admin.
func (b *Broker) CanPost(c *hub.Conn, name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rooms[name]
	return ok && r.policy.AllowsPost(c.Identity())
}

// Publish delivers "<room>,<payload>" to every open member, restricted to
// the connections of targetUser when it is not empty. A missing room or a
// room without members is a no-op. It returns the number of deliveries.
func (b *Broker) Publish(name, payload, targetUser string) int {
	b.mu.RLock()
	r, ok := b.rooms[name]
	if !ok || len(r.members) == 0 {
		b.mu.RUnlock()
		return 0
	}
	kind := r.kind
	members := make([]*hub.Conn, 0, len(r.members))
	for _, c := range r.members {
		members = append(members, c)
	}
	b.mu.RUnlock()

	text := name + "," + payload
	sent := 0
	for _, c := range members {
		if c.Closed() || (targetUser != "" && c.UserID() != targetUser) {
			continue
		}
		if err := c.Send(text); err != nil {
			b.metrics.DeliveryFailure.Inc()
			b.logger.Warn("delivery failed", "room", name, "conn", c.ID(), "error", err)
			continue
		}
		sent++
	}
	b.metrics.Published.WithLabelValues(kind).Inc()
	b.logger.Debug("published", "room", name, "target", targetUser, "delivered", sent)
	return sent
}

// PublishJSON JSON-encodes v and publishes it.
func (b *Broker) PublishJSON(name string, v any, targetUser string) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, domain.ErrInvalidArgument.WithDetails("encode payload").WithCause(err)
	}
	return b.Publish(name, string(data), targetUser), nil
}

// NotifyUser publishes n into the user room of userID.
func (b *Broker) NotifyUser(userID string, n domain.Notification) (int, error) {
	return b.PublishJSON(UserRoom(userID), n, userID)
}

// HandleFrame executes one client command.
func (b *Broker) HandleFrame(c *hub.Conn, text string) {
	verb, arg, ok := strings.Cut(text, ",")
	switch verb {
	case VerbSubscribe:
		if !ok || arg == "" {
			b.logger.Info("missing room in command", "verb", verb, "conn", c.ID())
			return
		}
		b.Subscribe(c, arg)

	case VerbUnsubscribe:
		if !ok || arg == "" {
			b.logger.Info("missing room in command", "verb", verb, "conn", c.ID())
			return
		}
		b.Unsubscribe(c, arg)

	case VerbPut:
		room, msg, found := strings.Cut(arg, ",")
		if !ok || !found || room == "" {
			b.logger.Info("malformed PUT command", "conn", c.ID())
			return
		}
		if !b.IsMember(c, room) || !b.CanPost(c, room) {
			b.metrics.DeniedAccess.WithLabelValues("post").Inc()
			b.logger.Debug("post refused", "room", room, "conn", c.ID(), "user", c.UserID())
			return
		}
		b.Publish(room, msg, "")

	default:
		b.logger.Debug("unknown command ignored", "verb", verb, "conn", c.ID())
	}
}

// RegisterMetrics exposes the room count.
func (b *Broker) RegisterMetrics(reg *metric.Registry) {
	reg.GaugeFunc("pubsub", "rooms", "Existing rooms", func() float64 {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return float64(len(b.rooms))
	})
}
