package service

import (
	"context"
	"crypto/hmac"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/wsmesh-go/internal/telemetry/metric"
	"github.com/yndnr/wsmesh-go/pkg/lru"
	"github.com/yndnr/wsmesh-go/pkg/replay"
)

// AuthConfig holds configuration for AuthService.
type AuthConfig struct {
	// MaxSkew is the accepted distance between a nonce timestamp and now.
	MaxSkew time.Duration

	// NonceCapacity sizes the replay filter.
	NonceCapacity int

	// IdentityCacheSize bounds the resolved identity cache.
	IdentityCacheSize int

	// Services are the service names copied into every Identity.
	Services []string
}

// DefaultAuthConfig returns default configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		MaxSkew:           5 * time.Minute,
		NonceCapacity:     100000,
		IdentityCacheSize: 1000,
	}
}

// AuthService verifies signed credentials against the key ring.
type AuthService struct {
	keys       *KeyRing
	groups     domain.GroupStore
	nonces     *replay.Checker
	identities *lru.Cache[string, *domain.Identity]
	cfg        AuthConfig
	now        func() time.Time
	logger     logger.Logger
	replays    atomic.Int64
}

var (
	_ domain.Authenticator = (*AuthService)(nil)
	_ domain.Verifier      = (*AuthService)(nil)
	_ domain.RoleResolver  = (*AuthService)(nil)
)

// NewAuthService creates a new AuthService.
func NewAuthService(keys *KeyRing, groups domain.GroupStore, cfg AuthConfig, log logger.Logger) (*AuthService, error) {
	def := DefaultAuthConfig()
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = def.MaxSkew
	}
	if cfg.NonceCapacity <= 0 {
		cfg.NonceCapacity = def.NonceCapacity
	}
	if cfg.IdentityCacheSize <= 0 {
		cfg.IdentityCacheSize = def.IdentityCacheSize
	}
	cache, err := lru.New[string, *domain.Identity](cfg.IdentityCacheSize)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		keys:       keys,
		groups:     groups,
		nonces:     replay.NewChecker(cfg.NonceCapacity),
		identities: cache,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.Component(log, "auth"),
	}, nil
}

// Authenticate parses "userid;nonce;signature[;role]", verifies it with an
// empty scope and returns the resulting Identity.
func (s *AuthService) Authenticate(ctx context.Context, query string) (*domain.Identity, error) {
	if query == "" {
		return nil, domain.ErrAuthNoCredentials
	}
	parts := strings.Split(query, ";")
	if len(parts) < 3 || len(parts) > 4 {
		return nil, domain.ErrAuthMalformed.WithDetails("expected 3 or 4 fields")
	}
	role := ""
	if len(parts) == 4 {
		role = parts[3]
	}

	user, err := s.Verify(ctx, parts[0], parts[1], parts[2], "")
	if err != nil {
		return nil, err
	}

	cacheKey := user.ID + ";" + role
	if id, ok := s.identities.Get(cacheKey); ok {
		return id, nil
	}
	group, err := s.ResolveRole(ctx, user, role)
	if err != nil {
		return nil, err
	}
	id := domain.NewIdentity(user, group, s.cfg.Services)
	s.identities.Put(cacheKey, id)
	return id, nil
}

// Verify checks that signature is the HMAC of nonce+scope under the user's
// key, that the nonce is recent and that it was not used before.
func (s *AuthService) Verify(ctx context.Context, userID, nonce, signature, scope string) (*domain.User, error) {
	if userID == "" || nonce == "" || signature == "" {
		return nil, domain.ErrAuthMalformed.WithDetails("empty field")
	}
	if err := s.checkNonceTime(nonce); err != nil {
		return nil, err
	}

	key, user, err := s.keys.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, domain.ErrAuthUserDisabled.WithDetails(userID)
	}

	expected := ComputeSignature(key, nonce, scope)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, domain.ErrAuthBadSignature.WithDetails(userID)
	}

	// Record only authentic nonces so forged requests cannot fill the filter.
	if !s.nonces.CheckAndAdd(userID + ";" + nonce) {
		s.replays.Add(1)
		s.logger.Warn("nonce replay detected", "user", userID)
		return nil, domain.ErrAuthReplay.WithDetails(userID)
	}
	return user, nil
}

func (s *AuthService) checkNonceTime(nonce string) error {
	ts, _, ok := strings.Cut(nonce, "-")
	if !ok {
		return domain.ErrAuthMalformed.WithDetails("nonce without timestamp")
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return domain.ErrAuthMalformed.WithDetails("nonce timestamp").WithCause(err)
	}
	diff := s.now().Sub(time.Unix(sec, 0))
	if diff < 0 {
		diff = -diff
	}
	if diff > s.cfg.MaxSkew {
		return domain.ErrAuthClockSkew.WithDetails(diff.Truncate(time.Second).String())
	}
	return nil
}

// ResolveRole returns the group named roleName when u may assume it and it
// exists, otherwise the user's own group, otherwise domain.DefaultGroup.
func (s *AuthService) ResolveRole(ctx context.Context, u *domain.User, roleName string) (*domain.Group, error) {
	if roleName != "" && u.MayAssume(roleName) {
		g, err := s.lookupGroup(ctx, roleName)
		if err != nil {
			return nil, err
		}
		if g != nil {
			return g, nil
		}
	}
	if u.GroupID != "" {
		g, err := s.lookupGroup(ctx, u.GroupID)
		if err != nil {
			return nil, err
		}
		if g != nil {
			return g, nil
		}
	}
	def := domain.DefaultGroup
	return &def, nil
}

func (s *AuthService) lookupGroup(ctx context.Context, id string) (*domain.Group, error) {
	if id == NodeGroupID {
		return &domain.Group{ID: NodeGroupID, Name: "Peer nodes"}, nil
	}
	g, err := s.groups.GetGroup(ctx, id)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrGroupNotFound.Code) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// InvalidateUser drops cached identities of userID.
func (s *AuthService) InvalidateUser(userID string) {
	prefix := userID + ";"
	for _, k := range s.identities.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.identities.Remove(k)
		}
	}
}

// Replays returns the number of credentials refused as replays.
func (s *AuthService) Replays() int64 {
	return s.replays.Load()
}

// RegisterMetrics exposes the replay filter counters.
func (s *AuthService) RegisterMetrics(reg *metric.Registry) {
	reg.CounterFunc("auth", "replayed_nonces_total", "Credentials refused because their nonce was seen before",
		func() float64 { return float64(s.replays.Load()) })
	reg.CounterFunc("auth", "nonce_filter_rotations_total", "Replay filter rotations",
		func() float64 { return float64(s.nonces.Rotations()) })
}
