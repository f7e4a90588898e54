package service

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

var (
	aliceKey = []byte("alice-secret-key-0123456789abcdef")
	fixedNow = time.Unix(1700000000, 0)
)

func newTestAuth(t *testing.T) (*AuthService, *mockStore) {
	t.Helper()
	store := newMockStore()
	store.PutUser(context.Background(), &domain.User{
		ID: "alice", Name: "Alice", GroupID: "users", Roles: []string{"ops"}, Key: hex.EncodeToString(aliceKey),
	})
	store.PutUser(context.Background(), &domain.User{
		ID: "mallory", GroupID: "users", Disabled: true, Key: hex.EncodeToString([]byte("k")),
	})
	store.PutGroup(context.Background(), &domain.Group{ID: "users", Tags: "basic"})
	store.PutGroup(context.Background(), &domain.Group{ID: "ops", Operator: true})
	store.PutGroup(context.Background(), &domain.Group{ID: "admins", Operator: true})

	svc, err := NewAuthService(NewKeyRing(store, []byte("cluster-secret")), store, DefaultAuthConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func newTestSigner(userID string, key []byte, at time.Time) *Signer {
	s := NewSigner(userID, key)
	s.now = func() time.Time { return at }
	return s
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	signer := newTestSigner("alice", aliceKey, fixedNow)

	t.Run("own group", func(t *testing.T) {
		id, err := svc.Authenticate(ctx, signer.Sign(""))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if id.UserID != "alice" || id.GroupID != "users" || id.Operator || id.Tags != "basic" {
			t.Errorf("Authenticate() = %+v", id)
		}
	})

	t.Run("permitted role", func(t *testing.T) {
		id, err := svc.Authenticate(ctx, signer.SignWithRole("", "ops"))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if id.GroupID != "ops" || !id.Operator {
			t.Errorf("Authenticate(role ops) = %+v", id)
		}
	})

	t.Run("foreign role falls back", func(t *testing.T) {
		id, err := svc.Authenticate(ctx, signer.SignWithRole("", "admins"))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if id.GroupID != "users" {
			t.Errorf("GroupID = %q, want users", id.GroupID)
		}
	})
}

func TestAuthenticate_Failures(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()
	good := newTestSigner("alice", aliceKey, fixedNow)

	replayed := good.Sign("")
	if _, err := svc.Authenticate(ctx, replayed); err != nil {
		t.Fatalf("first Authenticate() error = %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  *domain.DomainError
	}{
		{"empty", "", domain.ErrAuthNoCredentials},
		{"two fields", "alice;nonce", domain.ErrAuthMalformed},
		{"five fields", "alice;a;b;c;d", domain.ErrAuthMalformed},
		{"bad nonce", "alice;nonce;sig", domain.ErrAuthMalformed},
		{"stale nonce", newTestSigner("alice", aliceKey, fixedNow.Add(-time.Hour)).Sign(""), domain.ErrAuthClockSkew},
		{"future nonce", newTestSigner("alice", aliceKey, fixedNow.Add(time.Hour)).Sign(""), domain.ErrAuthClockSkew},
		{"wrong key", newTestSigner("alice", []byte("wrong"), fixedNow).Sign(""), domain.ErrAuthBadSignature},
		{"unknown user", newTestSigner("eve", aliceKey, fixedNow).Sign(""), domain.ErrAuthUnknownUser},
		{"disabled user", newTestSigner("mallory", []byte("k"), fixedNow).Sign(""), domain.ErrAuthUserDisabled},
		{"replay", replayed, domain.ErrAuthReplay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.query)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerify_ReplayCounted(t *testing.T) {
	svc, _ := newTestAuth(t)
	nonce := NewNonce(fixedNow)
	sig := ComputeSignature(aliceKey, nonce, "")

	for i := 0; i < 3; i++ {
		svc.Verify(context.Background(), "alice", nonce, sig, "")
	}
	if got := svc.Replays(); got != 2 {
		t.Errorf("Replays() = %d, want 2", got)
	}
}

func TestVerify_Scope(t *testing.T) {
	svc, _ := newTestAuth(t)
	nonce := NewNonce(fixedNow)
	sig := ComputeSignature(aliceKey, nonce, "payload")

	if _, err := svc.Verify(context.Background(), "alice", nonce, sig, "other"); !errors.Is(err, domain.ErrAuthBadSignature) {
		t.Errorf("Verify(wrong scope) error = %v", err)
	}
	if _, err := svc.Verify(context.Background(), "alice", nonce, sig, "payload"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestAuthenticate_Node(t *testing.T) {
	svc, store := newTestAuth(t)
	ring := NewKeyRing(store, []byte("cluster-secret"))
	key, err := ring.NodeKey("n2")
	if err != nil {
		t.Fatalf("NodeKey() error = %v", err)
	}

	id, err := svc.Authenticate(context.Background(), newTestSigner(NodeUserID("n2"), key, fixedNow).Sign(""))
	if err != nil {
		t.Fatalf("Authenticate(node) error = %v", err)
	}
	if id.UserID != "node:n2" || id.GroupID != NodeGroupID {
		t.Errorf("Authenticate(node) = %+v", id)
	}
}

func TestInvalidateUser(t *testing.T) {
	svc, store := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, newTestSigner("alice", aliceKey, fixedNow).Sign("")); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	store.PutGroup(ctx, &domain.Group{ID: "users", Operator: true})

	svc.InvalidateUser("alice")
	id, err := svc.Authenticate(ctx, newTestSigner("alice", aliceKey, fixedNow).Sign(""))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !id.Operator {
		t.Error("identity not refreshed after InvalidateUser")
	}
}

func TestResolveRole_DefaultGroup(t *testing.T) {
	svc, _ := newTestAuth(t)
	g, err := svc.ResolveRole(context.Background(), &domain.User{ID: "x", GroupID: "gone"}, "")
	if err != nil {
		t.Fatalf("ResolveRole() error = %v", err)
	}
	if g.ID != domain.DefaultGroup.ID {
		t.Errorf("ResolveRole() = %q, want DEFAULT", g.ID)
	}
}

func TestSigner_Format(t *testing.T) {
	q := newTestSigner("alice", aliceKey, fixedNow).SignWithRole("", "ops")
	parts := strings.Split(q, ";")
	if len(parts) != 4 || parts[0] != "alice" || parts[3] != "ops" {
		t.Fatalf("SignWithRole() = %q", q)
	}
	if !strings.HasPrefix(parts[1], "1700000000-") {
		t.Errorf("nonce = %q, want unix timestamp prefix", parts[1])
	}
	if parts[2] != ComputeSignature(aliceKey, parts[1], "") {
		t.Error("signature does not match ComputeSignature")
	}
}
