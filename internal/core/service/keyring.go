package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/wsmesh-go/internal/core/domain"
)

// NodeUserPrefix marks user ids that belong to peer nodes. Their keys are
// derived from the cluster secret instead of being stored.
const NodeUserPrefix = "node:"

// NodeGroupID is the group peer nodes act in.
const NodeGroupID = "nodes"

const keySize = 32

// KeyRing resolves signing keys.
type KeyRing struct {
	users         domain.UserStore
	clusterSecret []byte
}

// NewKeyRing creates a key ring. An empty clusterSecret disables node keys.
func NewKeyRing(users domain.UserStore, clusterSecret []byte) *KeyRing {
	return &KeyRing{users: users, clusterSecret: clusterSecret}
}

// NodeUserID returns the user id a peer node authenticates as.
func NodeUserID(nodeID string) string {
	return NodeUserPrefix + nodeID
}

// Lookup returns the key and the user record for userID.
func (k *KeyRing) Lookup(ctx context.Context, userID string) ([]byte, *domain.User, error) {
	if nodeID, ok := strings.CutPrefix(userID, NodeUserPrefix); ok {
		key, err := k.NodeKey(nodeID)
		if err != nil {
			return nil, nil, err
		}
		return key, &domain.User{ID: userID, Name: nodeID, GroupID: NodeGroupID}, nil
	}

	u, err := k.users.GetUser(ctx, userID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrUserNotFound.Code) {
			return nil, nil, domain.ErrAuthUnknownUser.WithDetails(userID)
		}
		return nil, nil, err
	}
	key, err := hex.DecodeString(u.Key)
	if err != nil || len(key) == 0 {
		return nil, nil, domain.ErrAuthUnknownUser.WithDetails("user has no usable key")
	}
	return key, u, nil
}

// NodeKey derives the key of a peer node from the cluster secret.
func (k *KeyRing) NodeKey(nodeID string) ([]byte, error) {
	if len(k.clusterSecret) == 0 {
		return nil, domain.ErrAuthUnknownUser.WithDetails("cluster secret not configured")
	}
	if err := domain.ValidateID(nodeID); err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, k.clusterSecret, nil, []byte("wsmesh peer link "+nodeID))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive node key: %w", err)
	}
	return key, nil
}

// GenerateKey returns a new random hex-encoded user key.
func GenerateKey() (string, error) {
	b := make([]byte, keySize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
