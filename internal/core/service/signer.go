package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ComputeSignature returns the base64url HMAC-SHA256 of nonce+scope.
func ComputeSignature(key []byte, nonce, scope string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(nonce))
	mac.Write([]byte(scope))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// NewNonce returns a nonce of the form "<unix-seconds>-<uuid>".
func NewNonce(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString())
}

// Signer produces "userid;nonce;signature[;role]" credentials.
type Signer struct {
	userID string
	key    []byte
	now    func() time.Time
}

// NewSigner creates a signer for userID.
func NewSigner(userID string, key []byte) *Signer {
	return &Signer{userID: userID, key: key, now: time.Now}
}

// Sign returns a fresh credential covering scope.
func (s *Signer) Sign(scope string) string {
	return s.SignWithRole(scope, "")
}

// SignWithRole returns a fresh credential that also requests role.
func (s *Signer) SignWithRole(scope, role string) string {
	nonce := NewNonce(s.now())
	parts := []string{s.userID, nonce, ComputeSignature(s.key, nonce, scope)}
	if role != "" {
		parts = append(parts, role)
	}
	return strings.Join(parts, ";")
}
