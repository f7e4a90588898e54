package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// writePair writes a self-signed pair for cn and returns the PEM cert.
func writePair(t *testing.T, certFile, keyFile, cn string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	serial, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		DNSNames:              []string{cn},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	return certPEM
}

func TestPool_AddCertPEM(t *testing.T) {
	dir := t.TempDir()
	certPEM := writePair(t, filepath.Join(dir, "c.pem"), filepath.Join(dir, "k.pem"), "node-a")

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "valid", data: certPEM},
		{name: "garbage", data: []byte("not pem"), wantErr: ErrNoCertificates},
		{name: "empty", data: nil, wantErr: ErrNoCertificates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPool(false).AddCertPEM(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddCertPEM() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPool_AddCertFile_Missing(t *testing.T) {
	if err := NewPool(false).AddCertFile(filepath.Join(t.TempDir(), "nope.pem")); err == nil {
		t.Error("AddCertFile() on missing file should fail")
	}
}

func TestLoadClientConfig(t *testing.T) {
	cfg, err := LoadClientConfig("")
	if err != nil || cfg != nil {
		t.Fatalf("LoadClientConfig(\"\") = %v, %v; want nil, nil", cfg, err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "ca.pem")
	certPEM := writePair(t, certFile, filepath.Join(dir, "k.pem"), "node-a")
	cfg, err = LoadClientConfig(certFile)
	if err != nil {
		t.Fatalf("LoadClientConfig() error = %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", cfg.MinVersion)
	}

	block, _ := pem.Decode(certPEM)
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{Roots: cfg.RootCAs, DNSName: "node-a"}); err != nil {
		t.Errorf("certificate not trusted by pool: %v", err)
	}
}

func TestReloader_LoadFailure(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewReloader(filepath.Join(dir, "c.pem"), filepath.Join(dir, "k.pem")); err == nil {
		t.Error("NewReloader() with missing files should fail")
	}
}

func TestReloader_ServesAndReloads(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	writePair(t, certFile, keyFile, "first")

	var reloads atomic.Int32
	r, err := NewReloader(certFile, keyFile,
		WithDebounce(20*time.Millisecond),
		OnReload(func() { reloads.Add(1) }),
	)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Stop()

	got, err := r.ServerConfig().GetCertificate(nil)
	if err != nil || got.Leaf == nil || got.Leaf.Subject.CommonName != "first" {
		t.Fatalf("GetCertificate() = %v, %v", got, err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	writePair(t, certFile, keyFile, "second")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c := r.Certificate(); c.Leaf != nil && c.Leaf.Subject.CommonName == "second" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if cn := r.Certificate().Leaf.Subject.CommonName; cn != "second" {
		t.Fatalf("CommonName = %q after rotation, want second", cn)
	}
	if reloads.Load() == 0 {
		t.Error("OnReload callback not called")
	}
}

func TestReloader_BadRotationKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	writePair(t, certFile, keyFile, "stable")

	r, err := NewReloader(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(certFile, []byte("broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err == nil {
		t.Fatal("Reload() of a broken pair should fail")
	}
	if cn := r.Certificate().Leaf.Subject.CommonName; cn != "stable" {
		t.Errorf("CommonName = %q, want stable", cn)
	}
}

func TestReloader_StopBeforeStart(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	writePair(t, certFile, keyFile, "x")
	r, err := NewReloader(certFile, keyFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
