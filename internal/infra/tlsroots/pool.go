package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertificates is returned when a PEM input holds no certificate.
var ErrNoCertificates = errors.New("tlsroots: no certificates found")

// Pool is a set of trusted roots. It starts from the system pool when one
// is available.
type Pool struct {
	pool *x509.CertPool
}

// NewPool returns a pool seeded with the system roots. When system is false
// or the platform offers none, the pool starts empty.
func NewPool(system bool) *Pool {
	var p *x509.CertPool
	if system {
		p, _ = x509.SystemCertPool()
	}
	if p == nil {
		p = x509.NewCertPool()
	}
	return &Pool{pool: p}
}

// AddCertPEM appends every certificate in data.
func (p *Pool) AddCertPEM(data []byte) error {
	if !p.pool.AppendCertsFromPEM(data) {
		return ErrNoCertificates
	}
	return nil
}

// AddCertFile appends the certificates in the PEM file at path.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read %s: %w", path, err)
	}
	if err := p.AddCertPEM(data); err != nil {
		return fmt.Errorf("%w in %s", err, path)
	}
	return nil
}

// CertPool returns the underlying pool.
func (p *Pool) CertPool() *x509.CertPool {
	return p.pool
}

// ClientConfig returns a client TLS configuration trusting the pool.
func (p *Pool) ClientConfig() *tls.Config {
	return &tls.Config{
		RootCAs:    p.pool,
		MinVersion: tls.VersionTLS12,
	}
}

// LoadClientConfig builds the client configuration used to dial peers.
// An empty caFile yields nil so the dialer keeps its defaults.
func LoadClientConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	p := NewPool(true)
	if err := p.AddCertFile(caFile); err != nil {
		return nil, err
	}
	return p.ClientConfig(), nil
}
