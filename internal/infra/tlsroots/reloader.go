package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// DefaultDebounce coalesces the write and rename events of a certificate
// rotation.
const DefaultDebounce = 500 * time.Millisecond

// Reloader serves a certificate key pair and reloads it when either file
// changes on disk. A failed reload keeps the previous pair.
type Reloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   logger.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	reloads  func()
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithLogger sets the reloader logger.
func WithLogger(l logger.Logger) ReloaderOption {
	return func(r *Reloader) {
		r.logger = l
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// OnReload registers fn to run after every successful reload.
func OnReload(fn func()) ReloaderOption {
	return func(r *Reloader) {
		r.reloads = fn
	}
}

// NewReloader loads the pair and returns a reloader serving it. Watching
// starts with Start.
func NewReloader(certFile, keyFile string, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.Component(r.logger, "tlsroots")
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads the pair from disk.
func (r *Reloader) Reload() error {
	pair, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	if pair.Leaf == nil && len(pair.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(pair.Certificate[0]); err == nil {
			pair.Leaf = leaf
		}
	}
	r.mu.Lock()
	r.cert = &pair
	r.mu.Unlock()
	if pair.Leaf != nil {
		r.logger.Info("certificate loaded",
			"subject", pair.Leaf.Subject.CommonName,
			"not_after", pair.Leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// Certificate returns the current pair.
func (r *Reloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.Certificate(), nil
}

// ServerConfig returns a server TLS configuration backed by the reloader.
func (r *Reloader) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

// Start watches the directories of both files until Stop.
func (r *Reloader) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := map[string]struct{}{}
	for _, f := range []string{r.certFile, r.keyFile} {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return err
		}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("tlsroots: watch %s: %w", dir, err)
		}
	}
	r.watcher = w
	go r.loop()
	return nil
}

func (r *Reloader) loop() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.relevant(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(r.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if err := r.Reload(); err != nil {
				r.logger.Warn("certificate reload failed, keeping previous", "error", err)
				continue
			}
			if r.reloads != nil {
				r.reloads()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)
		case <-r.done:
			return
		}
	}
}

func (r *Reloader) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	for _, f := range []string{r.certFile, r.keyFile} {
		if abs, err := filepath.Abs(f); err == nil && abs == name {
			return true
		}
	}
	return false
}

// Stop ends watching. It is safe to call more than once, and before Start.
func (r *Reloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.done)
		if r.watcher != nil {
			err = r.watcher.Close()
		}
	})
	return err
}
