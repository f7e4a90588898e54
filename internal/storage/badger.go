package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("storage engine closed")
)

// Engine is a key-value store backed by Badger v3.
type Engine struct {
	db     *badger.DB
	cfg    Config
	logger logger.Logger

	lastGCTime atomic.Int64
	closed     atomic.Bool

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Open opens (or creates) the Badger database described by cfg.
func Open(cfg Config, log logger.Logger) (*Engine, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	log = logger.Component(log, "storage")

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: log}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	e := &Engine{
		db:     db,
		cfg:    cfg,
		logger: log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	// Value log GC is not supported in memory mode.
	if cfg.InMemory || cfg.GCInterval <= 0 {
		close(e.doneCh)
	} else {
		go e.gcLoop()
	}

	log.Info("badger engine started", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return e, nil
}

// Get retrieves a value by key.
func (e *Engine) Get(_ context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Set stores a key-value pair.
func (e *Engine) Set(_ context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key. Deleting a missing key is not an error.
func (e *Engine) Delete(_ context.Context, key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Scan calls fn for every key with the given prefix, in key order.
// fn returns false to stop the iteration.
func (e *Engine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				break
			}
		}
		return nil
	})
}

// GC runs value log garbage collection until nothing more can be
// rewritten. It returns the number of rewritten log files.
func (e *Engine) GC(ctx context.Context) (int, error) {
	if e.cfg.InMemory {
		return 0, nil
	}
	runs := 0
	for ctx.Err() == nil {
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}
	e.lastGCTime.Store(time.Now().UnixMilli())
	e.logger.Debug("gc completed", "rewrites", runs)
	return runs, nil
}

// Stats returns storage statistics.
func (e *Engine) Stats() Stats {
	lsm, vlog := e.db.Size()
	return Stats{LSMSize: lsm, ValueLogSize: vlog, LastGCTime: e.lastGCTime.Load()}
}

// Close stops the GC loop and closes the database.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stopCh)
		<-e.doneCh
		if cerr := e.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
			return
		}
		e.logger.Info("badger engine closed")
	})
	return err
}

// RegisterMetrics registers storage size gauges with registry.
func (e *Engine) RegisterMetrics(registry prometheus.Registerer) {
	gauge := func(name, help string, fn func(Stats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "wsmesh",
			Subsystem: "badger",
			Name:      name,
			Help:      help,
		}, func() float64 {
			if e.closed.Load() {
				return 0
			}
			return fn(e.Stats())
		})
	}
	registry.MustRegister(
		gauge("lsm_size_bytes", "Badger LSM tree size in bytes",
			func(s Stats) float64 { return float64(s.LSMSize) }),
		gauge("value_log_size_bytes", "Badger value log size in bytes",
			func(s Stats) float64 { return float64(s.ValueLogSize) }),
		gauge("last_gc_timestamp_seconds", "Unix time of the last value log GC",
			func(s Stats) float64 { return float64(s.LastGCTime) / 1000 }),
	)
}

func (e *Engine) gcLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := e.GC(ctx); err != nil {
				e.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
