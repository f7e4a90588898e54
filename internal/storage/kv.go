package storage

import "time"

// Config configures the Badger engine.
type Config struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory (tests, ephemeral nodes).
	InMemory bool

	// GCInterval is the interval between value log GC runs.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC.
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	CacheSize int64

	// SyncWrites fsyncs after every write.
	SyncWrites bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   16 << 20,
		SyncWrites:  true,
	}
}

// Stats contains storage engine statistics.
type Stats struct {
	LSMSize      int64
	ValueLogSize int64
	// LastGCTime is the last GC run (Unix milliseconds), 0 if never.
	LastGCTime int64
}
