package distro

import (
	"log/slog"
	"time"
)

// Config tunes the protocol.
type Config struct {
	// VerifyInterval is the delay between two verify cycles.
	VerifyInterval time.Duration

	// VerifyInitialDelay delays the first verify cycle after Start.
	VerifyInitialDelay time.Duration

	// VerifyBatchSize is the maximum number of verify records per request.
	VerifyBatchSize int

	// VerifyBatchInterval paces consecutive verify batches to one target.
	VerifyBatchInterval time.Duration

	// SyncDelay merges bursts of changes to the same key.
	SyncDelay time.Duration

	// SyncRetryDelay is the first retry delay of a failed sync. Later
	// retries back off exponentially.
	SyncRetryDelay time.Duration

	// SyncTimeout bounds every outbound request.
	SyncTimeout time.Duration

	// LoadRetryDelay is the pause between two rounds of the initial load.
	LoadRetryDelay time.Duration

	Logger *slog.Logger
}

// Defaults.
const (
	DefaultVerifyInterval      = 5 * time.Second
	DefaultVerifyInitialDelay  = 5 * time.Second
	DefaultVerifyBatchSize     = 50
	DefaultVerifyBatchInterval = 20 * time.Millisecond
	DefaultSyncDelay           = time.Second
	DefaultSyncRetryDelay      = 3 * time.Second
	DefaultSyncTimeout         = 3 * time.Second
	DefaultLoadRetryDelay      = 30 * time.Second
)

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		VerifyInterval:      DefaultVerifyInterval,
		VerifyInitialDelay:  DefaultVerifyInitialDelay,
		VerifyBatchSize:     DefaultVerifyBatchSize,
		VerifyBatchInterval: DefaultVerifyBatchInterval,
		SyncDelay:           DefaultSyncDelay,
		SyncRetryDelay:      DefaultSyncRetryDelay,
		SyncTimeout:         DefaultSyncTimeout,
		LoadRetryDelay:      DefaultLoadRetryDelay,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VerifyInterval <= 0 {
		c.VerifyInterval = d.VerifyInterval
	}
	if c.VerifyInitialDelay < 0 {
		c.VerifyInitialDelay = d.VerifyInitialDelay
	}
	if c.VerifyBatchSize <= 0 {
		c.VerifyBatchSize = d.VerifyBatchSize
	}
	if c.VerifyBatchInterval < 0 {
		c.VerifyBatchInterval = d.VerifyBatchInterval
	}
	if c.SyncDelay < 0 {
		c.SyncDelay = d.SyncDelay
	}
	if c.SyncRetryDelay <= 0 {
		c.SyncRetryDelay = d.SyncRetryDelay
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = d.SyncTimeout
	}
	if c.LoadRetryDelay <= 0 {
		c.LoadRetryDelay = d.LoadRetryDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Members is the read-only view of the cluster the protocol needs.
type Members interface {
	// Self returns this node's address.
	Self() string

	// AllMembersWithoutSelf returns the addresses of every peer.
	AllMembersWithoutSelf() []string

	// HasMember reports whether addr is currently a member.
	HasMember(addr string) bool
}

// Metrics receives protocol counters. A nil Metrics is allowed.
type Metrics interface {
	SyncResult(resourceType string, ok bool)
	VerifyResult(resourceType string, ok bool)
	VerifyBatchSent(resourceType string)
}

type nopMetrics struct{}

func (nopMetrics) SyncResult(string, bool)   {}
func (nopMetrics) VerifyResult(string, bool) {}
func (nopMetrics) VerifyBatchSent(string)    {}
