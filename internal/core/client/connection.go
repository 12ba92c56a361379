package client

import (
	"time"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// DefaultConnectionClientTTL bounds how long a synced connection client
// survives without a successful verify.
const DefaultConnectionClientTTL = 3 * time.Minute

// ConnectionBasedClient is bound to a long-lived connection.
type ConnectionBasedClient struct {
	*base

	native bool
	ttl    time.Duration

	// guarded by base.mu
	lastRenew time.Time
}

var _ Client = (*ConnectionBasedClient)(nil)

// NewConnectionBasedClient creates a client for connectionID. native is
// true when the connection terminates on this node.
func NewConnectionBasedClient(connectionID string, native bool, revision uint64, ttl time.Duration, opts Options) *ConnectionBasedClient {
	if ttl <= 0 {
		ttl = DefaultConnectionClientTTL
	}
	b := newBase(connectionID, true, revision, opts)
	return &ConnectionBasedClient{
		base:      b,
		native:    native,
		ttl:       ttl,
		lastRenew: b.clock.Now(),
	}
}

func (c *ConnectionBasedClient) Kind() Kind { return KindConnection }

// IsNative reports whether the connection terminates on this node.
func (c *ConnectionBasedClient) IsNative() bool { return c.native }

// Renew records a successful verify of a synced copy.
func (c *ConnectionBasedClient) Renew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRenew = c.clock.Now()
}

// LastRenewTime returns the time of the last renew.
func (c *ConnectionBasedClient) LastRenewTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRenew
}

func (c *ConnectionBasedClient) AddServiceInstance(svc domain.Service, inst domain.InstancePublishInfo) bool {
	return c.addServiceInstance(svc, inst)
}

// IsExpire reports whether a synced copy went unrenewed for longer than
// the ttl. Native clients never expire; their lifetime is the connection's.
func (c *ConnectionBasedClient) IsExpire(now time.Time) bool {
	if c.native {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return now.Sub(c.lastRenew) > c.ttl
}

func (c *ConnectionBasedClient) Release() {
	c.release()
}
