package client

import (
	"time"

	"github.com/yndnr/regmesh-go/internal/core/domain"
)

// Heartbeat defaults for ip-port clients.
const (
	DefaultClientExpiredTime = 30 * time.Second
	DefaultHeartbeatTimeout  = 15 * time.Second
)

// IPPortBasedClient is identified by its address and kept alive by
// heartbeats.
type IPPortBasedClient struct {
	*base

	responsibleID string
	expiredTime   time.Duration

	// guarded by base.mu
	lastHeartbeat time.Time
	beats         map[domain.Service]time.Time
	checkTask     Cancellable
}

var _ Client = (*IPPortBasedClient)(nil)

// NewIPPortBasedClient creates a client for an "ip:port#ephemeral" id.
func NewIPPortBasedClient(clientID string, revision uint64, expiredTime time.Duration, opts Options) (*IPPortBasedClient, error) {
	addr, ephemeral, err := ParseIPPortClientID(clientID)
	if err != nil {
		return nil, err
	}
	if expiredTime <= 0 {
		expiredTime = DefaultClientExpiredTime
	}
	b := newBase(clientID, ephemeral, revision, opts)
	return &IPPortBasedClient{
		base:          b,
		responsibleID: addr,
		expiredTime:   expiredTime,
		lastHeartbeat: b.clock.Now(),
		beats:         make(map[domain.Service]time.Time),
	}, nil
}

func (c *IPPortBasedClient) Kind() Kind { return KindIPPort }

// ResponsibleID is the key hashed to find the owning node: the client's
// "ip:port" without the ephemeral suffix.
func (c *IPPortBasedClient) ResponsibleID() string { return c.responsibleID }

func (c *IPPortBasedClient) AddServiceInstance(svc domain.Service, inst domain.InstancePublishInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectLocked("add_instance") {
		return false
	}
	now := c.clock.Now()
	c.publishers[svc] = inst.Clone()
	c.beats[svc] = now
	c.lastHeartbeat = now
	c.touchLocked()
	return true
}

func (c *IPPortBasedClient) RemoveServiceInstance(svc domain.Service) (domain.InstancePublishInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectLocked("remove_instance") {
		return domain.InstancePublishInfo{}, false
	}
	inst, ok := c.publishers[svc]
	if !ok {
		return domain.InstancePublishInfo{}, false
	}
	delete(c.publishers, svc)
	delete(c.beats, svc)
	c.touchLocked()
	return inst, true
}

// Heartbeat records a beat for svc. found is false when the client does not
// publish svc. changed is true when the beat turned an unhealthy instance
// healthy again.
func (c *IPPortBasedClient) Heartbeat(svc domain.Service) (changed, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectLocked("heartbeat") {
		return false, false
	}
	inst, ok := c.publishers[svc]
	if !ok {
		return false, false
	}
	now := c.clock.Now()
	c.beats[svc] = now
	c.lastHeartbeat = now
	if inst.Healthy {
		return false, true
	}
	inst.Healthy = true
	c.publishers[svc] = inst
	c.touchLocked()
	return true, true
}

// RefreshHeartbeat marks every published instance as just beaten. A replica
// calls it when verify confirms it matches the owner.
func (c *IPPortBasedClient) RefreshHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	for svc := range c.publishers {
		c.beats[svc] = now
	}
	c.lastHeartbeat = now
}

// LastHeartbeat returns the time of the most recent beat.
func (c *IPPortBasedClient) LastHeartbeat() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHeartbeat
}

// UnhealthyCandidates returns services whose instance is still marked
// healthy but has not beaten within timeout.
func (c *IPPortBasedClient) UnhealthyCandidates(now time.Time, timeout time.Duration) []domain.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Service
	for svc, inst := range c.publishers {
		if inst.Healthy && now.Sub(c.beats[svc]) > timeout {
			out = append(out, svc)
		}
	}
	return out
}

// ExpiredServices returns services whose instance has not beaten within
// timeout, healthy or not.
func (c *IPPortBasedClient) ExpiredServices(now time.Time, timeout time.Duration) []domain.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Service
	for svc := range c.publishers {
		if now.Sub(c.beats[svc]) > timeout {
			out = append(out, svc)
		}
	}
	return out
}

// MarkUnhealthy flips svc's instance to unhealthy. It returns false when
// nothing changed.
func (c *IPPortBasedClient) MarkUnhealthy(svc domain.Service) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectLocked("mark_unhealthy") {
		return false
	}
	inst, ok := c.publishers[svc]
	if !ok || !inst.Healthy {
		return false
	}
	inst.Healthy = false
	c.publishers[svc] = inst
	c.touchLocked()
	return true
}

// IsExpire reports whether the client stopped beating for longer than its
// expired time.
func (c *IPPortBasedClient) IsExpire(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ephemeral && now.Sub(c.lastHeartbeat) > c.expiredTime
}

// SetHealthCheckTask attaches the periodic beat check. A previous task is
// cancelled; on a released client the new task is cancelled at once.
func (c *IPPortBasedClient) SetHealthCheckTask(task Cancellable) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		task.Cancel()
		return
	}
	prev := c.checkTask
	c.checkTask = task
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}

// Release cancels the health check task and makes the client terminal.
func (c *IPPortBasedClient) Release() {
	if !c.release() {
		return
	}
	c.mu.Lock()
	task := c.checkTask
	c.checkTask = nil
	c.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
}
