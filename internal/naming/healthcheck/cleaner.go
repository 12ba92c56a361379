package healthcheck

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/infra/schedule"
)

// ExpiredSource lists and removes expired replicas.
// clientmanager.Delegate implements it.
type ExpiredSource interface {
	ExpiredClients(now time.Time) []string

	// RemoveIfExpired removes the client only if it is still expired,
	// so a replica renewed since it was listed is kept.
	RemoveIfExpired(clientID string, now time.Time) bool
}

// ExpiredClientCleaner periodically disconnects replicas whose owner
// stopped confirming them, including replicas whose removal never
// arrived.
type ExpiredClientCleaner struct {
	cfg       Config
	source    ExpiredSource
	scheduler *schedule.Scheduler
	clock     clockwork.Clock
	metrics   Metrics
	logger    *slog.Logger
	handle    *schedule.Handle
}

// NewExpiredClientCleaner creates a cleaner. metrics may be nil.
func NewExpiredClientCleaner(cfg Config, source ExpiredSource, scheduler *schedule.Scheduler, metrics Metrics) *ExpiredClientCleaner {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ExpiredClientCleaner{
		cfg:       cfg,
		source:    source,
		scheduler: scheduler,
		clock:     scheduler.Clock(),
		metrics:   metrics,
		logger:    cfg.Logger.With("component", "expired_client_cleaner"),
	}
}

// Start schedules the sweep.
func (c *ExpiredClientCleaner) Start() {
	c.handle = c.scheduler.ScheduleWithFixedDelay(c.cfg.CleanInterval, c.cfg.CleanInterval, c.Run)
}

// Stop cancels the sweep.
func (c *ExpiredClientCleaner) Stop() {
	if c.handle != nil {
		c.handle.Cancel()
	}
}

// Run performs one sweep.
func (c *ExpiredClientCleaner) Run() {
	removed := 0
	now := c.clock.Now()
	for _, id := range c.source.ExpiredClients(now) {
		if !c.source.RemoveIfExpired(id, now) {
			continue
		}
		removed++
		kind := client.KindConnection
		if client.IsIPPortClientID(id) {
			kind = client.KindIPPort
		}
		c.metrics.ClientExpired(kind)
	}
	if removed > 0 {
		c.logger.Info("expired replicas removed", "count", removed)
	}
}
