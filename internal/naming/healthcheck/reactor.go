package healthcheck

import (
	"log/slog"
	"time"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
	"github.com/yndnr/regmesh-go/internal/infra/schedule"
)

// Config tunes the beat checks.
type Config struct {
	// CheckInterval is the period of every client's beat check.
	CheckInterval time.Duration

	// HeartbeatTimeout marks an instance unhealthy.
	HeartbeatTimeout time.Duration

	// InstanceDeleteTimeout deregisters an instance.
	InstanceDeleteTimeout time.Duration

	// CleanInterval is the period of the replica sweep.
	CleanInterval time.Duration

	Logger *slog.Logger
}

// Defaults.
const (
	DefaultCheckInterval         = 5 * time.Second
	DefaultInstanceDeleteTimeout = 30 * time.Second
	DefaultCleanInterval         = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = client.DefaultHeartbeatTimeout
	}
	if c.InstanceDeleteTimeout <= 0 {
		c.InstanceDeleteTimeout = DefaultInstanceDeleteTimeout
	}
	if c.CleanInterval <= 0 {
		c.CleanInterval = DefaultCleanInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Metrics counts expirations. A nil Metrics is allowed.
type Metrics interface {
	ClientExpired(kind client.Kind)
}

type nopMetrics struct{}

func (nopMetrics) ClientExpired(client.Kind) {}

// Reactor schedules beat checks on a scheduler.
type Reactor struct {
	cfg       Config
	scheduler *schedule.Scheduler
	manager   clientmanager.Manager
	publisher clientmanager.Publisher
	metrics   Metrics
	logger    *slog.Logger
}

var _ clientmanager.HealthChecker = (*Reactor)(nil)

// NewReactor creates a Reactor. metrics may be nil.
func NewReactor(cfg Config, scheduler *schedule.Scheduler, manager clientmanager.Manager, publisher clientmanager.Publisher, metrics Metrics) *Reactor {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Reactor{
		cfg:       cfg,
		scheduler: scheduler,
		manager:   manager,
		publisher: publisher,
		metrics:   metrics,
		logger:    cfg.Logger.With("component", "health_check"),
	}
}

// ScheduleCheck starts the periodic beat check of c. The returned handle
// is stored on the client and cancelled when it is released.
func (r *Reactor) ScheduleCheck(c *client.IPPortBasedClient) client.Cancellable {
	return r.scheduler.ScheduleWithFixedDelay(r.cfg.CheckInterval, r.cfg.CheckInterval, r.newTask(c).Run)
}

func (r *Reactor) newTask(c *client.IPPortBasedClient) *ClientBeatCheckTask {
	return &ClientBeatCheckTask{
		client:    c,
		cfg:       r.cfg,
		clock:     r.scheduler.Clock(),
		manager:   r.manager,
		publisher: r.publisher,
		metrics:   r.metrics,
		logger:    r.logger,
	}
}
