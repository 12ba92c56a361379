package distro

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/yndnr/regmesh-go/internal/infra/schedule"
)

// syncRetryMaxElapsed stops retrying a failed sync. Verify repairs
// whatever is still missing afterwards.
const syncRetryMaxElapsed = 2 * time.Minute

// syncTask is one pending push of a key to one target.
type syncTask struct {
	key   Key
	op    DataOperation
	retry *backoff.ExponentialBackOff // nil until the first failure
}

// syncEngine delays, merges and retries pushes. Pushes of the same key to
// the same target that arrive while one is pending collapse into one, the
// latest operation winning.
type syncEngine struct {
	cfg       Config
	holder    *ComponentHolder
	members   Members
	scheduler *schedule.Scheduler
	clock     clockwork.Clock
	metrics   Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*syncTask
}

func newSyncEngine(cfg Config, holder *ComponentHolder, members Members, scheduler *schedule.Scheduler, metrics Metrics) *syncEngine {
	return &syncEngine{
		cfg:       cfg,
		holder:    holder,
		members:   members,
		scheduler: scheduler,
		clock:     scheduler.Clock(),
		metrics:   metrics,
		logger:    cfg.Logger.With("component", "distro_sync"),
		pending:   make(map[string]*syncTask),
	}
}

// add queues key (routed by its TargetServer) for a push after delay.
// A retry is dropped when a newer push of the same key is pending.
func (e *syncEngine) add(key Key, op DataOperation, delay time.Duration, retry *backoff.ExponentialBackOff) {
	id := key.String()

	e.mu.Lock()
	if cur, ok := e.pending[id]; ok {
		if retry != nil {
			e.mu.Unlock()
			return
		}
		if cur.retry == nil {
			cur.op = op
			e.mu.Unlock()
			return
		}
		// a fresh change replaces a waiting retry
	}
	t := &syncTask{key: key, op: op, retry: retry}
	e.pending[id] = t
	e.mu.Unlock()

	e.scheduler.Schedule(delay, func() { e.flush(id, t) })
}

// pendingCount returns the number of queued pushes.
func (e *syncEngine) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *syncEngine) flush(id string, t *syncTask) {
	e.mu.Lock()
	if e.pending[id] != t {
		e.mu.Unlock()
		return
	}
	delete(e.pending, id)
	e.mu.Unlock()

	e.execute(t)
}

func (e *syncEngine) execute(t *syncTask) {
	rt := t.key.ResourceType
	target := t.key.TargetServer
	if !e.members.HasMember(target) {
		e.logger.Debug("drop sync, target left", "key", t.key.ID(), "target", target)
		return
	}

	agent, err := e.holder.FindTransportAgent(rt)
	if err != nil {
		e.logger.Warn("drop sync", "key", t.key.ID(), "error", err)
		return
	}

	data, ok := e.buildData(t)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SyncTimeout)
	agent.SyncDataWithCallback(ctx, data, target, CallbackFuncs{
		Success: func() {
			cancel()
			e.metrics.SyncResult(rt, true)
		},
		Failed: func(err error) {
			cancel()
			e.metrics.SyncResult(rt, false)
			e.retryLater(t, err)
		},
	})
}

func (e *syncEngine) buildData(t *syncTask) (Data, bool) {
	if t.op == OpDelete {
		return NewData(NewKey(t.key.ResourceKey, t.key.ResourceType), OpDelete, nil), true
	}

	storage, err := e.holder.FindDataStorage(t.key.ResourceType)
	if err != nil {
		e.logger.Warn("drop sync", "key", t.key.ID(), "error", err)
		return Data{}, false
	}
	data, ok := storage.GetDistroData(t.key)
	if !ok {
		// Removed meanwhile; the removal is pushed on its own.
		e.logger.Debug("drop sync, data gone", "key", t.key.ID())
		return Data{}, false
	}
	data.Type = t.op
	return data, true
}

func (e *syncEngine) retryLater(t *syncTask, err error) {
	b := t.retry
	if b == nil {
		b = e.newBackoff()
	}
	delay := b.NextBackOff()
	if delay == backoff.Stop {
		e.logger.Warn("sync retries exhausted, leaving repair to verify",
			"key", t.key.ID(),
			"target", t.key.TargetServer,
			"error", err,
		)
		return
	}
	e.logger.Warn("sync failed, will retry",
		"key", t.key.ID(),
		"target", t.key.TargetServer,
		"retry_in", delay,
		"error", err,
	)
	e.add(t.key, t.op, delay, b)
}

func (e *syncEngine) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.SyncRetryDelay
	b.RandomizationFactor = 0.2
	b.Multiplier = 2
	b.MaxInterval = 10 * e.cfg.SyncRetryDelay
	b.MaxElapsedTime = syncRetryMaxElapsed
	b.Clock = e.clock
	b.Reset()
	return b
}
