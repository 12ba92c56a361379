package distro

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/infra/schedule"
)

// maxPullBacks bounds concurrent pull-back rounds. Each runs on its own
// goroutine so slow sources never hold scheduler workers.
const maxPullBacks = 4

// Protocol is the node's Distro endpoint. Outbound it pushes local changes
// and runs the verify cycle; inbound it applies pushes, answers verify,
// query and snapshot requests.
type Protocol struct {
	cfg       Config
	holder    *ComponentHolder
	members   Members
	scheduler *schedule.Scheduler
	metrics   Metrics
	logger    *slog.Logger

	syncer *syncEngine
	loader *loader
	verify *VerifyTimedTask

	mu      sync.Mutex
	handles []*schedule.Handle
	loaded  sync.Map // resource type -> struct{}

	// ctx lives until Stop and bounds the initial load and pull-backs.
	ctx    context.Context
	cancel context.CancelFunc
	pulls  *semaphore.Weighted

	started     atomic.Bool
	initialized atomic.Bool
}

// NewProtocol wires the protocol. metrics may be nil.
func NewProtocol(cfg Config, holder *ComponentHolder, members Members, scheduler *schedule.Scheduler, metrics Metrics) *Protocol {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	p := &Protocol{
		cfg:       cfg,
		holder:    holder,
		members:   members,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    cfg.Logger.With("component", "distro"),
		pulls:     semaphore.NewWeighted(maxPullBacks),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.syncer = newSyncEngine(cfg, holder, members, scheduler, metrics)
	p.loader = newLoader(cfg, holder, members)
	p.verify = NewVerifyTimedTask(cfg, holder, members, scheduler, metrics, p.isLoaded)
	return p
}

// Start launches the initial load and the verify cycle.
func (p *Protocol) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.scheduler.Submit(func() { p.runLoad(p.ctx) })
	p.track(p.scheduler.ScheduleWithFixedDelay(p.cfg.VerifyInitialDelay, p.cfg.VerifyInterval, p.verify.Run))

	p.logger.Info("distro protocol started",
		"verify_interval", p.cfg.VerifyInterval,
		"verify_batch_size", p.cfg.VerifyBatchSize,
	)
}

// Stop cancels the verify cycle, a running load and pending pull-backs.
// Pending pushes are dropped with the scheduler.
func (p *Protocol) Stop() {
	p.cancel()
	if !p.started.Load() {
		return
	}
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

func (p *Protocol) track(h *schedule.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = append(p.handles, h)
}

// IsInitialized reports whether every resource type finished its initial
// load.
func (p *Protocol) IsInitialized() bool {
	return p.initialized.Load()
}

func (p *Protocol) isLoaded(rt string) bool {
	_, ok := p.loaded.Load(rt)
	return ok
}

func (p *Protocol) runLoad(ctx context.Context) {
	var pending []string
	for _, rt := range p.holder.DataStorageTypes() {
		if !p.isLoaded(rt) {
			pending = append(pending, rt)
		}
	}
	for _, rt := range p.loader.load(ctx, pending) {
		p.loaded.Store(rt, struct{}{})
	}
	if ctx.Err() != nil {
		return
	}

	for _, rt := range pending {
		if !p.isLoaded(rt) {
			p.logger.Warn("initial load incomplete, retrying",
				"resource_type", rt,
				"retry_in", p.cfg.LoadRetryDelay,
			)
			p.track(p.scheduler.Schedule(p.cfg.LoadRetryDelay, func() { p.runLoad(ctx) }))
			return
		}
	}
	p.initialized.Store(true)
	p.logger.Info("distro initial load finished")
}

// Sync pushes key to every peer after the configured sync delay.
func (p *Protocol) Sync(key Key, op DataOperation) {
	p.SyncWithDelay(key, op, p.cfg.SyncDelay)
}

// SyncWithDelay pushes key to every peer after delay.
func (p *Protocol) SyncWithDelay(key Key, op DataOperation, delay time.Duration) {
	for _, target := range p.members.AllMembersWithoutSelf() {
		p.SyncToTarget(key, op, target, delay)
	}
}

// SyncToTarget pushes key to one peer after delay.
func (p *Protocol) SyncToTarget(key Key, op DataOperation, target string, delay time.Duration) {
	p.syncer.add(key.WithTarget(target), op, delay, nil)
}

// OnReceive applies a pushed ADD, CHANGE or DELETE record.
func (p *Protocol) OnReceive(data Data) bool {
	rt := data.Key.ResourceType
	processor, err := p.holder.FindDataProcessor(rt)
	if err != nil {
		p.logger.Warn("drop received data", "key", data.Key.ID(), "error", err)
		return false
	}
	return p.safeProcess(rt, func() bool { return processor.ProcessData(data) })
}

// OnVerify checks a batch of verify records sent by source. Records whose
// local copy is missing or stale are pulled back from source in the
// background. It returns true when every record matched.
func (p *Protocol) OnVerify(data Data, source string) bool {
	records, err := DecodeBatchVerifyData(data)
	if err != nil {
		p.logger.Warn("drop verify batch", "source", source, "error", err)
		return false
	}

	var failed []Key
	for _, record := range records {
		rt := record.Key.ResourceType
		processor, err := p.holder.FindDataProcessor(rt)
		if err != nil {
			p.logger.Warn("skip verify record", "key", record.Key.ID(), "error", err)
			continue
		}
		ok := p.safeProcess(rt, func() bool { return processor.ProcessVerifyData(record, source) })
		p.metrics.VerifyResult(rt, ok)
		if !ok {
			failed = append(failed, record.Key)
		}
	}

	if len(failed) > 0 {
		p.logger.Debug("verify mismatch, pulling back", "source", source, "keys", len(failed))
		go p.pullBack(failed, source)
	}
	return len(failed) == 0
}

func (p *Protocol) pullBack(keys []Key, source string) {
	if err := p.pulls.Acquire(p.ctx, 1); err != nil {
		return
	}
	defer p.pulls.Release(1)

	for _, key := range keys {
		if p.ctx.Err() != nil {
			return
		}
		agent, err := p.holder.FindTransportAgent(key.ResourceType)
		if err != nil {
			p.logger.Warn("skip pull-back", "key", key.ID(), "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.SyncTimeout)
		data, err := agent.GetData(ctx, key, source)
		cancel()
		if err != nil {
			p.logger.Warn("pull-back failed", "key", key.ID(), "source", source, "error", err)
			continue
		}
		if !p.OnReceive(data) {
			p.logger.Warn("pulled data not applied", "key", key.ID(), "source", source)
		}
	}
}

// OnQuery returns the local full record for key.
func (p *Protocol) OnQuery(key Key) (Data, error) {
	storage, err := p.holder.FindDataStorage(key.ResourceType)
	if err != nil {
		return Data{}, err
	}
	data, ok := storage.GetDistroData(key)
	if !ok {
		return Data{}, domain.ErrDataNotFound.WithDetails(key.ID())
	}
	return data, nil
}

// OnSnapshot returns the local snapshot of resourceType.
func (p *Protocol) OnSnapshot(resourceType string) (Data, error) {
	storage, err := p.holder.FindDataStorage(resourceType)
	if err != nil {
		return Data{}, err
	}
	return storage.GetDatumSnapshot()
}

// safeProcess runs fn and turns a panic into false.
func (p *Protocol) safeProcess(rt string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("distro processor panicked",
				"resource_type", rt,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	return fn()
}
