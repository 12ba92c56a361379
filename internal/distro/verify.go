package distro

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/yndnr/regmesh-go/internal/infra/schedule"
)

// VerifyTimedTask runs one verify cycle: it collects the verify records of
// every resource type and dispatches them to every peer.
type VerifyTimedTask struct {
	holder    *ComponentHolder
	members   Members
	scheduler *schedule.Scheduler
	cfg       Config
	metrics   Metrics
	logger    *slog.Logger

	// ready reports whether a resource type finished its initial load.
	ready func(resourceType string) bool
}

// NewVerifyTimedTask creates the task. ready may be nil.
func NewVerifyTimedTask(cfg Config, holder *ComponentHolder, members Members, scheduler *schedule.Scheduler, metrics Metrics, ready func(string) bool) *VerifyTimedTask {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &VerifyTimedTask{
		holder:    holder,
		members:   members,
		scheduler: scheduler,
		cfg:       cfg,
		metrics:   metrics,
		logger:    cfg.Logger.With("component", "distro_verify"),
		ready:     ready,
	}
}

// Run executes one cycle. It never panics.
func (t *VerifyTimedTask) Run() {
	targets := t.members.AllMembersWithoutSelf()
	if len(targets) == 0 {
		return
	}
	for _, rt := range t.holder.DataStorageTypes() {
		if t.ready != nil && !t.ready(rt) {
			t.logger.Debug("skip verify, initial load not finished", "resource_type", rt)
			continue
		}
		t.verifyType(rt, targets)
	}
}

func (t *VerifyTimedTask) verifyType(rt string, targets []string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("verify collect panicked",
				"resource_type", rt,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	storage, err := t.holder.FindDataStorage(rt)
	if err != nil {
		t.logger.Warn("skip verify", "resource_type", rt, "error", err)
		return
	}
	agent, err := t.holder.FindTransportAgent(rt)
	if err != nil {
		t.logger.Warn("skip verify", "resource_type", rt, "error", err)
		return
	}
	records, err := storage.GetVerifyData()
	if err != nil {
		t.logger.Warn("collect verify data failed", "resource_type", rt, "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	t.logger.Debug("dispatching verify data",
		"resource_type", rt,
		"records", len(records),
		"targets", len(targets),
	)
	for _, target := range targets {
		task := NewVerifyExecuteTask(t.cfg, agent, rt, target, records, t.scheduler, t.metrics)
		t.scheduler.Submit(task.Run)
	}
}

// VerifyExecuteTask sends verify records to one target in batches of at
// most VerifyBatchSize, batch i leaving i*VerifyBatchInterval after the
// first.
type VerifyExecuteTask struct {
	agent        TransportAgent
	resourceType string
	target       string
	records      []Data
	batchSize    int
	interval     time.Duration
	timeout      time.Duration
	scheduler    *schedule.Scheduler
	metrics      Metrics
	logger       *slog.Logger
}

// NewVerifyExecuteTask creates the task.
func NewVerifyExecuteTask(cfg Config, agent TransportAgent, resourceType, target string, records []Data, scheduler *schedule.Scheduler, metrics Metrics) *VerifyExecuteTask {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &VerifyExecuteTask{
		agent:        agent,
		resourceType: resourceType,
		target:       target,
		records:      records,
		batchSize:    cfg.VerifyBatchSize,
		interval:     cfg.VerifyBatchInterval,
		timeout:      cfg.SyncTimeout,
		scheduler:    scheduler,
		metrics:      metrics,
		logger:       cfg.Logger.With("component", "distro_verify", "target", target),
	}
}

// Batches splits the records the way Run sends them.
func (t *VerifyExecuteTask) Batches() [][]Data {
	return slices.Collect(slices.Chunk(t.records, t.batchSize))
}

// Run schedules every batch and returns without waiting.
func (t *VerifyExecuteTask) Run() {
	for i, batch := range t.Batches() {
		t.scheduler.Schedule(time.Duration(i)*t.interval, func() {
			t.send(batch)
		})
	}
}

// send hands the batch to the agent's asynchronous path, so a slow target
// never holds a scheduler worker.
func (t *VerifyExecuteTask) send(batch []Data) {
	data, err := NewBatchVerifyData(t.resourceType, batch)
	if err != nil {
		t.logger.Error("build verify batch failed", "error", err)
		return
	}

	t.metrics.VerifyBatchSent(t.resourceType)
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	t.agent.SyncVerifyDataWithCallback(ctx, data, t.target, CallbackFuncs{
		Success: cancel,
		Failed: func(err error) {
			cancel()
			t.logger.Debug("verify batch not accepted",
				"resource_type", t.resourceType,
				"records", len(batch),
				"error", err,
			)
		},
	})
}
