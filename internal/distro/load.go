package distro

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// loadConcurrency bounds how many resource types load in parallel.
const loadConcurrency = 4

// loader pulls a full snapshot of every resource type from the first peer
// able to serve one. Types that fail are retried by the protocol until
// every type is loaded.
type loader struct {
	holder  *ComponentHolder
	members Members
	cfg     Config
	logger  *slog.Logger
}

func newLoader(cfg Config, holder *ComponentHolder, members Members) *loader {
	return &loader{
		holder:  holder,
		members: members,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "distro_load"),
	}
}

// load runs one round over types and returns those that finished.
func (l *loader) load(ctx context.Context, types []string) []string {
	done := make([]bool, len(types))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, rt := range types {
		g.Go(func() error {
			done[i] = l.loadType(gctx, rt)
			return nil
		})
	}
	_ = g.Wait()

	var finished []string
	for i, ok := range done {
		if ok {
			finished = append(finished, types[i])
		}
	}
	return finished
}

func (l *loader) loadType(ctx context.Context, rt string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("snapshot load panicked",
				"resource_type", rt,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()

	agent, err := l.holder.FindTransportAgent(rt)
	if err != nil {
		l.logger.Warn("nothing to load from", "resource_type", rt, "error", err)
		return true
	}
	processor, err := l.holder.FindDataProcessor(rt)
	if err != nil {
		l.logger.Warn("nothing to load into", "resource_type", rt, "error", err)
		return true
	}

	peers := l.members.AllMembersWithoutSelf()
	if len(peers) == 0 {
		l.logger.Info("no peers, initial load skipped", "resource_type", rt)
		return true
	}

	for _, peer := range peers {
		if ctx.Err() != nil {
			return false
		}
		reqCtx, cancel := context.WithTimeout(ctx, l.cfg.SyncTimeout)
		snapshot, err := agent.GetDatumSnapshot(reqCtx, peer)
		cancel()
		if err != nil {
			l.logger.Warn("snapshot request failed", "resource_type", rt, "target", peer, "error", err)
			continue
		}
		if processor.ProcessSnapshot(snapshot) {
			l.logger.Info("initial load finished", "resource_type", rt, "source", peer)
			return true
		}
		l.logger.Warn("snapshot not applied", "resource_type", rt, "source", peer)
	}
	return false
}
