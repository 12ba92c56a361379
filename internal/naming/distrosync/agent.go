package distrosync

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/yndnr/regmesh-go/internal/core/domain"
	"github.com/yndnr/regmesh-go/internal/distro"
)

// Members is the member view the agent needs.
type Members interface {
	HasMember(addr string) bool

	// IsUp reports whether the member is alive.
	IsUp(addr string) bool
}

// RPC carries distro requests to one peer. A request the peer handled but
// rejected is reported as an error.
type RPC interface {
	IsRunning(target string) bool
	SyncData(ctx context.Context, target string, data distro.Data) error
	VerifyData(ctx context.Context, target string, data distro.Data) error
	QueryData(ctx context.Context, target string, key distro.Key) (distro.Data, error)
	QuerySnapshot(ctx context.Context, target, resourceType string) (distro.Data, error)
}

// AgentConfig configures a TransportAgent.
type AgentConfig struct {
	// Limit caps outbound sync and verify requests per second across all
	// targets. Zero means unlimited.
	Limit rate.Limit
	Burst int

	Logger *slog.Logger
}

// TransportAgent sends client data to peers.
//
// A target that is not a member counts as delivered: nothing to do. A
// member that is down or has no running channel fails without an error.
type TransportAgent struct {
	members Members
	rpc     RPC
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ distro.TransportAgent = (*TransportAgent)(nil)

// NewTransportAgent creates an agent.
func NewTransportAgent(cfg AgentConfig, members Members, rpc RPC) *TransportAgent {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &TransportAgent{
		members: members,
		rpc:     rpc,
		limiter: rate.NewLimiter(limit, burst),
		logger:  cfg.Logger.With("component", "distro_client_agent"),
	}
}

func (a *TransportAgent) reachable(target string) bool {
	return a.members.IsUp(target) && a.rpc.IsRunning(target)
}

func (a *TransportAgent) SyncData(ctx context.Context, data distro.Data, target string) bool {
	return a.send(ctx, target, "sync", func(ctx context.Context) error {
		return a.rpc.SyncData(ctx, target, data)
	})
}

func (a *TransportAgent) SyncDataWithCallback(ctx context.Context, data distro.Data, target string, cb distro.Callback) {
	a.sendAsync(ctx, target, cb, func(ctx context.Context) error {
		return a.rpc.SyncData(ctx, target, data)
	})
}

func (a *TransportAgent) SyncVerifyData(ctx context.Context, data distro.Data, target string) bool {
	return a.send(ctx, target, "verify", func(ctx context.Context) error {
		return a.rpc.VerifyData(ctx, target, data)
	})
}

func (a *TransportAgent) SyncVerifyDataWithCallback(ctx context.Context, data distro.Data, target string, cb distro.Callback) {
	a.sendAsync(ctx, target, cb, func(ctx context.Context) error {
		return a.rpc.VerifyData(ctx, target, data)
	})
}

func (a *TransportAgent) send(ctx context.Context, target, what string, call func(context.Context) error) bool {
	if !a.members.HasMember(target) {
		return true
	}
	if !a.reachable(target) {
		a.logger.Debug("target unreachable", "target", target, "request", what)
		return false
	}
	if err := a.limiter.Wait(ctx); err != nil {
		a.logger.Warn("rate limited", "target", target, "request", what, "error", err)
		return false
	}
	if err := call(ctx); err != nil {
		a.logger.Warn("request failed", "target", target, "request", what, "error", err)
		return false
	}
	return true
}

// sendAsync checks the target synchronously and runs the request on its
// own goroutine.
func (a *TransportAgent) sendAsync(ctx context.Context, target string, cb distro.Callback, call func(context.Context) error) {
	if !a.members.HasMember(target) {
		cb.OnSuccess()
		return
	}
	if !a.reachable(target) {
		cb.OnFailed(nil)
		return
	}
	go func() {
		if err := a.limiter.Wait(ctx); err != nil {
			cb.OnFailed(err)
			return
		}
		if err := call(ctx); err != nil {
			cb.OnFailed(err)
			return
		}
		cb.OnSuccess()
	}()
}

func (a *TransportAgent) GetData(ctx context.Context, key distro.Key, target string) (distro.Data, error) {
	if err := a.checkQueryTarget(target); err != nil {
		return distro.Data{}, err
	}
	data, err := a.rpc.QueryData(ctx, target, key)
	if err != nil {
		return distro.Data{}, domain.ErrDistroTransport.
			WithDetails("query " + key.ID() + " from " + target).
			WithCause(err)
	}
	return data, nil
}

func (a *TransportAgent) GetDatumSnapshot(ctx context.Context, target string) (distro.Data, error) {
	if err := a.checkQueryTarget(target); err != nil {
		return distro.Data{}, err
	}
	data, err := a.rpc.QuerySnapshot(ctx, target, ResourceType)
	if err != nil {
		return distro.Data{}, domain.ErrDistroTransport.
			WithDetails("snapshot from " + target).
			WithCause(err)
	}
	return data, nil
}

func (a *TransportAgent) checkQueryTarget(target string) error {
	if !a.members.HasMember(target) {
		return domain.ErrDistroTransport.WithDetails(target).WithCause(domain.ErrMemberNotFound)
	}
	if !a.reachable(target) {
		return domain.ErrDistroTransport.WithDetails("target unreachable: " + target)
	}
	return nil
}
