package clusterserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/regmesh-go/internal/distro"
)

// DefaultRPCTimeout bounds one cluster request when the caller's context
// has no deadline.
const DefaultRPCTimeout = 3 * time.Second

// ClientConfig configures an RPCClient.
type ClientConfig struct {
	// Self is this node's cluster address, sent as the request source.
	Self string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient connect.HTTPClient

	Timeout time.Duration
	Logger  *slog.Logger
}

type peerClient struct {
	syncData      *connect.Client[DataRequest, Ack]
	verifyData    *connect.Client[DataRequest, Ack]
	queryData     *connect.Client[QueryDataRequest, DataResponse]
	querySnapshot *connect.Client[QuerySnapshotRequest, DataResponse]
}

// RPCClient sends distro requests to peers. One set of Connect clients is
// kept per target. It implements distrosync.RPC.
type RPCClient struct {
	self       string
	httpClient connect.HTTPClient
	logger     *slog.Logger
	opts       []connect.ClientOption

	mu     sync.Mutex
	peers  map[string]*peerClient
	closed atomic.Bool
}

// NewRPCClient creates a client.
func NewRPCClient(cfg ClientConfig) *RPCClient {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRPCTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &RPCClient{
		self:       cfg.Self,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.With("component", "cluster_rpc_client"),
		opts: []connect.ClientOption{
			connect.WithCodec(jsonCodec{}),
			connect.WithInterceptors(NewSourceInterceptor(cfg.Self)),
		},
		peers: make(map[string]*peerClient),
	}
}

func baseURL(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	return "http://" + target
}

func (c *RPCClient) peer(target string) *peerClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.peers[target]; ok {
		return p
	}
	base := baseURL(target)
	p := &peerClient{
		syncData:      connect.NewClient[DataRequest, Ack](c.httpClient, base+ProcedureSyncData, c.opts...),
		verifyData:    connect.NewClient[DataRequest, Ack](c.httpClient, base+ProcedureVerifyData, c.opts...),
		queryData:     connect.NewClient[QueryDataRequest, DataResponse](c.httpClient, base+ProcedureQueryData, c.opts...),
		querySnapshot: connect.NewClient[QuerySnapshotRequest, DataResponse](c.httpClient, base+ProcedureQuerySnapshot, c.opts...),
	}
	c.peers[target] = p
	return p
}

// Forget drops the cached clients of a departed member.
func (c *RPCClient) Forget(target string) {
	c.mu.Lock()
	delete(c.peers, target)
	c.mu.Unlock()
}

// IsRunning reports whether requests can be sent. It turns false after
// Close.
func (c *RPCClient) IsRunning(target string) bool {
	return !c.closed.Load() && target != ""
}

// Close stops accepting requests.
func (c *RPCClient) Close() {
	c.closed.Store(true)
}

func (c *RPCClient) SyncData(ctx context.Context, target string, data distro.Data) error {
	resp, err := c.peer(target).syncData.CallUnary(ctx, connect.NewRequest(&DataRequest{Data: data}))
	if err != nil {
		return fmt.Errorf("sync %s to %s: %w", data.Key, target, err)
	}
	if !resp.Msg.OK {
		return fmt.Errorf("sync %s rejected by %s", data.Key, target)
	}
	return nil
}

func (c *RPCClient) VerifyData(ctx context.Context, target string, data distro.Data) error {
	resp, err := c.peer(target).verifyData.CallUnary(ctx, connect.NewRequest(&DataRequest{Data: data}))
	if err != nil {
		return fmt.Errorf("verify %s with %s: %w", data.Type, target, err)
	}
	if !resp.Msg.OK {
		return fmt.Errorf("verify of %s failed on %s", data.Type, target)
	}
	return nil
}

func (c *RPCClient) QueryData(ctx context.Context, target string, key distro.Key) (distro.Data, error) {
	resp, err := c.peer(target).queryData.CallUnary(ctx, connect.NewRequest(&QueryDataRequest{Key: key}))
	if err != nil {
		return distro.Data{}, fmt.Errorf("query %s from %s: %w", key, target, err)
	}
	return resp.Msg.Data, nil
}

func (c *RPCClient) QuerySnapshot(ctx context.Context, target, resourceType string) (distro.Data, error) {
	resp, err := c.peer(target).querySnapshot.CallUnary(ctx, connect.NewRequest(&QuerySnapshotRequest{ResourceType: resourceType}))
	if err != nil {
		return distro.Data{}, fmt.Errorf("snapshot %s from %s: %w", resourceType, target, err)
	}
	return resp.Msg.Data, nil
}
