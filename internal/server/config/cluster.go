package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
	"github.com/yndnr/regmesh-go/internal/distro"
	"github.com/yndnr/regmesh-go/internal/naming/distrosync"
	"github.com/yndnr/regmesh-go/internal/naming/healthcheck"
	"github.com/yndnr/regmesh-go/internal/server/clusterserver"
)

// NodeID returns the configured node id or generates one.
//
// Format: rmnode-<lowercase ulid>
func (c *ServerConfig) NodeID(logger *slog.Logger) string {
	if c.Cluster.NodeID != "" {
		return c.Cluster.NodeID
	}
	id := "rmnode-" + strings.ToLower(ulid.Make().String())
	if logger != nil {
		logger.Info("generated cluster node ID", "node_id", id)
	}
	c.Cluster.NodeID = id
	return id
}

// AdvertisedClusterAddr is the member identity of this node: the cluster
// RPC address peers dial.
func (c *ServerConfig) AdvertisedClusterAddr() string {
	if c.Server.Cluster.AdvertiseAddr != "" {
		return c.Server.Cluster.AdvertiseAddr
	}
	return c.Server.Cluster.Addr
}

// ToDiscoveryConfig converts the cluster section into gossip settings.
func (c *ServerConfig) ToDiscoveryConfig(rpcAddr string, logger *slog.Logger) (clusterserver.DiscoveryConfig, error) {
	if rpcAddr == "" {
		return clusterserver.DiscoveryConfig{}, fmt.Errorf("cluster rpc address is empty")
	}
	if host, _, err := net.SplitHostPort(rpcAddr); err != nil || host == "" || net.ParseIP(host).IsUnspecified() {
		return clusterserver.DiscoveryConfig{}, fmt.Errorf("cluster rpc address %q is not routable, set server.cluster.advertise_addr", rpcAddr)
	}
	return clusterserver.DiscoveryConfig{
		NodeID:    c.NodeID(logger),
		BindAddr:  c.Cluster.GossipAddr,
		BindPort:  c.Cluster.GossipPort,
		RPCAddr:   rpcAddr,
		SeedNodes: c.Cluster.Seeds,
		Logger:    logger,
	}, nil
}

// ToDistroConfig converts the distro section.
func (c *ServerConfig) ToDistroConfig(logger *slog.Logger) distro.Config {
	d := c.Distro
	return distro.Config{
		VerifyInterval:      d.VerifyInterval,
		VerifyInitialDelay:  d.VerifyInitialDelay,
		VerifyBatchSize:     d.VerifyBatchSize,
		VerifyBatchInterval: d.VerifyBatchInterval,
		SyncDelay:           d.SyncDelay,
		SyncRetryDelay:      d.SyncRetryDelay,
		SyncTimeout:         d.SyncTimeout,
		LoadRetryDelay:      d.LoadRetryDelay,
		Logger:              logger,
	}
}

// ToClientManagerConfig converts the naming section into client lifetimes.
func (c *ServerConfig) ToClientManagerConfig(logger *slog.Logger) clientmanager.Config {
	return clientmanager.Config{
		ConnectionClientTTL: c.Naming.ConnectionClientTTL,
		ClientExpiredTime:   c.Naming.ClientExpiredTime,
		Logger:              logger,
	}
}

// ToHealthCheckConfig converts the naming section into beat check timing.
func (c *ServerConfig) ToHealthCheckConfig(logger *slog.Logger) healthcheck.Config {
	return healthcheck.Config{
		CheckInterval:         c.Naming.HeartbeatInterval,
		HeartbeatTimeout:      c.Naming.HeartbeatTimeout,
		InstanceDeleteTimeout: c.Naming.InstanceDeleteTimeout,
		CleanInterval:         c.Naming.ExpiredCleanInterval,
		Logger:                logger,
	}
}

// ToAgentConfig converts the outbound distro rate limit.
func (c *ServerConfig) ToAgentConfig(logger *slog.Logger) distrosync.AgentConfig {
	return distrosync.AgentConfig{
		Limit:  rate.Limit(c.Cluster.SyncRateLimit),
		Burst:  c.Cluster.SyncBurst,
		Logger: logger,
	}
}
