package config

import (
	"time"

	"github.com/yndnr/regmesh-go/internal/core/client"
	"github.com/yndnr/regmesh-go/internal/distro"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8848"
	DefaultClusterAddr     = "127.0.0.1:7848"
	DefaultGossipPort      = 7946
	DefaultShutdownTimeout = 30 * time.Second

	DefaultHeartbeatInterval     = 5 * time.Second
	DefaultInstanceDeleteTimeout = 30 * time.Second
	DefaultExpiredCleanInterval  = 5 * time.Second
	DefaultWorkers               = 4

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPath = "/metrics"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ShutdownTimeout: DefaultShutdownTimeout,
			},
			Cluster: ClusterConfig{
				Addr: DefaultClusterAddr,
			},
		},
		Cluster: ClusterSection{
			GossipAddr: "0.0.0.0",
			GossipPort: DefaultGossipPort,
		},
		Distro: DistroSection{
			VerifyInterval:      distro.DefaultVerifyInterval,
			VerifyInitialDelay:  distro.DefaultVerifyInitialDelay,
			VerifyBatchSize:     distro.DefaultVerifyBatchSize,
			VerifyBatchInterval: distro.DefaultVerifyBatchInterval,
			SyncDelay:           distro.DefaultSyncDelay,
			SyncRetryDelay:      distro.DefaultSyncRetryDelay,
			SyncTimeout:         distro.DefaultSyncTimeout,
			LoadRetryDelay:      distro.DefaultLoadRetryDelay,
		},
		Naming: NamingSection{
			ClientExpiredTime:     client.DefaultClientExpiredTime,
			HeartbeatInterval:     DefaultHeartbeatInterval,
			HeartbeatTimeout:      client.DefaultHeartbeatTimeout,
			InstanceDeleteTimeout: DefaultInstanceDeleteTimeout,
			ConnectionClientTTL:   client.DefaultConnectionClientTTL,
			ExpiredCleanInterval:  DefaultExpiredCleanInterval,
			Workers:               DefaultWorkers,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}
