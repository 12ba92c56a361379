package config

import "time"

// ServerConfig is the root configuration for regmesh-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Cluster ClusterSection `koanf:"cluster"`
	Distro  DistroSection  `koanf:"distro"`
	Naming  NamingSection  `koanf:"naming"`
	Log     LogSection     `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Cluster ClusterConfig `koanf:"cluster"`
}

// HTTPConfig configures the naming HTTP API.
type HTTPConfig struct {
	Addr string `koanf:"addr"`

	// RateLimit caps requests per second across all clients. Zero disables
	// limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ClusterConfig configures the cluster RPC server. Its address is the
// member identity other nodes hash to and send distro traffic to.
type ClusterConfig struct {
	Addr string `koanf:"addr"`

	// AdvertiseAddr is announced to peers when Addr binds a wildcard.
	AdvertiseAddr string `koanf:"advertise_addr"`
}

// ClusterSection configures membership.
type ClusterSection struct {
	// NodeID is the unique identifier for this cluster node.
	// If empty, a random ID will be generated at startup.
	NodeID string `koanf:"node_id"`

	// GossipAddr is the Gossip TCP/UDP bind address (e.g., "192.168.1.10").
	GossipAddr string `koanf:"gossip_addr"`

	// GossipPort is the Gossip bind port (e.g., 5344).
	GossipPort int `koanf:"gossip_port"`

	// Seeds is the list of gossip addresses to join an existing cluster.
	// Format: ["192.168.1.10:5344", "192.168.1.11:5344"]
	Seeds []string `koanf:"seeds"`

	// Members is a fixed list of peer cluster addresses. When set, gossip
	// is not started.
	Members []string `koanf:"members"`

	// SyncRateLimit caps outbound distro requests per second. Zero means
	// unlimited.
	SyncRateLimit float64 `koanf:"sync_rate_limit"`
	SyncBurst     int     `koanf:"sync_burst"`
}

// DistroSection tunes the replication protocol.
type DistroSection struct {
	VerifyInterval      time.Duration `koanf:"verify_interval"`
	VerifyInitialDelay  time.Duration `koanf:"verify_initial_delay"`
	VerifyBatchSize     int           `koanf:"verify_batch_size"`
	VerifyBatchInterval time.Duration `koanf:"verify_batch_interval"`
	SyncDelay           time.Duration `koanf:"sync_delay"`
	SyncRetryDelay      time.Duration `koanf:"sync_retry_delay"`
	SyncTimeout         time.Duration `koanf:"sync_timeout"`
	LoadRetryDelay      time.Duration `koanf:"load_retry_delay"`
}

// NamingSection tunes the client registry.
type NamingSection struct {
	// ClientExpiredTime removes an ip-port client that stopped beating.
	ClientExpiredTime time.Duration `koanf:"client_expired_time"`

	// HeartbeatInterval is the period of every client's beat check.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// HeartbeatTimeout marks a silent instance unhealthy.
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout"`

	// InstanceDeleteTimeout deregisters a silent instance.
	InstanceDeleteTimeout time.Duration `koanf:"instance_delete_timeout"`

	// ConnectionClientTTL bounds an unverified synced connection client.
	ConnectionClientTTL time.Duration `koanf:"connection_client_ttl"`

	// ExpiredCleanInterval is the period of the replica sweep.
	ExpiredCleanInterval time.Duration `koanf:"expired_clean_interval"`

	// Workers is the number of scheduler workers running checks.
	Workers int `koanf:"workers"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}
