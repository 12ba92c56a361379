package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyCluster(&cfg.Cluster); err != nil {
		return err
	}
	if err := verifyDistro(&cfg.Distro); err != nil {
		return err
	}
	if err := verifyNaming(&cfg.Naming); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if err := verifyAddr("server.http.addr", cfg.HTTP.Addr); err != nil {
		return err
	}
	if err := verifyAddr("server.cluster.addr", cfg.Cluster.Addr); err != nil {
		return err
	}
	if cfg.Cluster.AdvertiseAddr != "" {
		if err := verifyAddr("server.cluster.advertise_addr", cfg.Cluster.AdvertiseAddr); err != nil {
			return err
		}
	}
	if cfg.HTTP.Addr == cfg.Cluster.Addr {
		return fmt.Errorf("server.http.addr and server.cluster.addr both use %s", cfg.HTTP.Addr)
	}
	if cfg.HTTP.RateLimit < 0 || cfg.HTTP.RateBurst < 0 {
		return errors.New("server.http.rate_limit and rate_burst must not be negative")
	}
	return nil
}

func verifyCluster(cfg *ClusterSection) error {
	if cfg.GossipPort < 0 || cfg.GossipPort > 65535 {
		return fmt.Errorf("cluster.gossip_port %d out of range", cfg.GossipPort)
	}
	if len(cfg.Members) > 0 && len(cfg.Seeds) > 0 {
		return errors.New("cluster.members and cluster.seeds are mutually exclusive")
	}
	for _, m := range cfg.Members {
		if err := verifyAddr("cluster.members", m); err != nil {
			return err
		}
	}
	if cfg.SyncRateLimit < 0 || cfg.SyncBurst < 0 {
		return errors.New("cluster.sync_rate_limit and sync_burst must not be negative")
	}
	return nil
}

func verifyDistro(cfg *DistroSection) error {
	if cfg.VerifyBatchSize < 1 {
		return errors.New("distro.verify_batch_size must be at least 1")
	}
	return positive(map[string]time.Duration{
		"distro.verify_interval":  cfg.VerifyInterval,
		"distro.sync_retry_delay": cfg.SyncRetryDelay,
		"distro.sync_timeout":     cfg.SyncTimeout,
		"distro.load_retry_delay": cfg.LoadRetryDelay,
	})
}

func verifyNaming(cfg *NamingSection) error {
	if err := positive(map[string]time.Duration{
		"naming.client_expired_time":     cfg.ClientExpiredTime,
		"naming.heartbeat_interval":      cfg.HeartbeatInterval,
		"naming.heartbeat_timeout":       cfg.HeartbeatTimeout,
		"naming.instance_delete_timeout": cfg.InstanceDeleteTimeout,
		"naming.connection_client_ttl":   cfg.ConnectionClientTTL,
		"naming.expired_clean_interval":  cfg.ExpiredCleanInterval,
	}); err != nil {
		return err
	}
	if cfg.InstanceDeleteTimeout < cfg.HeartbeatTimeout {
		return errors.New("naming.instance_delete_timeout must not be shorter than naming.heartbeat_timeout")
	}
	if cfg.Workers < 1 {
		return errors.New("naming.workers must be at least 1")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logger.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

func verifyAddr(key, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%s: invalid address %q: %w", key, addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%s: invalid port in %q", key, addr)
	}
	return nil
}

func positive(values map[string]time.Duration) error {
	for key, v := range values {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, v)
		}
	}
	return nil
}
