package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/regmesh-go/internal/core/clientmanager"
	"github.com/yndnr/regmesh-go/internal/core/index"
	"github.com/yndnr/regmesh-go/internal/core/operation"
	"github.com/yndnr/regmesh-go/internal/distro"
	"github.com/yndnr/regmesh-go/internal/distro/mapper"
	"github.com/yndnr/regmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/regmesh-go/internal/infra/confloader"
	"github.com/yndnr/regmesh-go/internal/infra/notify"
	"github.com/yndnr/regmesh-go/internal/infra/schedule"
	"github.com/yndnr/regmesh-go/internal/infra/shutdown"
	"github.com/yndnr/regmesh-go/internal/naming/distrosync"
	"github.com/yndnr/regmesh-go/internal/naming/healthcheck"
	"github.com/yndnr/regmesh-go/internal/server/clusterserver"
	"github.com/yndnr/regmesh-go/internal/server/config"
	"github.com/yndnr/regmesh-go/internal/server/httpserver"
	"github.com/yndnr/regmesh-go/internal/telemetry/logger"
	"github.com/yndnr/regmesh-go/internal/telemetry/metric"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "regmesh-server",
		Usage:   "regmesh naming registry node",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"REGMESH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "node-id",
				Usage: "cluster node id (generated when empty)",
			},
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "naming API listen address",
			},
			&cli.StringFlag{
				Name:  "cluster-addr",
				Usage: "cluster RPC listen address",
			},
			&cli.StringSliceFlag{
				Name:  "seeds",
				Usage: "gossip addresses of existing members",
			},
			&cli.StringSliceFlag{
				Name:  "members",
				Usage: "fixed peer cluster addresses, disables gossip",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Action: run,
	}
}

// overrides maps the command line flags that were set onto config keys.
func overrides(c *cli.Context) map[string]any {
	out := map[string]any{}
	for flag, key := range map[string]string{
		"node-id":      "cluster.node_id",
		"http-addr":    "server.http.addr",
		"cluster-addr": "server.cluster.addr",
		"log-level":    "log.level",
	} {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	if c.IsSet("seeds") {
		out["cluster.seeds"] = c.StringSlice("seeds")
	}
	if c.IsSet("members") {
		out["cluster.members"] = c.StringSlice("members")
	}
	return out
}

// loadConfig loads defaults, the file, the environment and flags, in
// that order of priority.
func loadConfig(c *cli.Context) (*config.ServerConfig, *confloader.Loader, error) {
	opts := []confloader.Option{confloader.WithOverrides(overrides(c))}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func run(c *cli.Context) error {
	cfg, loader, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	logger.SetDefault(log)

	info := buildinfo.Get()
	nodeID := cfg.NodeID(log)
	self := cfg.AdvertisedClusterAddr()
	log.Info("starting regmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"node_id", nodeID,
		"cluster_addr", self,
		"config", loader.FilePath())

	sd := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)
	metrics := metric.NewRegistry()

	// Membership and ownership.
	members := clusterserver.NewMemberManager(clusterserver.Member{NodeID: nodeID, Addr: self}, log)
	ring := mapper.New(self, mapper.WithLogger(log))
	members.OnChange(ring.OnMembersChanged)

	// Client registry.
	center := notify.NewCenter(notify.WithLogger(log))
	sd.OnShutdown("notify center", func(context.Context) error {
		center.Shutdown()
		return nil
	})

	namingSched := schedule.New(schedule.Config{Name: "naming", Workers: cfg.Naming.Workers, Logger: log})
	distroSched := schedule.New(schedule.Config{Name: "distro", Logger: log})
	sd.OnShutdown("schedulers", func(context.Context) error {
		namingSched.Stop()
		distroSched.Stop()
		return nil
	})

	cmCfg := cfg.ToClientManagerConfig(log)
	ipPort := clientmanager.NewEphemeralIPPortManager(cmCfg, center, ring)
	clients := clientmanager.NewDelegate(clientmanager.NewConnectionBasedManager(cmCfg, center), ipPort)

	hcCfg := cfg.ToHealthCheckConfig(log)
	ipPort.SetHealthChecker(healthcheck.NewReactor(hcCfg, namingSched, clients, center, metrics))
	cleaner := healthcheck.NewExpiredClientCleaner(hcCfg, clients, namingSched, metrics)

	services := index.New(log)
	center.RegisterSubscriber(services)

	// Distro replication.
	rpc := clusterserver.NewRPCClient(clusterserver.ClientConfig{
		Self:    self,
		Timeout: cfg.Distro.SyncTimeout,
		Logger:  log,
	})
	holder := distro.NewComponentHolder()
	protocol := distro.NewProtocol(cfg.ToDistroConfig(log), holder, members, distroSched, metrics)
	processor := distrosync.NewProcessor(clients, protocol, center, log)
	holder.RegisterDataStorage(distrosync.ResourceType, distrosync.NewStorage(clients, log))
	holder.RegisterTransportAgent(distrosync.ResourceType, distrosync.NewTransportAgent(cfg.ToAgentConfig(log), members, rpc))
	holder.RegisterDataProcessor(processor)
	center.RegisterSubscriber(processor)

	naming := operation.New(clients, ring, services, center, log)

	clusterSrv := clusterserver.NewServer(clusterserver.ServerConfig{
		Addr:    cfg.Server.Cluster.Addr,
		Handler: protocol,
		Logger:  log,
	})
	// abort runs the hooks registered so far.
	abort := func(err error) error {
		sd.Shutdown()
		return err
	}

	if err := clusterSrv.Listen(); err != nil {
		return abort(err)
	}
	sd.OnShutdown("cluster server", func(ctx context.Context) error {
		defer rpc.Close()
		return clusterSrv.Shutdown(ctx)
	})

	if err := startMembership(c.Context, cfg, self, members, sd, log); err != nil {
		return abort(err)
	}

	protocol.Start()
	cleaner.Start()
	sd.OnShutdown("distro", func(context.Context) error {
		cleaner.Stop()
		protocol.Stop()
		return nil
	})

	// Naming API.
	metrics.MustRegister(metric.NewCollector(clients, members))
	routerCfg := &httpserver.RouterConfig{
		Naming:    naming,
		Cluster:   members,
		Ready:     protocol.IsInitialized,
		Observer:  metrics,
		RateLimit: cfg.Server.HTTP.RateLimit,
		RateBurst: cfg.Server.HTTP.RateBurst,
		Logger:    log,
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = metrics.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	httpSrv := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg), log)
	if err := httpSrv.Listen(); err != nil {
		return abort(err)
	}
	sd.OnShutdown("http server", httpSrv.Shutdown)

	if path := loader.FilePath(); path != "" {
		watchConfig(path, loader, cfg.Log.Level, sd, log)
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(clusterSrv.Serve)
	g.Go(httpSrv.Serve)
	g.Go(func() error { return sd.Wait(ctx) })

	log.Info("server started",
		"http_addr", httpSrv.Addr(),
		"cluster_addr", clusterSrv.Addr())
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// startMembership fills the member list, from the fixed list when one is
// configured and from gossip otherwise.
func startMembership(ctx context.Context, cfg *config.ServerConfig, self string, members *clusterserver.MemberManager, sd *shutdown.Handler, log *slog.Logger) error {
	if len(cfg.Cluster.Members) > 0 {
		members.SetStatic(cfg.Cluster.Members)
		log.Info("using static member list", "members", members.AllMembers())
		return nil
	}

	dcfg, err := cfg.ToDiscoveryConfig(self, log)
	if err != nil {
		return err
	}
	discovery, err := clusterserver.NewDiscovery(dcfg)
	if err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	sd.OnShutdown("discovery", func(context.Context) error {
		if err := discovery.Leave(); err != nil {
			log.Warn("leave cluster", "error", err)
		}
		return discovery.Shutdown()
	})
	members.Attach(discovery)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	join := func() error { return discovery.Join(cfg.Cluster.Seeds) }
	onRetry := func(err error, next time.Duration) {
		log.Warn("join cluster failed, retrying", "error", err, "retry_in", next)
	}
	if err := backoff.RetryNotify(join, backoff.WithContext(b, ctx), onRetry); err != nil {
		// A lone node keeps running; peers that start later join it.
		log.Error("could not join seed nodes", "seeds", cfg.Cluster.Seeds, "error", err)
	}
	return nil
}

// watchConfig applies log level changes made to the config file.
func watchConfig(path string, loader *confloader.Loader, level string, sd *shutdown.Handler, log *slog.Logger) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return
	}
	if err := w.Watch(path); err != nil {
		log.Warn("config watcher unavailable", "path", path, "error", err)
		w.Stop()
		return
	}
	w.OnChange(confloader.ReloadLogLevel(loader, level, logger.SetLevel, log))
	w.StartAsync()
	sd.OnShutdown("config watcher", func(context.Context) error { return w.Stop() })
}
