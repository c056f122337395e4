package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vrischmann/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/Sh00ty/host-orchestrator/internal/api"
	"github.com/Sh00ty/host-orchestrator/internal/audit"
	"github.com/Sh00ty/host-orchestrator/internal/clustercontroller"
	"github.com/Sh00ty/host-orchestrator/internal/flags"
	"github.com/Sh00ty/host-orchestrator/internal/metrics"
	"github.com/Sh00ty/host-orchestrator/internal/monitor"
	"github.com/Sh00ty/host-orchestrator/internal/orchestrator"
	"github.com/Sh00ty/host-orchestrator/internal/policy"
	"github.com/Sh00ty/host-orchestrator/internal/status/etcd"
	"github.com/Sh00ty/host-orchestrator/internal/status/memory"
	"github.com/Sh00ty/host-orchestrator/internal/status/postgres"
)

func loggerLevelFromString(level string) zerolog.Level {
	level = strings.ToLower(level)
	switch level {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

type Config struct {
	LoggerLevel string `envconfig:"LOGGER_LEVEL,default=info"`
	NodeName    string `envconfig:"NODE_NAME,default=orchestrator-0"`
	ProbeAddr   string `envconfig:"PROBE_ADDR,default=0.0.0.0:8080"`

	TopologyFile           string        `envconfig:"TOPOLOGY_FILE"`
	TopologyReloadInterval time.Duration `envconfig:"TOPOLOGY_RELOAD_INTERVAL,default=30s"`
	GossipEnabled          bool          `envconfig:"GOSSIP_ENABLED,default=false"`

	// memory, etcd or postgres
	StatusBackend string `envconfig:"STATUS_BACKEND,default=etcd"`
}

// componentConfigs are read one by one, their fields carry full env names.
type componentConfigs struct {
	api               api.Config
	orchestrator      orchestrator.Config
	clusterController clustercontroller.Config
	flags             flags.Config
	gossip            monitor.GossipConfig
	audit             audit.Config
	statsd            metrics.Config
	etcd              etcd.Config
	postgres          postgres.Config
}

func readComponentConfigs(backend string) (componentConfigs, error) {
	cfgs := componentConfigs{}
	targets := map[string]any{
		"api":                &cfgs.api,
		"orchestrator":       &cfgs.orchestrator,
		"cluster controller": &cfgs.clusterController,
		"flags":              &cfgs.flags,
		"gossip":             &cfgs.gossip,
		"audit":              &cfgs.audit,
		"statsd":             &cfgs.statsd,
	}
	switch backend {
	case "etcd":
		targets["etcd"] = &cfgs.etcd
	case "postgres":
		targets["postgres"] = &cfgs.postgres
	}
	for name, target := range targets {
		err := envconfig.Init(target)
		if err != nil {
			return cfgs, fmt.Errorf("failed to read %s config: %w", name, err)
		}
	}
	return cfgs, nil
}

type statusRegistry interface {
	orchestrator.StatusRegistry
	io.Closer
}

func newStatusRegistry(ctx context.Context, backend string, cfgs componentConfigs) (statusRegistry, error) {
	switch backend {
	case "memory":
		log.Warn().Msg("host statuses are kept in memory and lost on restart")
		return memory.NewRegistry(), nil
	case "etcd":
		return etcd.NewRegistry(ctx, cfgs.etcd, log.Logger)
	case "postgres":
		return postgres.NewRegistry(ctx, cfgs.postgres, log.Logger)
	}
	return nil, fmt.Errorf("unknown status backend %q", backend)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load .env file")
	}

	appCfg := Config{}
	err = envconfig.Init(&appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read app config")
	}
	log.Logger = log.Level(loggerLevelFromString(appCfg.LoggerLevel))

	cfgs, err := readComponentConfigs(appCfg.StatusBackend)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read component configs")
	}

	topology, err := monitor.LoadTopologyFile(appCfg.TopologyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load topology")
	}
	health := monitor.NewHealthTracker()
	serviceMonitor := monitor.New(topology, health)

	registry, err := newStatusRegistry(ctx, appCfg.StatusBackend, cfgs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create host status registry")
	}
	defer func() {
		closeErr := registry.Close()
		if closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close host status registry")
		}
	}()

	statsd := metrics.New(cfgs.statsd, appCfg.NodeName)
	if closer, ok := statsd.(io.Closer); ok {
		defer closer.Close()
	}

	eg, egCtx := errgroup.WithContext(ctx)

	var auditor orchestrator.Auditor = audit.NewLogOnly(log.Logger)
	if len(cfgs.audit.Brokers) != 0 {
		writer := audit.NewKafkaWriter(cfgs.audit)
		defer writer.Close()

		sender := audit.NewSender(cfgs.audit, writer, log.Logger)
		eg.Go(func() error {
			sender.Run(egCtx)
			return nil
		})
		auditor = sender
	}

	if appCfg.GossipEnabled {
		events := make(chan monitor.MembershipEvent, 256)
		gossip, err := monitor.NewGossip(egCtx, cfgs.gossip, events, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create gossip")
		}
		err = gossip.Join(egCtx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to join gossip cluster")
		}
		defer func() {
			leaveErr := gossip.Leave(5 * time.Second)
			if leaveErr != nil {
				log.Error().Err(leaveErr).Msg("failed to leave gossip cluster")
			}
		}()
		eg.Go(func() error {
			serviceMonitor.Run(egCtx, events)
			return nil
		})
	}

	eg.Go(func() error {
		topology.RunReloader(egCtx, appCfg.TopologyFile, appCfg.TopologyReloadInterval, log.Logger)
		return nil
	})

	flagSource := flags.NewStatic(cfgs.flags)
	service := orchestrator.NewService(
		cfgs.orchestrator,
		serviceMonitor,
		registry,
		policy.NewHostedPolicy(policy.NewClusterPolicy(flagSource), flagSource, log.Logger),
		clustercontroller.NewClient(cfgs.clusterController, log.Logger),
		statsd,
		auditor,
		log.Logger,
	)

	apiSrv := &http.Server{
		Addr:    cfgs.api.Addr,
		Handler: api.NewServer(cfgs.api, service, log.Logger).Handler(),
	}
	eg.Go(func() error {
		log.Info().Msgf("running orchestrator api on %s", apiSrv.Addr)
		err := apiSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve api: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return apiSrv.Shutdown(shutdownCtx)
	})

	serverClose := startProbeServer(appCfg.ProbeAddr)
	defer serverClose()

	err = eg.Wait()
	if err != nil {
		log.Error().Err(err).Msg("orchestrator stopped")
	}
}

func startProbeServer(addr string) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		w.WriteHeader(http.StatusOK)
	})
	srv := http.Server{
		Handler: mux,
		Addr:    addr,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()
	return func() {
		_ = srv.Close()
	}
}
