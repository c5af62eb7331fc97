package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/config"
	"github.com/kubescape/tombstone-agent/pkg/dropboxwatcher"
	eventpipelinev1 "github.com/kubescape/tombstone-agent/pkg/eventpipeline/v1"
	"github.com/kubescape/tombstone-agent/pkg/exporters"
	"github.com/kubescape/tombstone-agent/pkg/healthmanager"
	"github.com/kubescape/tombstone-agent/pkg/metricsmanager"
	metricprometheus "github.com/kubescape/tombstone-agent/pkg/metricsmanager/prometheus"
	"github.com/kubescape/tombstone-agent/pkg/notificationpolicy"
	ownershipv1 "github.com/kubescape/tombstone-agent/pkg/ownership/v1"
	"github.com/kubescape/tombstone-agent/pkg/packageindex"
	"github.com/kubescape/tombstone-agent/pkg/policystore"
	"github.com/kubescape/tombstone-agent/pkg/processsnapshot"
	"github.com/kubescape/tombstone-agent/pkg/tombstonewatcher"
	"github.com/kubescape/tombstone-agent/pkg/utils"
	"github.com/spf13/afero"
)

func main() {
	ctx := context.Background()

	configDir := config.DefaultConfigDir
	if envPath := os.Getenv(config.ConfigDirEnvVar); envPath != "" {
		configDir = envPath
	}

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		logger.L().Ctx(ctx).Error("load config error", helpers.Error(err))
		os.Exit(utils.ExitCodeInvalidConfig)
	}

	hostName, err := os.Hostname()
	if err != nil {
		hostName = os.Getenv("HOSTNAME")
	}

	// to enable otel, set OTEL_COLLECTOR_SVC=otel-collector:4317
	if otelHost, present := os.LookupEnv("OTEL_COLLECTOR_SVC"); present {
		ctx = logger.InitOtel("tombstone-agent",
			os.Getenv("RELEASE"),
			"",
			hostName,
			url.URL{Host: otelHost})
		defer logger.ShutdownOtel(ctx)
	}

	if _, present := os.LookupEnv("ENABLE_PROFILER"); present {
		logger.L().Info("starting profiler on port 6060")
		go func() {
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				logger.L().Error("profiler server error", helpers.Error(err))
			}
		}()
	}

	// Create the prometheus metrics
	var metrics metricsmanager.MetricsManager
	if cfg.EnablePrometheusExporter {
		metrics = metricprometheus.NewPrometheusMetric(cfg.MetricsAddr)
	} else {
		metrics = metricsmanager.NewMetricsMock()
	}

	exporter, err := exporters.InitExporters(cfg.Exporters, hostName)
	if err != nil {
		logger.L().Ctx(ctx).Error("error initializing exporters", helpers.Error(err))
		os.Exit(utils.ExitCodeInvalidConfig)
	}

	appFs := afero.NewOsFs()

	packages := packageindex.NewIndex(appFs, cfg.PackagesListPath, cfg.SystemPackages)
	snapshot, err := processsnapshot.NewProcfsSnapshot(cfg.ProcRoot, packages)
	if err != nil {
		logger.L().Ctx(ctx).Fatal("error creating the process snapshot", helpers.Error(err))
	}

	if err := appFs.MkdirAll(filepath.Dir(cfg.PolicyStorePath), 0700); err != nil {
		logger.L().Ctx(ctx).Fatal("error creating the policy store directory", helpers.Error(err))
	}
	store, err := policystore.Open(ctx, cfg.PolicyStorePath)
	if err != nil {
		logger.L().Ctx(ctx).Fatal("error opening the policy store", helpers.Error(err),
			helpers.String("path", cfg.PolicyStorePath))
	}

	memoryTaggingSupported := utils.MemoryTaggingSupported(cfg.MemoryTagging, cfg.ProcRoot)
	logger.L().Info("memory tagging", helpers.String("mode", cfg.MemoryTagging),
		helpers.Interface("supported", memoryTaggingSupported))

	resolver := ownershipv1.NewResolver(snapshot, packages, cfg.BenignCrashAllowlist)
	policy := notificationpolicy.NewPolicy(notificationpolicy.Config{
		MemoryTaggingSupported:              memoryTaggingSupported,
		ShowSystemProcessCrashNotifications: cfg.ShowSystemProcessCrashNotifications,
		CoreSystemProcess:                   cfg.CoreSystemProcess,
	}, store)
	pipeline := eventpipelinev1.NewPipeline(resolver, policy, exporter, metrics, memoryTaggingSupported)

	tombstoneWatcher, err := tombstonewatcher.NewTombstoneWatcher(appFs, cfg.TombstoneDir, cfg.WorkerPoolSize, pipeline)
	if err != nil {
		logger.L().Ctx(ctx).Fatal("error creating the tombstone watcher", helpers.Error(err))
	}
	historicalWatcher := dropboxwatcher.NewDropBoxWatcher(appFs, cfg.HistoricalLog, pipeline)

	healthManager := healthmanager.NewHealthManager(cfg.HealthPort)

	// Start the prometheusExporter
	metrics.Start()

	if err := tombstoneWatcher.Start(); err != nil {
		logger.L().Ctx(ctx).Error("error starting the tombstone watcher", helpers.Error(err))
		if errors.Is(err, tombstonewatcher.ErrUnsupportedPlatform) {
			os.Exit(utils.ExitCodeUnsupportedPlatform)
		}
		os.Exit(utils.ExitCodeError)
	}
	healthManager.AddFeed(tombstoneWatcher)

	// the historical log is best effort, the agent keeps running without it
	if err := historicalWatcher.Start(); err != nil {
		logger.L().Ctx(ctx).Warning("error starting the historical log watcher", helpers.Error(err))
	} else {
		healthManager.AddFeed(historicalWatcher)
	}
	healthManager.Start(ctx)

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.L().Info("received shutdown signal", helpers.String("signal", sig.String()))

	tombstoneWatcher.Stop()
	historicalWatcher.Stop()
	metrics.Destroy()
	if err := store.Close(); err != nil {
		logger.L().Warning("error closing the policy store", helpers.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	healthManager.Stop(shutdownCtx)
}
