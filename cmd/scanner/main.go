package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/cache"
	"marketscanner/internal/config"
	"marketscanner/internal/exchanges"
	"marketscanner/internal/logging"
	"marketscanner/internal/metrics"
	"marketscanner/internal/orchestrator"
	"marketscanner/internal/sink"
	"marketscanner/internal/strategies"
	"marketscanner/internal/supervisor"
	"marketscanner/pkg/broadcaster"
)

// Scanner wires the Phased Orchestrator, its scheduler, the Event Sink and
// the supporting HTTP/WebSocket surfaces into one supervised process.
type Scanner struct {
	config      *config.Config
	logger      *zap.Logger
	supervisor  *supervisor.Supervisor
	broadcaster *broadcaster.Broadcaster
	metrics     *metrics.PrometheusMetrics
	store       *sink.EventStore

	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to scan configuration")
	flag.Parse()

	app := &Scanner{}

	if err := app.initialize(*configPath); err != nil {
		fmt.Printf("failed to initialize market scanner: %v\n", err)
		os.Exit(1)
	}

	if err := app.start(); err != nil {
		fmt.Printf("failed to start market scanner: %v\n", err)
		os.Exit(1)
	}

	app.waitForShutdown()

	if err := app.shutdown(); err != nil {
		fmt.Printf("error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("market scanner stopped gracefully")
}

func (app *Scanner) initialize(configPath string) error {
	var err error

	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.startTime = time.Now()

	app.logger, err = logging.New()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	app.logger.Info("initializing market scanner")

	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		execPath, _ := os.Executable()
		configPath = filepath.Join(filepath.Dir(execPath), "configs", "config.yaml")
	}

	loader := config.NewConfigLoader()
	app.config, err = loader.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	app.logger.Info("configuration loaded",
		zap.Int("venues", len(app.config.Venues)),
		zap.Strings("timeframes", app.config.Scan.Timeframes))

	app.broadcaster = broadcaster.NewBroadcaster(app.logger)
	app.supervisor = supervisor.NewSupervisor(app.logger)

	if app.config.Monitoring.MetricsEnabled {
		app.metrics = metrics.NewPrometheusMetrics()
	}

	app.logger.Info("core components initialized")
	return nil
}

func (app *Scanner) start() error {
	app.logger.Info("starting market scanner")

	venueCfg := exchanges.VenueConfig{}
	for _, v := range app.config.Venues {
		if !v.Enabled {
			continue
		}
		venueCfg.Enabled = append(venueCfg.Enabled, v.Name)
		if v.Name == "sf_mexc" {
			venueCfg.SFProxyPairs = v.Symbols
		}
	}

	venues, err := exchanges.NewRegistry(app.logger, venueCfg)
	if err != nil {
		return fmt.Errorf("failed to build venue registry: %w", err)
	}

	registry := strategies.NewDefaultRegistry()
	frameCache := cache.New()

	var store *sink.EventStore
	if app.config.Redis.Host != "" {
		store, err = sink.NewEventStore(app.ctx, sink.StoreConfig{
			Addr:     app.config.GetRedisAddress(),
			Password: app.config.Redis.Password,
			DB:       app.config.Redis.DB,
			TTL:      app.config.GetRedisTTL(),
		}, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open event store: %w", err)
		}
		app.store = store
	}

	notifier := sink.NewNotifier(app.logger, app.broadcaster,
		app.config.Notification.Channel, app.config.Notification.RecipientIDs,
		app.config.Notification.Enabled)

	eventSink := sink.New(app.logger, store, notifier)

	orch := orchestrator.New(app.logger, venues, registry, frameCache, eventSink)
	scheduler := orchestrator.NewScheduler(app.logger, orch, app.config.ToOrchestratorConfig())

	go app.broadcaster.Run()

	if err := app.supervisor.AddWorker(supervisor.WorkerConfig{
		Name:           "scheduler",
		MaxRetries:     0,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     time.Minute,
		BackoffFactor:  2.0,
	}, func(ctx context.Context) error {
		scheduler.Run(ctx)
		return ctx.Err()
	}); err != nil {
		return fmt.Errorf("failed to register scheduler worker: %w", err)
	}

	if app.metrics != nil {
		if err := app.supervisor.AddWorker(supervisor.WorkerConfig{
			Name:           "metrics-server",
			MaxRetries:     3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			BackoffFactor:  2.0,
		}, func(ctx context.Context) error {
			if err := app.metrics.Start(fmt.Sprintf("%d", app.config.Monitoring.PrometheusPort)); err != nil {
				return err
			}
			<-ctx.Done()
			return app.metrics.Stop()
		}); err != nil {
			return fmt.Errorf("failed to register metrics worker: %w", err)
		}

		if err := app.supervisor.AddWorker(supervisor.WorkerConfig{
			Name: "uptime-reporter",
		}, func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					app.metrics.SetServiceUptime("market-scanner", time.Since(app.startTime))
					app.metrics.SetSchedulerState(schedulerStateValue(scheduler.State()))
				}
			}
		}); err != nil {
			return fmt.Errorf("failed to register uptime worker: %w", err)
		}
	}

	if err := app.supervisor.Start(); err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	app.printStartupSummary(venues)
	return nil
}

func schedulerStateValue(s orchestrator.State) int {
	switch s {
	case orchestrator.StateScanning:
		return 1
	case orchestrator.StateCoolingDown:
		return 2
	default:
		return 0
	}
}

func (app *Scanner) printStartupSummary(venues *exchanges.Registry) {
	fmt.Println()
	fmt.Println("market scanner started")
	fmt.Printf("venues enabled: %d\n", len(venues.All()))
	fmt.Printf("timeframes: %v\n", app.config.Scan.Timeframes)
	fmt.Println()
}

func (app *Scanner) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	app.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
}

func (app *Scanner) shutdown() error {
	app.logger.Info("shutting down market scanner")

	app.cancel()

	if err := app.supervisor.Stop(); err != nil {
		app.logger.Error("error stopping supervisor", zap.Error(err))
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error("error closing event store", zap.Error(err))
		}
	}

	app.logger.Info("market scanner shutdown complete")
	return nil
}
