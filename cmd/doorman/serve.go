package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aatumaykin/doorman/internal/channels/telegram"
	"github.com/aatumaykin/doorman/internal/config"
	"github.com/aatumaykin/doorman/internal/dashboard"
	"github.com/aatumaykin/doorman/internal/logger"
	"github.com/aatumaykin/doorman/internal/metrics"
	"github.com/aatumaykin/doorman/internal/store"
	"github.com/aatumaykin/doorman/internal/tracker"
	"github.com/aatumaykin/doorman/internal/workers"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	serveConfigPath string
	serveLogLevel   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Doorman watchdog (main command)",
	Long: `Start Doorman with the specified configuration.
This initializes all components (store, tracker, telegram connector,
dashboard) and handles graceful shutdown.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	// Load .env file if present; absence is fine.
	_ = godotenv.Load()

	// Determine config path
	configPath := serveConfigPath
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level if flag is set
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	// Validate configuration
	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("❌ Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("🚀 Starting Doorman",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "storage", Value: cfg.Storage.Path},
		logger.Field{Key: "transport", Value: cfg.Telegram.Transport},
		logger.Field{Key: "time_limit_seconds", Value: cfg.Tracker.TimeLimitSeconds},
		logger.Field{Key: "sweep_interval_seconds", Value: cfg.Tracker.SweepIntervalSeconds},
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Open membership store
	log.Info("💾 Opening membership store",
		logger.Field{Key: "path", Value: cfg.Storage.Path})
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open membership store", err)
		os.Exit(1)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	trackerMetrics := metrics.InitTrackerMetrics("doorman", registry)

	// Rebuild process state from the store. Notifications stay disarmed
	// until the admin re-enables them.
	state := tracker.NewState()
	if count, err := st.CountMembers(); err != nil {
		log.Warn("Failed to count tracked members",
			logger.Field{Key: "error", Value: err})
	} else {
		state.SetMembersCount(count)
		trackerMetrics.SetTrackedMembers(count)
	}
	if count, err := st.CountExpulsions(); err != nil {
		log.Warn("Failed to count expulsion history",
			logger.Field{Key: "error", Value: err})
	} else {
		state.SetTotalExpelled(count)
	}

	// Initialize Telegram connector
	log.Info("📱 Initializing Telegram connector")
	connector := telegram.New(cfg.Telegram, log, state)

	// Event ingestor and worker pool
	ingestor := tracker.NewIngestor(st, state, connector.Notifier(), trackerMetrics, log, cfg.Telegram.NotifyOnJoin)
	pool := workers.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize, ingestor.OnMembershipEvent, log)
	pool.Start()
	connector.SetEventSink(pool)

	// Expulsion executor and sweeper
	executor := tracker.NewExecutor(connector, st, state, connector.Notifier(), trackerMetrics, log)
	sweeper := tracker.NewSweeper(tracker.SweeperConfig{
		Interval:  time.Duration(cfg.Tracker.SweepIntervalSeconds) * time.Second,
		TimeLimit: time.Duration(cfg.Tracker.TimeLimitSeconds) * time.Second,
	}, st, executor, state, trackerMetrics, log)
	connector.SetSweeper(sweeper)

	if err := connector.Start(ctx); err != nil {
		log.Error("Failed to start Telegram connector", err)
		os.Exit(1)
	}

	if err := sweeper.Start(ctx); err != nil {
		log.Error("Failed to start expiry sweeper", err)
		os.Exit(1)
	}

	// Status dashboard
	var dash *dashboard.Server
	if cfg.Dashboard.Enabled {
		dash = dashboard.New(dashboard.Config{
			Addr:             cfg.Dashboard.Addr,
			TimeLimitSeconds: cfg.Tracker.TimeLimitSeconds,
		}, state, st, sweeper, connector, registry, log)
		dash.Start()
	} else {
		log.Warn("Dashboard is disabled")
	}

	state.SetRunning(true)
	log.Info("✅ Doorman is running")

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("⏳ Received shutdown signal",
		logger.Field{Key: "signal", Value: sig.String()})

	// Graceful shutdown in reverse start order
	log.Info("🛑 Shutting down Doorman...")
	state.SetRunning(false)
	cancel()

	if dash != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := dash.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop dashboard server", err)
		}
		shutdownCancel()
	}

	sweeper.Stop()

	if err := connector.Stop(); err != nil {
		log.Error("Failed to stop Telegram connector", err)
	}

	pool.Stop()

	if err := st.Close(); err != nil {
		log.Error("Failed to close membership store", err)
	}

	log.Info("👋 Doorman stopped gracefully")
	os.Exit(0)
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
}
