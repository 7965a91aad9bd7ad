package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chainswitch/internal/bridge"
	"chainswitch/internal/config"
	"chainswitch/internal/costmodel"
	"chainswitch/internal/keeper"
	"chainswitch/internal/metrics"
	"chainswitch/internal/model"
	"chainswitch/internal/oracle"
	"chainswitch/internal/orchestrator"
	"chainswitch/internal/pricefeed"
	"chainswitch/internal/registry"
	"chainswitch/internal/server"
	"chainswitch/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "chainswitch",
		Short:        "Cross-chain gas cost optimizer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and keeper",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty disables persistence)")
	serveCmd.Flags().String("admin-key", "", "admin API key")
	serveCmd.Flags().String("keeper-key", "", "keeper API key")
	serveCmd.Flags().String("feed-url", "", "price feed base URL")
	serveCmd.Flags().String("feed-api-key", "", "price feed API key")
	serveCmd.Flags().String("bridge-url", "", "bridge API base URL")
	serveCmd.Flags().String("bridge-api-key", "", "bridge API key")
	serveCmd.Flags().Duration("http-timeout", 10*time.Second, "outbound HTTP timeout")
	serveCmd.Flags().Int("rate-limit-per-minute", 120, "per-IP request rate limit, 0 disables")
	serveCmd.Flags().Bool("keeper-enabled", true, "run the in-process gas price poller")
	serveCmd.Flags().Duration("keeper-interval", 60*time.Second, "gas price poll interval")
	serveCmd.Flags().Int("max-retries", 3, "maximum retry attempts for chain RPCs")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	if cfg.FeedURL == "" {
		return fmt.Errorf("feed url is required")
	}
	if cfg.BridgeURL == "" {
		return fmt.Errorf("bridge url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg.Chains)
	admin := model.AdminCapability()
	if err := reg.SetThresholds(admin, cfg.Thresholds); err != nil {
		return err
	}
	if err := reg.SetFeeSchedule(admin, cfg.FeeSchedule); err != nil {
		return err
	}
	if cfg.KeeperKey != "" {
		if err := reg.RotateKeeper(admin, cfg.KeeperKey); err != nil {
			return err
		}
	}

	m := metrics.New()

	feed := pricefeed.NewHTTPClient(cfg.FeedURL, cfg.FeedAPIKey, cfg.HTTPTimeout)
	gasOracle := oracle.New(reg, feed, logger)

	slippage := costmodel.NewDepthEstimator(cfg.SlippageDefaultDepth, cfg.SlippageCapUSD)
	cost := costmodel.New(reg, gasOracle, slippage)

	bridgeClient := bridge.NewHTTPClient(cfg.BridgeURL, cfg.BridgeAPIKey, cfg.HTTPTimeout)

	var store orchestrator.Store
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		store = pg
	}

	orch := orchestrator.New(reg, cost, bridgeClient, store, m, logger)

	if cfg.KeeperEnabled {
		poller, err := keeper.NewPoller(ctx, keeper.Config{
			Interval:     cfg.KeeperInterval,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, reg, gasOracle, m, logger)
		if err != nil {
			return err
		}
		defer poller.Close()
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("keeper stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(server.Config{
		ListenAddr:         cfg.ListenAddr,
		AdminKey:           cfg.AdminKey,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, reg, orch, gasOracle, m, logger)

	logger.Info("chainswitch start",
		zap.String("listen", cfg.ListenAddr),
		zap.Int("chains", len(cfg.Chains)),
		zap.Bool("keeper", cfg.KeeperEnabled),
		zap.Bool("persistence", store != nil),
	)

	return srv.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return err
	}

	logger.Info("schema ready")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
