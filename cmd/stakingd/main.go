package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cookledger/config"
	"cookledger/core"
	"cookledger/core/chain"
	nativecommon "cookledger/native/common"
	"cookledger/observability"
	"cookledger/observability/logging"
	"cookledger/observability/metrics"
	cookotel "cookledger/observability/otel"
	"cookledger/rpc"
	"cookledger/services/indexer"
	"cookledger/storage"
)

const (
	genesisPathEnv = "COOK_GENESIS"
	environmentEnv = "COOK_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides COOK_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "stakingd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, genesisFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv(environmentEnv))
	logger := logging.SetupWithOptions(logging.Options{
		Service:    "stakingd",
		Env:        env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := cookotel.Init(ctx, cookotel.Config{
		ServiceName: "stakingd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cookotel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if cfg.GenesisTime == 0 {
		cfg.GenesisTime = time.Now().Unix()
		if err := config.Write(configPath, cfg); err != nil {
			return fmt.Errorf("persist genesis time: %w", err)
		}
	}

	db, err := storage.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	module, err := cfg.ModuleAccount()
	if err != nil {
		return fmt.Errorf("module address: %w", err)
	}
	pauses := nativecommon.NewPauses()
	pauses.Set("staking", cfg.Pauses.Staking)

	clock := chain.NewSystemClock(time.Unix(cfg.GenesisTime, 0), time.Duration(cfg.BlockIntervalSeconds)*time.Second)
	ledger, err := core.NewLedger(db, clock,
		core.WithLogger(logger),
		core.WithModuleAddress(module),
		core.WithPauses(pauses),
		core.WithMetrics(metrics.Staking()),
	)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv); path != "" {
		if err := applyGenesis(ctx, ledger, cfg, path); err != nil {
			return err
		}
	}

	serverCfg := rpc.Config{
		Auth: rpc.AuthConfig{
			HMACSecret: cfg.HMACSecret(),
			Issuer:     cfg.Auth.Issuer,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		MaxConnections: cfg.RPCMaxConnections,
		Logger:         logger,
	}
	if strings.TrimSpace(serverCfg.Auth.HMACSecret) == "" {
		logger.Warn("auth secret not configured; write routes will reject every request")
	}

	if driver := strings.TrimSpace(cfg.Indexer.Driver); driver != "" {
		store, err := indexer.Open(driver, cfg.Indexer.DSN, logger)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer store.Close()
		ledger.Subscribe(store)
		serverCfg.Events = store
		serverCfg.Idempotency = store.Idempotency
	}
	ledger.Subscribe(observability.Events())

	server, err := rpc.NewServer(ledger, serverCfg)
	if err != nil {
		return fmt.Errorf("build api: %w", err)
	}

	height, ts := ledger.Height()
	logger.Info("stakingd starting",
		slog.String("addr", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
		slog.String("module", module.String()),
		slog.Uint64("height", height),
		slog.Uint64("timestamp", ts))

	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("stakingd stopped")
	return nil
}

func applyGenesis(ctx context.Context, ledger *core.Ledger, cfg *config.Config, path string) error {
	doc, err := config.LoadGenesis(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if strings.TrimSpace(doc.Network) == "" {
		doc.Network = cfg.NetworkName
	}
	governance, _, err := cfg.GovernanceAccount()
	if err != nil {
		return fmt.Errorf("governance address: %w", err)
	}
	if err := ledger.ApplyGenesis(ctx, doc, governance); err != nil {
		if errors.Is(err, core.ErrGenesisApplied) {
			slog.Default().Info("genesis already applied; skipping", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("apply genesis: %w", err)
	}
	return nil
}

func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if lookup != nil {
		if v, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(configValue)
}
