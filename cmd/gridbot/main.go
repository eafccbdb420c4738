package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/gridbot/config"
	"github.com/alejandrodnm/gridbot/internal/adapters/coinbase"
	"github.com/alejandrodnm/gridbot/internal/adapters/mock"
	"github.com/alejandrodnm/gridbot/internal/adapters/notify"
	"github.com/alejandrodnm/gridbot/internal/adapters/paper"
	"github.com/alejandrodnm/gridbot/internal/adapters/storage"
	"github.com/alejandrodnm/gridbot/internal/application/engine"
	"github.com/alejandrodnm/gridbot/internal/domain/strategy"
	"github.com/alejandrodnm/gridbot/internal/ports"
	"github.com/alejandrodnm/gridbot/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	useMock := flag.Bool("mock", false, "trade against the in-memory mock exchange")
	livePaper := flag.Bool("paper", true, "simulate orders against real market data")
	syncProducts := flag.Bool("sync-products", false, "refresh the markets table from the exchange and exit")
	once := flag.Bool("once", false, "run one tick cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)
	log := slog.Default()

	slog.Info("gridbot starting",
		"config", *configPath,
		"mock", *useMock,
		"paper", *livePaper,
		"tick", cfg.TickInterval(),
	)

	var venue ports.Exchange
	if *useMock {
		venue = mock.New()
	} else {
		if cfg.Exchange.APIKeyName == "" || cfg.Exchange.APIPrivateKey == "" {
			slog.Error("missing COINBASE_API_KEY_NAME / COINBASE_API_PRIVATE_KEY")
			os.Exit(1)
		}
		venue, err = coinbase.New(cfg.Exchange.APIKeyName, cfg.Exchange.APIPrivateKey, log)
		if err != nil {
			slog.Error("failed to build exchange client", "err", err)
			os.Exit(1)
		}
	}
	if *livePaper {
		venue = paper.New(venue)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	eng := engine.New(engine.Config{
		Exchange:        venue,
		Storage:         store,
		Grid:            strategy.New(cfg.StrategyOptions()),
		Logger:          log,
		Broadcaster:     telemetry.NewHub(),
		Reporter:        notify.NewConsole(),
		TickInterval:    cfg.TickInterval(),
		CatchUpInterval: cfg.CatchUpInterval(),
		StatusInterval:  cfg.StatusInterval(),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *syncProducts {
		if err := eng.SyncProducts(ctx); err != nil {
			slog.Error("product sync failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if *once {
		if err := eng.Tick(ctx); err != nil {
			slog.Error("tick failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("gridbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
