package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/triarb-bot/internal/bot"
	"github.com/you/triarb-bot/internal/config"
	"github.com/you/triarb-bot/internal/connectors/cex/binance"
	"github.com/you/triarb-bot/internal/connectors/redisfeed"
	"github.com/you/triarb-bot/internal/dash"
	"github.com/you/triarb-bot/internal/discovery"
	"github.com/you/triarb-bot/internal/execution"
	"github.com/you/triarb-bot/internal/marketdata"
	"github.com/you/triarb-bot/internal/metrics"
	"github.com/you/triarb-bot/internal/notify"
	"github.com/you/triarb-bot/internal/pricecache"
	"github.com/you/triarb-bot/internal/risk"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.DebugLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:       "ts",
			LevelKey:      "level",
			NameKey:       "logger",
			CallerKey:     "caller",
			MessageKey:    "msg",
			StacktraceKey: "stack",
			LineEnding:    zapcore.DefaultLineEnding,
			EncodeLevel:   zapcore.LowercaseLevelEncoder,
			EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(t.Format(time.RFC3339))
			},
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("signal received, shutting down…")
		cancel()
	}()
	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	cex, err := binance.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("binance client init", zap.Error(err))
	}

	universe := cfg.Universe.Symbols
	if len(universe) == 0 {
		universe, err = discovery.NewService(cfg, logger).Discover(ctx)
		if err != nil {
			logger.Fatal("symbol discovery", zap.Error(err))
		}
	}

	cache := pricecache.New(cex, pricecache.Options{
		Window:  cfg.StalenessWindow(),
		Retries: cfg.Cache.FetchRetries,
		Backoff: cfg.RetryBackoff(),
		Live:    cfg.Cache.Streaming,
	}, logger)

	if cfg.Cache.Streaming {
		ws := binance.NewWS(cfg.Binance.WsURL)
		go marketdata.Run(ctx, cfg, ws, cache, logger)
	}

	var senders []notify.Sender
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatID))
	}
	notifier := notify.NewNotifier(senders, cfg.Telegram.Events, logger)

	var feed *redisfeed.Publisher
	if cfg.Redis.Addr != "" {
		feed = redisfeed.NewPublisher(cfg)
	}

	var store *dash.Store
	if cfg.Dash.ListenAddr != "" {
		store = dash.NewStore()
		go dash.StartHTTP(ctx, store, cfg.Dash.ListenAddr, logger)
	}

	deps := bot.Deps{
		Cache:    cache,
		Risk:     risk.NewEngine(cfg),
		Notifier: notifier,
		Feed:     feed,
		Dash:     store,
		Universe: universe,
	}
	if cfg.DryRun {
		logger.Warn("DRY-RUN: no real orders will be submitted")
	} else {
		deps.Exec = execution.NewExecutor(cex, logger)
		deps.Balances = cex
		asset := cfg.Universe.QuoteAssets[0]
		if free, locked, err := cex.AssetBalance(ctx, asset); err == nil {
			logger.Info("starting balance",
				zap.String("asset", asset),
				zap.Float64("free", free),
				zap.Float64("locked", locked),
			)
		} else {
			logger.Warn("starting balance unavailable", zap.Error(err))
		}
	}

	if err := bot.New(cfg, deps, logger).Run(ctx); err != nil {
		logger.Fatal("arbitrage loop", zap.Error(err))
	}
}
