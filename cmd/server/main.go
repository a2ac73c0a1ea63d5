package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/advisor/internal/cache"
	"github.com/aristath/advisor/internal/clients/binance"
	"github.com/aristath/advisor/internal/config"
	"github.com/aristath/advisor/internal/engine"
	"github.com/aristath/advisor/internal/events"
	"github.com/aristath/advisor/internal/marketdata"
	"github.com/aristath/advisor/internal/regime"
	"github.com/aristath/advisor/internal/scheduler"
	"github.com/aristath/advisor/internal/server"
	"github.com/aristath/advisor/internal/strategy"
	"github.com/aristath/advisor/pkg/logger"
)

// backfillLookback is how many closed bars to pull per instrument on
// startup. Enough for every strategy's warm-up with headroom.
const backfillLookback = 300

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Advisor")

	// Event bus: structured log observer for pipeline events
	bus := events.NewBus()
	bus.Subscribe(events.NewLogObserver(log))

	// Candle store
	store, err := marketdata.NewStore(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize candle store")
	}
	defer store.Close()

	// Backfill history from Binance so the first run has enough bars
	client := binance.NewClient(cfg.BinanceBaseURL, log)
	backfillCtx, cancelBackfill := context.WithTimeout(context.Background(), 2*time.Minute)
	client.Backfill(backfillCtx, store, cfg.TrackedInstruments, cfg.DecisionTimeframe, backfillLookback)
	cancelBackfill()

	// Live kline stream keeps the store current between scheduler ticks
	var stream *binance.KlineStream
	if cfg.StreamEnabled {
		stream = binance.NewKlineStream(cfg.BinanceStreamURL, cfg.TrackedInstruments, cfg.DecisionTimeframe, store, bus, log)
		go stream.Run(context.Background())
	}

	// Strategy registry
	registry := strategy.NewRegistry(log)
	registry.Register(strategy.NewRSIStrategy())
	registry.Register(strategy.NewMACDStrategy())
	registry.Register(strategy.NewBollingerStrategy())

	// Recommendation engine
	eng := engine.New(engine.Config{
		Provider:  store,
		Registry:  registry,
		Detector:  regime.NewDetector(log),
		Timeframe: cfg.DecisionTimeframe,
		Observer:  bus,
		Log:       log,
	})

	// Recommendation cache, one entry per (instrument, bar)
	recCache := cache.New(cfg.EffectiveCacheTTL(), bus, log)

	// Initialize scheduler
	sched := scheduler.New(log)

	refreshJob := scheduler.NewRefreshJob(scheduler.RefreshJobConfig{
		Instruments: cfg.TrackedInstruments,
		Cache:       recCache,
		Engine:      eng,
		Parallelism: cfg.Parallelism,
		RunTimeout:  cfg.RunTimeout,
		Observer:    bus,
		Log:         log,
	})
	if err := sched.AddDailyJob(cfg.SchedulerTimes, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}

	sched.Start()

	// Warm the cache so the API serves immediately
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Warn().Err(err).Msg("Startup refresh failed")
		}
	}()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:        cfg.Port,
		Log:         log,
		DevMode:     cfg.DevMode,
		CORSOrigins: cfg.CORSOrigins,
		Instruments: cfg.TrackedInstruments,
		Engine:      eng,
		Cache:       recCache,
		Registry:    registry,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Graceful shutdown: stop accepting requests, then stop background work
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()
	refreshJob.Stop(10 * time.Second)
	if stream != nil {
		stream.Stop()
	}

	log.Info().Msg("Stopped")
}
