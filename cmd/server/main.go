package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"islatel/internal/api"
	"islatel/internal/auth"
	"islatel/internal/config"
	"islatel/internal/crm"
	"islatel/internal/domain"
	"islatel/internal/events"
	"islatel/internal/journal"
	"islatel/internal/logging"
	"islatel/internal/metrics"
	"islatel/internal/report"
	"islatel/internal/store"
	"islatel/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "server").Logger()

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recordStore, err := initStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	journalDB, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journalDB.Close()

	bus := events.NewEventBus()
	registerEventLogging(bus, baseLogger)
	engine := crm.New(recordStore, journalDB, bus, &logger)
	engine.Run(ctx)

	authSvc := initAuth(cfg, &logger)
	renderer := report.NewExcelRenderer(cfg.Exports.Path, &logger)
	server := api.NewServer(cfg.API, engine, authSvc, renderer, &logger)

	sweeper := worker.NewSweeper(engine, time.Duration(cfg.Expiry.SweepInterval)*time.Minute, &logger)
	go sweeper.Run(ctx)

	replayer := worker.NewReplayer(recordStore, journalDB, worker.DefaultRetryPolicy(),
		time.Duration(cfg.Journal.PollInterval)*time.Second, &logger)
	go replayer.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.RecordStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory record store, data will not survive a restart")
		return store.NewMemory(), nil
	default:
		client, err := store.Connect(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("connect to record store: %w", err)
		}
		logger.Info().Str("database", cfg.Store.Database).Msg("connected to record store")
		return store.NewMongo(client.Database(cfg.Store.Database), logger), nil
	}
}

// registerEventLogging subscribes an audit trail to the domain events so
// bookings and expiries show up in the logs regardless of which surface
// triggered them.
func registerEventLogging(bus *events.EventBus, logger *zerolog.Logger) {
	auditLogger := logger.With().Str("component", "audit").Logger()

	guestHandler := func(ev *events.Event) error {
		var payload events.GuestEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		auditLogger.Info().
			Str("event", ev.Type).
			Str("guest_id", payload.GuestID).
			Str("status", payload.Status).
			Float64("booked_value", payload.BookedValue).
			Msg("guest event")
		return nil
	}

	bus.Subscribe(events.EventGuestBooked, guestHandler)
	bus.Subscribe(events.EventGuestExpired, guestHandler)
	bus.Subscribe(events.EventGuestDeleted, guestHandler)
}

func initAuth(cfg *config.Config, logger *zerolog.Logger) *auth.Service {
	limiter := auth.AttemptLimiter(auth.NewMemoryLimiter())
	if cfg.Redis.Address != "" {
		client := auth.NewRedisClient(cfg.Redis)
		limiter = auth.NewFailoverLimiter(auth.NewRedisLimiter(client), auth.NewMemoryLimiter(), logger)
		logger.Info().Str("address", cfg.Redis.Address).Msg("login rate limiting backed by redis")
	}
	return auth.NewService(cfg.Auth, limiter, logger)
}
