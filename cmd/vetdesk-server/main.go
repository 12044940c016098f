package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vetdesk/backend/internal/clock"
	"vetdesk/backend/internal/config"
	"vetdesk/backend/internal/hold"
	"vetdesk/backend/internal/live"
	"vetdesk/backend/internal/service/booking"
	"vetdesk/backend/internal/store/postgres"
	transporthttp "vetdesk/backend/internal/transport/http"
	"vetdesk/backend/internal/transport/ws"
	"vetdesk/backend/migrations"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "vetdesk-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "vetdesk-server"),
	)
	slog.SetDefault(log)

	log.Info("starting", slog.String("http_addr", cfg.HTTPAddr), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Open(connectCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	cancelConnect()
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrations.Apply(migrateCtx, db); err != nil {
		cancelMigrate()
		log.Error("migrations failed", slog.Any("err", err))
		os.Exit(1)
	}
	cancelMigrate()

	clk := clock.NewSystem()
	apptRepo := postgres.NewAppointmentRepo(db)
	vetRepo := postgres.NewVetRepo(db)

	holds := hold.NewStore(clk, cfg.HoldTTL)
	registry := live.NewRegistry()
	broadcaster := live.NewBroadcaster(registry, log)

	sweeper := hold.NewSweeper(holds, clk, cfg.SweepInterval, func(expired hold.Hold) {
		broadcaster.Broadcast(expired.Key.VetID, expired.Key.Day, live.SlotReleased{
			ReservationID: expired.ReservationID,
			Time:          expired.Key.Start,
		})
	}, log)
	sweeper.Start()
	defer sweeper.Stop()

	suggester := booking.NewSuggester(apptRepo, vetRepo, holds, cfg.AlternativeLimit)
	bookingSvc := booking.NewService(apptRepo, vetRepo, holds, broadcaster, nil, suggester, log)

	wsHandler := ws.NewHandler(registry, broadcaster, holds, bookingSvc, cfg.CORSOrigins, log)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/health", transporthttp.HealthHandler)
	apiMux.Handle("/appointments", transporthttp.HandleBook(bookingSvc, log))
	apiMux.Handle("/appointments/", transporthttp.HandleCancelAppointment(bookingSvc, log))
	apiMux.Handle("/vets/", transporthttp.HandleAvailability(bookingSvc, log))
	apiMux.Handle("/", transporthttp.NotFoundHandler())

	api := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, apiMux), log)

	// The websocket route bypasses the logging wrapper so the upgrade keeps
	// its hijackable ResponseWriter.
	rootMux := http.NewServeMux()
	rootMux.Handle("/ws", wsHandler)
	rootMux.Handle("/", api)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           rootMux,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	case <-stopCtx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("http shutdown error", slog.Any("err", err))
	}
	log.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
