package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"watch-progress/internal/platform/config"
	"watch-progress/internal/platform/events"
	"watch-progress/internal/platform/logger"
	"watch-progress/internal/platform/metrics"
	"watch-progress/internal/progress"
	"watch-progress/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	storeDriver := config.GetEnv("STORE_DRIVER", "memory")
	policy := progress.SkipPolicy{
		SampleInterval: config.GetEnvFloat("SAMPLE_INTERVAL_SECONDS", progress.DefaultSampleInterval),
		Factor:         config.GetEnvFloat("SKIP_FACTOR", progress.DefaultSkipFactor),
	}

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	store, closeStore, err := openStore(storeDriver, log)
	if err != nil {
		log.Error("store open failed", "driver", storeDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	publisher, closePublisher := connectPublisher(log)
	defer closePublisher()

	repo := progress.NewStoreRepository(store, log, met)
	svc := progress.NewService(repo, progress.ServiceConfig{
		Policy:    policy,
		Log:       log,
		Metrics:   met,
		Publisher: publisher,
	})
	h := progress.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveSessions()) }).ServeHTTP(w, r)
	})
	pinger, _ := store.(progress.Pinger)
	r.Get("/healthz", progress.Health(pinger, log))
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"store_driver", storeDriver,
		"skip_threshold_seconds", policy.Threshold(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return
	}

	log.Info("server stopped")
}

// openStore selects the persistence backend named by driver.
func openStore(driver string, log *slog.Logger) (progress.Store, func(), error) {
	switch driver {
	case "sqlite":
		path := config.GetEnv("SQLITE_PATH", "progress.db")
		opts := storage.Options{
			BusyTimeout: time.Duration(config.GetEnvInt("SQLITE_BUSY_TIMEOUT_MS", 5000)) * time.Millisecond,
			Synchronous: config.GetEnv("SQLITE_SYNCHRONOUS", "NORMAL"),
			ReadOnly:    config.GetEnvBool("SQLITE_READ_ONLY", false),
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		db, err := storage.Open(ctx, path, opts)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("sqlite store opened", "path", path, "read_only", db.ReadOnly())
		return db, closer(log, "sqlite", db), nil
	default:
		if driver != "memory" {
			log.Warn("unknown store driver, using memory", "driver", driver)
		}
		return progress.NewInMemoryStore(), func() {}, nil
	}
}

// connectPublisher dials NATS when NATS_URL is set. Any failure leaves the
// service running without events.
func connectPublisher(log *slog.Logger) (progress.Publisher, func()) {
	url := config.GetEnv("NATS_URL", "")
	if url == "" {
		return nil, func() {}
	}
	nc, err := events.Connect(events.Options{
		URL:           url,
		MaxReconnects: config.GetEnvInt("NATS_MAX_RECONNECTS", 5),
		ReconnectWait: config.GetEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
	})
	if err != nil {
		log.Warn("event publishing disabled", "error", err)
		return nil, func() {}
	}
	subject := config.GetEnv("NATS_SUBJECT", events.DefaultSubject)
	log.Info("publishing progress events", "url", url, "subject", subject)
	return events.NewPublisher(nc, subject), func() {
		if err := nc.Drain(); err != nil {
			log.Warn("nats drain failed", "error", err)
		}
	}
}

func closer(log *slog.Logger, name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn("close failed", "resource", name, "error", err)
		}
	}
}
