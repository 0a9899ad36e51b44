// Guardd - supervision daemon for minor bank accounts
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/meghshah/paisawatch/internal/alert"
	"github.com/meghshah/paisawatch/internal/config"
	"github.com/meghshah/paisawatch/internal/guardian"
	"github.com/meghshah/paisawatch/internal/health"
	"github.com/meghshah/paisawatch/internal/logging"
	"github.com/meghshah/paisawatch/internal/metrics"
	"github.com/meghshah/paisawatch/internal/store"
	"github.com/meghshah/paisawatch/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting guardd",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		return err
	}
	defer func() {
		if err := shutdownTraces(context.Background()); err != nil {
			logger.Error("trace shutdown error", "error", err)
		}
	}()

	checks := health.NewRegistry()

	var st store.Store
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return err
		}
		defer func() { _ = db.Close() }()

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			logger.Error("failed to connect to database", "error", err)
			return err
		}
		st = store.NewPostgresStore(db)
		logger.Info("using PostgreSQL storage")

		checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Fail("database", err.Error())
			}
			return health.OK("database")
		})
		go metrics.StartDBStatsCollector(ctx, db, 15*time.Second)
	} else {
		st = store.NewMemoryStore()
		logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
	}

	svc := guardian.New(st, alert.NewLogSink(logger), guardian.WithLogger(logger))

	reviewer := guardian.NewReviewer(svc, logger).WithInterval(cfg.ReviewInterval)
	go reviewer.Start(ctx)
	checks.Register("reviewer", func(ctx context.Context) health.Status {
		if !reviewer.Running() {
			return health.Fail("reviewer", "review loop is not running")
		}
		return health.OK("reviewer")
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthy, statuses := checks.CheckAll(r.Context())
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy": healthy,
			"version": Version,
			"checks":  statuses,
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("observability endpoints up", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Error("server error", "error", err)
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	cancel()
	reviewer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("guardd stopped")
	return nil
}
