// Command analytics aggregates search analytics published by every searcher
// replica.
//
// It consumes the search-analytics topic, keeps running totals in memory,
// snapshots them to PostgreSQL when enabled, and serves them at
// GET /api/v1/analytics for curation dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/analytics"
	analyticsstore "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 8082, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled; searchers without Kafka serve their own analytics")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		cfg.Kafka.ConsumerGroup+"-analytics", analytics.HandleEvent(agg))
	defer consumer.Close()
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Start(ctx)
	}()

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case err := <-consumerErr:
			consumerErr <- err
			if err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
		default:
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: "consuming " + cfg.Kafka.Topics.AnalyticsEvents}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.StatsHandler(agg))

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			store := analyticsstore.NewStore(pg)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshot table unavailable", "error", err)
			} else {
				restore(ctx, store)
				store.StartPeriodicSave(ctx, agg, snapshotInterval)
				mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsstore.History(store))
			}
			checker.Register("postgres", health.PingCheck(pg.Ping, false))
		}
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port + 2)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight handlers
	// must finish before the deferred closes run.
	<-shutdownDone
	slog.Info("analytics service stopped")
}

// restore logs the last persisted snapshot so operators can see where the
// counters stood before the restart; in-memory totals start from zero.
func restore(ctx context.Context, store *analyticsstore.Store) {
	last, err := store.LatestSnapshot(ctx)
	switch {
	case err != nil:
		slog.Warn("reading last analytics snapshot failed", "error", err)
	case last == nil:
		slog.Info("no previous analytics snapshot")
	default:
		slog.Info("previous analytics snapshot",
			"kb_version", last.KBVersion,
			"captured_at", last.CapturedAt,
			"total_searches", last.Stats.TotalSearches,
		)
	}
}
