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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/analytics"
	analyticsstore "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/ledger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/publisher"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	kbDir := flag.String("kb-dir", "", "KB directory (overrides kb.dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *kbDir != "" {
		cfg.KB.Dir = *kbDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "kb_dir", cfg.KB.Dir, "min_docs", cfg.KB.MinDocs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	holder := indexer.NewHolder(indexer.OptionsFromConfig(cfg.Search), cfg.KB.MinDocs)
	if snap, err := holder.Reload(ctx, cfg.KB.Dir); err != nil {
		// The service still starts so /health/ready reports the cause and
		// POST /api/v1/kb/reload can recover once the KB is fixed.
		slog.Error("initial KB load failed, serving unavailable until reload", "error", err)
		m.KBReloadsTotal.WithLabelValues("error").Inc()
	} else {
		m.KBReloadsTotal.WithLabelValues("ok").Inc()
		m.SetKB(snap.KBVersion, len(snap.Docs))
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var pg *postgres.Client
	var publications handler.PublicationLister
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, publication ledger and analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			publications = ledger.New(pg)
		}
	}

	// Without Kafka the searcher aggregates its own analytics; with Kafka the
	// events go to the topic and cmd/analytics aggregates every replica.
	var tracker analytics.Tracker
	var aggregator *analytics.Aggregator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
	} else {
		aggregator = analytics.NewAggregator()
		tracker = aggregator
		if pg != nil {
			store := analyticsstore.NewStore(pg)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshot table unavailable", "error", err)
			} else {
				store.StartPeriodicSave(ctx, aggregator, time.Minute)
			}
		}
	}

	var admin func(http.Handler) http.Handler
	if cfg.Server.AdminToken != "" {
		admin = middleware.RequireAdmin(cfg.Server.AdminToken)
	} else {
		slog.Warn("no admin token configured, reload and cache invalidation are open")
	}

	exec := executor.New(holder)
	h := handler.New(exec, holder, handler.Options{
		KBDir:        cfg.KB.Dir,
		Cache:        queryCache,
		Tracker:      tracker,
		Metrics:      m,
		Publications: publications,
		Admin:        admin,
	})

	if cfg.Kafka.Enabled {
		// Each replica gets its own group so every one of them reloads.
		host, _ := os.Hostname()
		reload := func(ctx context.Context, dir string) error {
			_, err := h.ReloadKB(ctx, dir)
			return err
		}
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.KBPublished,
			cfg.Kafka.ConsumerGroup+"-reload-"+host, publisher.HandleReload(reload, cfg.KB.Dir))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("kb reload consumer error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("kb_index", func(ctx context.Context) health.ComponentHealth {
		snap := holder.Current()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no KB loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("kb_version %s, %d docs", snap.KBVersion, len(snap.Docs)),
		}
	})
	if cfg.Redis.Enabled {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if redisClient == nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
			}
			return health.PingCheck(redisClient.Ping, false)(ctx)
		})
	}
	if pg != nil {
		checker.Register("postgres", health.PingCheck(pg.Ping, false))
	}

	mux := http.NewServeMux()
	h.Register(mux)
	if aggregator != nil {
		mux.HandleFunc("GET /api/v1/analytics", analytics.StatsHandler(aggregator))
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		limiter.StartSweeper(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter, middleware.TrustedProxies(cfg.Server.TrustedProxies))(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; in-flight handlers
	// must finish before the deferred closes run.
	<-shutdownDone
	slog.Info("search service stopped")
}
