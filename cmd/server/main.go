package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/alert"
	handlers "github.com/THORISO2Nnoi/GBV-sub000/internal/handler"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/listeners"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/store"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/auth"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/cache"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/config"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/middleware"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/scheduler"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/sse"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := config.Load(); err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.Mode)

	// Init DB
	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Lg.Fatal("database connect failed", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.Lg.Fatal("migration failed", zap.Error(err))
	}

	m := metrics.NewMetrics()

	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Lg.Fatal("cache init failed", zap.Error(err))
	}
	defer c.Close()
	dir := store.NewCachedDirectory(store.NewDBDirectory(db), c, cfg.DirectoryTTL)

	// Realtime transports
	wsCfg := websocket.LoadConfigFromEnv()
	if err := websocket.ValidateConfig(wsCfg); err != nil {
		logger.Lg.Fatal("websocket config invalid", zap.Error(err))
	}
	hub := websocket.NewHub(wsCfg)
	defer hub.Close()
	if cfg.ClusterEnabled {
		nc, err := messaging.NewClient(messaging.DefaultConfig(cfg.NatsURL, cfg.ClusterNodeID))
		if err != nil {
			logger.Lg.Fatal("nats connect failed", zap.Error(err))
		}
		defer nc.Close()
		if err := hub.EnableCluster(nc); err != nil {
			logger.Lg.Fatal("cluster relay failed", zap.Error(err))
		}
		logger.Info("cluster relay enabled", zap.String("node", cfg.ClusterNodeID), zap.String("nats", cfg.NatsURL))
	}
	events := sse.NewHub(cfg.SSEHeartbeat)
	listeners.InitSessionListeners(hub, events, m)

	// Alert services
	fanout := alert.NewFanout(m, hub, events)
	st := store.NewAlertStore(db)
	engine := alert.NewEngine(st, dir, fanout,
		alert.WithReinforceWindow(cfg.ReinforceWindow),
		alert.WithMetrics(m))
	aggregator := alert.NewAggregator(st, fanout, m)

	// start background jobs
	jobs := scheduler.NewCron(time.UTC)
	if _, err := jobs.Add(cfg.GaugeSchedule, scheduler.FuncJob(engine.RefreshOpenGauge)); err != nil {
		logger.Lg.Fatal("schedule open-alert gauge", zap.Error(err))
	}
	jobs.Start()
	defer jobs.Stop()

	limiterStore, err := newLimiterStore(cfg)
	if err != nil {
		logger.Lg.Fatal("rate limiter store", zap.Error(err))
	}
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.StatusRateLimit,
		Identifier: "user",
		AddHeaders: true,
	}, limiterStore).WithObserver(m)

	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware(m))
	handlers.NewHandlers(db, engine, aggregator, handlers.Options{
		APIPrefix:   cfg.APIPrefix,
		MetricsPath: cfg.MetricsPath,
		Issuer:      auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Idempotency: middleware.IdempotencyConfig{
			TTL:      cfg.IdempotencyTTL,
			Store:    c,
			OnReplay: m.IdempotentReplay,
		},
		RateLimiter: rl,
		Metrics:     m,
		WSHub:       hub,
		Events:      events,
	}).Register(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown", zap.Error(err))
	}
}

// newLimiterStore shares counters across nodes through Redis when asked to.
func newLimiterStore(cfg *config.Config) (limiter.Store, error) {
	if !cfg.RateLimiterRedis {
		return nil, nil
	}
	return sredis.NewStoreWithOptions(cache.NewRedisClient(cfg.Cache.Redis), limiter.StoreOptions{
		Prefix: "sos:limiter",
	})
}
