package main // Entry point package

import (
	"context"   // Root context cancelled on shutdown signals
	"errors"    // errors.Is distinguishes a clean server close
	"log"       // Fallback logging before zap is ready
	"net/http"  // http.ErrServerClosed
	"os"        // Process signals
	"os/signal" // signal.NotifyContext
	"syscall"   // SIGTERM
	"time"      // Shutdown deadline

	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"             // Structured logging
	"go.uber.org/zap/zapcore"     // Level parsing

	"github.com/gearguard/gearguard/internal/config"     // Internal config loader
	"github.com/gearguard/gearguard/internal/database"   // MySQL connection pool
	"github.com/gearguard/gearguard/internal/gateway"    // Payment gateway client
	"github.com/gearguard/gearguard/internal/handler"    // HTTP handlers
	"github.com/gearguard/gearguard/internal/middleware" // Logging, metrics, rate limit, cache
	"github.com/gearguard/gearguard/internal/queue"      // Activity event publisher and consumer
	"github.com/gearguard/gearguard/internal/repository" // SQL repositories
	"github.com/gearguard/gearguard/internal/router"     // Route registration
	"github.com/gearguard/gearguard/internal/service"    // Domain services
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	// nil when Redis is down; rate limit and cache then pass through
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	equipmentRepo := repository.NewEquipmentRepo(db)
	teamRepo := repository.NewTeamRepo(db)
	requestRepo := repository.NewRequestRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitURL, logger)
	recorder := middleware.PromRecorder{}
	gw := gateway.New(cfg, logger)

	accounts := service.NewAccounts(users, tokens, cfg, logger)
	equipment := service.NewEquipment(equipmentRepo, teamRepo, logger)
	teams := service.NewTeams(teamRepo, users, logger)
	workflow := service.NewWorkflow(requestRepo, equipmentRepo, publisher, recorder, logger)
	payments := service.NewPayments(paymentRepo, equipmentRepo, requestRepo, gw, publisher, recorder, cfg.Currency, logger)

	go func() {
		if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("activity publisher stopped", zap.Error(err))
		}
	}()
	consumer := queue.NewConsumer(cfg.RabbitURL, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("activity consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	// Identify runs first so the limiter keys and request logs carry the user id.
	e.Use(middleware.Identify(cfg.AccessTokenSecret))
	e.Use(middleware.RequestLogger(logger), middleware.Metrics())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger)

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterAuth(e, handler.NewAuthHandler(accounts, cfg.IsProduction()), cfg.AccessTokenSecret)
	router.RegisterUsers(e, handler.NewUserHandler(accounts), cfg.AccessTokenSecret, cache)
	router.RegisterEquipment(e, handler.NewEquipmentHandler(equipment, workflow), cfg.AccessTokenSecret)
	router.RegisterTeams(e, handler.NewTeamHandler(teams), cfg.AccessTokenSecret, cache)
	router.RegisterRequests(e, handler.NewRequestHandler(workflow), cfg.AccessTokenSecret)
	router.RegisterPayments(e, handler.NewPaymentHandler(payments), cfg.AccessTokenSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newLogger builds a JSON logger in production and a console logger
// elsewhere, both at cfg.LogLevel.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
