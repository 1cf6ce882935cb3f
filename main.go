package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicsync/config"
	"civicsync/controllers"
	"civicsync/middlewares"
	"civicsync/repository"
	"civicsync/routes"
	"civicsync/services"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, envFound := config.Load()

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if !envFound {
		logger.Info("no .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	tokens, err := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	ids, err := utils.NewIDGenerator(cfg.SnowflakeNode)
	if err != nil {
		return err
	}

	var (
		issueRepo repository.IssueRepository
		userRepo  repository.UserRegistry
	)
	switch cfg.Storage {
	case "mongo":
		client, db, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		if err := repository.EnsureIndexes(db); err != nil {
			return err
		}
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		issueRepo = repository.NewMongoIssueRepository(db)
		userRepo = repository.NewMongoUserRegistry(db)
	case "memory":
		issueRepo = repository.NewMemoryIssueRepository()
		userRepo = repository.NewMemoryUserRegistry()
	default:
		return errors.New("STORAGE must be memory or mongo")
	}

	var (
		denylist middlewares.TokenDenylist = middlewares.NewMemoryDenylist()
		limiter  gin.HandlerFunc
	)
	if cfg.RedisAddress != "" {
		rdb, err := config.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddress))
		denylist = middlewares.NewRedisDenylist(rdb, "revoked_token")
		limiter = middlewares.IssueRateLimiter(rdb, cfg.IssueLimitPrefix, cfg.IssueDailyLimit, 24*time.Hour, logger)
	} else {
		logger.Warn("REDIS_ADDRESS not set; issue rate limiting disabled")
	}

	if cfg.SeedDemo {
		if err := config.SeedDemo(ctx, issueRepo, userRepo, time.Now().UTC().Truncate(time.Millisecond)); err != nil {
			return err
		}
		logger.Info("demo data loaded")
	}

	policy := services.AdvisoryTransitions
	if cfg.StrictTransitions {
		policy = services.StrictTransitions
	}
	store := services.NewIssueStore(issueRepo, nil,
		services.WithLatency(cfg.SimulatedLatency),
		services.WithIDs(ids),
		services.WithTransitionPolicy(policy),
		services.WithLogger(logger.Named("issues")),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Deps{
		Auth: controllers.NewAuthController(userRepo, tokens, denylist,
			controllers.CookieConfig{Domain: cfg.CookieDomain(), Secure: cfg.IsProduction()},
			logger,
			services.WithSessionLatency(cfg.SimulatedLatency),
			services.WithSessionIDs(ids),
			services.WithSessionLogger(logger.Named("session")),
		),
		Issues:      controllers.NewIssueController(store, userRepo, logger),
		Tokens:      tokens,
		Denylist:    denylist,
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSOrigins,
		Log:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
