package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/smartmark/smartmark/internal/auth"
	"github.com/smartmark/smartmark/internal/config"
	"github.com/smartmark/smartmark/internal/httpserver"
	"github.com/smartmark/smartmark/internal/httpserver/deps"
	"github.com/smartmark/smartmark/internal/logger"
	"github.com/smartmark/smartmark/internal/realtime"
	"github.com/smartmark/smartmark/internal/redis"
	"github.com/smartmark/smartmark/internal/store/postgres"
	"github.com/smartmark/smartmark/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	pgPool      *pgxpool.Pool
	redisClient *goredis.Client
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Postgres early - fail fast if unavailable
	pgPool, err := postgres.Connect(context.Background(), postgres.ConnectOptions{
		DatabaseURL:    cfg.DatabaseURL,
		ConnectTimeout: cfg.PgConnectTimeout,
		RetryInterval:  cfg.PgRetryInterval,
		MaxWait:        cfg.PgMaxRetryWait,
		PingTimeout:    cfg.PgPingTimeout,
		WarnThreshold:  cfg.PgWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Postgres: %v", err)
		os.Exit(1)
	}

	if err := postgres.EnsureSchema(context.Background(), pgPool); err != nil {
		loggerClient.Errorf("Failed to apply schema: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Postgres initialized successfully")

	// Redis carries the realtime change feed
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDialTimeout,
		ReadTimeout:    cfg.RedisReadTimeout,
		WriteTimeout:   cfg.RedisWriteTimeout,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxRetryWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := postgres.NewStore(pgPool)
	broker := realtime.NewBroker(redisClient)

	if cfg.DevTokens {
		loggerClient.Warn("dev token endpoint enabled - do not run this in production")
	}

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		Bookmarks:      store,
		Profiles:       store,
		Events:         broker,
		Broker:         broker,
		Verifier:       auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		PGPool:         pgPool,
		RedisClient:    redisClient,
		AllowedOrigins: cfg.AllowedOrigins,
		DevTokens:      cfg.DevTokens,
		TokenTTL:       cfg.TokenTTL,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		pgPool:      pgPool,
		redisClient: redisClient,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting smartmarkd v%s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("smartmarkd %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if a.pgPool != nil {
		a.pgPool.Close()
		a.logger.Info("✅ Postgres pool closed cleanly")
	}

	a.logger.Info("✅ smartmarkd stopped cleanly")
	return nil
}
