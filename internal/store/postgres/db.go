package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartmark/smartmark/internal/logger"
)

// ConnectOptions defines Postgres connection and retry behavior.
type ConnectOptions struct {
	DatabaseURL    string        // pgx connection string
	ConnectTimeout time.Duration // total time allowed for connection attempts
	RetryInterval  time.Duration // initial wait between retries, grows exponentially
	MaxWait        time.Duration // max wait between retries
	PingTimeout    time.Duration // timeout for each ping attempt
	WarnThreshold  int           // warn (rather than error) up to this many attempts
}

// Connect opens a pgx pool and pings it until the database answers or
// ConnectTimeout is reached, backing off exponentially between attempts.
func Connect(ctx context.Context, opts ConnectOptions, log logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	log.Info("connecting to postgres",
		logger.String("host", poolCfg.ConnConfig.Host),
		logger.Duration("timeout", opts.ConnectTimeout))

	deadline := time.Now().Add(opts.ConnectTimeout)
	wait := opts.RetryInterval

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := pool.Ping(pingCtx)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to postgres after retry",
					logger.Int("attempts", attempt))
			} else {
				log.Info("connected to postgres")
			}
			return pool, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Error("postgres unavailable - giving up",
				logger.Int("attempts", attempt),
				logger.Error(err))
			pool.Close()
			return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", attempt, err)
		}

		if attempt <= opts.WarnThreshold {
			log.Warn("postgres connection failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
		} else {
			log.Error("postgres still unavailable - connection attempts failing",
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
		}

		if wait > remaining {
			wait = remaining
		}
		time.Sleep(wait)

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
}
