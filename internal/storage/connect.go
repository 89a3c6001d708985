// Package storage opens the database and cache handles used by the stores
// and waits for them to answer before the service starts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// ConnectPostgres opens a pgx pool for the sessions database and pings it
// under policy.
func ConnectPostgres(ctx context.Context, dsn string, policy *RetryPolicy) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse postgres dsn: %w", err)
	}
	if err := ping(ctx, "postgres", policy, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// OpenSQL opens a database/sql handle on the lib/pq driver. The billing
// database is read-only from here, so the pool is kept small.
func OpenSQL(ctx context.Context, dsn string, policy *RetryPolicy) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open billing database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(ctx, "billing", policy, db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// RedisOptions holds the subset of redis.Options exposed in config.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis creates a redis client and pings it under policy.
func ConnectRedis(ctx context.Context, opts RedisOptions, policy *RetryPolicy) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	err := ping(ctx, "redis", policy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func ping(ctx context.Context, name string, policy *RetryPolicy, fn func(context.Context) error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	attempt := 0
	err := policy.Execute(ctx, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := fn(pingCtx); err != nil {
			slog.Warn("storage ping failed", "store", name, "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: %s unavailable after %d attempts: %w", name, attempt, err)
	}
	slog.Info("storage connected", "store", name)
	return nil
}
