package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/tirtabot/internal/config"
	"github.com/user/tirtabot/internal/customer"
	"github.com/user/tirtabot/internal/engine"
	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/reply"
	"github.com/user/tirtabot/internal/state"
	"github.com/user/tirtabot/internal/storage"
	"github.com/user/tirtabot/internal/types"
)

// sessionBackend is what every configured session store provides.
type sessionBackend interface {
	types.SessionStore
	types.SessionPruner
}

// backends holds the opened stores and releases them in reverse order.
type backends struct {
	sessions  sessionBackend
	customers types.CustomerStore
	closers   []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openSessions connects the session store selected by cfg.SessionStore.
// storeOverride replaces the configured backend when non-empty.
func openSessions(ctx context.Context, cfg *config.Config, storeOverride string, b *backends) error {
	kind := cfg.SessionStore
	if storeOverride != "" {
		kind = storeOverride
	}
	opts := []state.Option{state.WithTTL(cfg.SessionTTL())}
	policy := storage.DefaultRetryPolicy()

	switch kind {
	case config.StoreMemory:
		b.sessions = state.NewMemoryStore(opts...)
	case config.StoreRedis:
		client, err := storage.ConnectRedis(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, policy)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				slog.Warn("close redis", "error", err)
			}
		})
		b.sessions = state.NewRedisStore(client, opts...)
	case config.StorePostgres, "":
		if cfg.Sessions.DatabaseURL == "" {
			return fmt.Errorf("sessions.database_url is required for the postgres session store")
		}
		pool, err := storage.ConnectPostgres(ctx, cfg.Sessions.DatabaseURL, policy)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, pool.Close)
		b.sessions = state.NewPostgresStore(pool, opts...)
	default:
		return fmt.Errorf("unknown session store %q (want postgres, redis or memory)", kind)
	}
	slog.Info("session store ready", "store", kind, "ttl", cfg.SessionTTL())
	return nil
}

func openCustomers(ctx context.Context, cfg *config.Config, b *backends) error {
	if cfg.Billing.DatabaseURL == "" {
		return fmt.Errorf("billing.database_url is required")
	}
	db, err := storage.OpenSQL(ctx, cfg.Billing.DatabaseURL, storage.DefaultRetryPolicy())
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() {
		if err := db.Close(); err != nil {
			slog.Warn("close billing database", "error", err)
		}
	})
	b.customers = customer.NewStore(db)
	return nil
}

// openBackends opens the session and billing stores. The caller must Close
// the result, also on error.
func openBackends(ctx context.Context, cfg *config.Config, storeOverride string) (*backends, error) {
	b := &backends{}
	if err := openSessions(ctx, cfg, storeOverride, b); err != nil {
		return b, fmt.Errorf("open session store: %w", err)
	}
	if err := openCustomers(ctx, cfg, b); err != nil {
		return b, fmt.Errorf("open billing database: %w", err)
	}
	return b, nil
}

func newRenderer(cfg *config.Config) (*reply.Renderer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return reply.New(reply.Options{
		OrgName: cfg.OrgName,
		Office: types.Place{
			Latitude:  cfg.Office.Latitude,
			Longitude: cfg.Office.Longitude,
			Name:      cfg.Office.Name,
			Address:   cfg.Office.Address,
			URL:       cfg.Office.URL,
		},
		Location: loc,
	})
}

// newEngine builds the conversation engine. fast drops the simulated typing
// delays.
func newEngine(cfg *config.Config, b *backends, m *metrics.Metrics, fast bool) (*engine.Engine, error) {
	replies, err := newRenderer(cfg)
	if err != nil {
		return nil, fmt.Errorf("create replies: %w", err)
	}
	var pacing engine.Pacing
	if !fast {
		pacing.Short, pacing.Normal, pacing.Long, pacing.Gap = cfg.PacingDurations()
	}
	return engine.New(b.sessions, b.customers, replies,
		engine.WithPacing(pacing),
		engine.WithMetrics(m),
	)
}
