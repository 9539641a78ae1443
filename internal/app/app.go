// Package app is the composition root of the storefront client. It opens
// the durable key-value store, builds exactly one store per resource domain
// over a shared transport client and invalidation bus, and ties identity
// changes to the caches that depend on who is signed in.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-storefront-client/internal/auth"
	"github.com/tbourn/go-storefront-client/internal/bus"
	"github.com/tbourn/go-storefront-client/internal/config"
	"github.com/tbourn/go-storefront-client/internal/repo"
	"github.com/tbourn/go-storefront-client/internal/services"
	"github.com/tbourn/go-storefront-client/internal/transport"
)

const redisKeyPrefix = "storefront:"

// App holds the wired services. Build it with New or NewWithKV.
type App struct {
	Bus    *bus.Bus
	Client *transport.Client
	Creds  *auth.Store

	Guests    *services.GuestSessionService
	Catalog   *services.CatalogService
	Cart      *services.CartService
	Wishlist  *services.WishlistService
	Orders    *services.OrderService
	Addresses *services.AddressService
	Auth      *services.AuthService

	durable   repo.KV
	ephemeral *repo.MemoryKV
	closers   []io.Closer
	unsub     func()
}

// New opens the configured durable store and wires the services over it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	kv, closer, err := OpenKV(ctx, cfg.Fallback)
	if err != nil {
		return nil, err
	}
	a := NewWithKV(cfg, kv)
	a.closers = append(a.closers, closer)
	return a, nil
}

// NewWithKV wires the services over an already open durable store.
func NewWithKV(cfg config.Config, durable repo.KV) *App {
	a := &App{
		Bus:       bus.New(),
		durable:   durable,
		ephemeral: repo.NewMemoryKV(),
	}
	a.Creds = auth.NewStore(durable, a.ephemeral)
	a.Client = transport.New(transport.Options{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.RequestTimeout,
		RateRPS:         cfg.RateRPS,
		RateBurst:       cfg.RateBurst,
		BreakerFailures: cfg.Breaker.Failures,
		BreakerTimeout:  cfg.Breaker.OpenTimeout,
	}, a.Creds)

	a.Guests = services.NewGuestSessionService(a.Client, durable)
	d := services.Deps{
		Client:        a.Client,
		KV:            durable,
		Bus:           a.Bus,
		Identity:      services.Identity{Creds: a.Creds, Guests: a.Guests},
		SnapshotReads: cfg.Fallback.SnapshotReads,
	}

	a.Catalog = services.NewCatalogService(d, cfg.Cache.CatalogTTL)
	a.Cart = services.NewCartService(d, cfg.Cache.ListTTL)
	a.Wishlist = services.NewWishlistService(d, cfg.Cache.ListTTL, cfg.Cache.MembershipTTL)
	a.Orders = services.NewOrderService(d, cfg.Cache.ListTTL)
	a.Addresses = services.NewAddressService(d, cfg.Cache.ListTTL, cfg.Cache.CatalogTTL)
	a.Auth = services.NewAuthService(d, a.Guests)

	a.Cart.Products = a.Catalog
	a.Orders.Cart = a.Cart
	a.Guests.Orders = a.Orders
	a.Client.SetOnAuthExpired(a.Auth.HandleExpired)

	// Cache keys are not scoped by owner, so a new identity starts cold.
	a.unsub = a.Bus.Subscribe(bus.AuthChanged, func(bus.Topic) { a.invalidateUserScoped() })
	return a
}

func (a *App) invalidateUserScoped() {
	a.Cart.Invalidate()
	a.Wishlist.Invalidate()
	a.Orders.Invalidate()
	a.Addresses.Invalidate()
	log.Debug().Str("component", "app").Msg("user-scoped caches dropped")
}

// Reset clears every cache, every local copy and the credentials. The guest
// session is removed as well, so the next visitor starts fresh.
func (a *App) Reset(ctx context.Context) error {
	err := errors.Join(
		a.Cart.Reset(ctx),
		a.Wishlist.Reset(ctx),
		a.Orders.Reset(ctx),
		a.Catalog.Reset(ctx),
		a.Auth.Reset(ctx),
		a.Guests.Reset(ctx),
	)
	a.Addresses.Invalidate()
	a.ephemeral.Clear()
	return err
}

// Close waits for background work and releases the durable store.
func (a *App) Close() error {
	a.Auth.WaitLinks()
	if a.unsub != nil {
		a.unsub()
	}
	var errs []error
	for _, c := range a.closers {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// OpenKV opens the durable store selected by cfg.Backend. The returned
// closer releases it.
func OpenKV(ctx context.Context, cfg config.FallbackConfig) (repo.KV, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		kv := repo.NewRedisKV(client, redisKeyPrefix)
		return kv, kv, nil

	case config.BackendSQLite, "":
		db, err := repo.OpenSQLite(cfg.DBPath, repo.WithLogger(logger.Default.LogMode(logger.Warn)))
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite %s: %w", cfg.DBPath, err)
		}
		kv := repo.NewSQLiteKV(db)
		if err := repo.AutoMigrate(db); err != nil {
			_ = kv.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return kv, kv, nil
	}
	return nil, nil, fmt.Errorf("unknown fallback backend %q", cfg.Backend)
}
