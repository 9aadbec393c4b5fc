package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/repository"
	"geopulse/internal/repository/memory"
	"geopulse/internal/repository/mongodb"
	"geopulse/internal/repository/postgres"
	"geopulse/internal/repository/redisgeo"
	"geopulse/internal/services"
)

const retentionInterval = time.Hour

// backends holds the opened store clients and the repositories built on
// them. Only the clients a driver needs are opened.
type backends struct {
	events   repository.EventRepository
	listings repository.ListingRepository

	pool    *pgxpool.Pool
	mongoDB *mongo.Database
	redis   *redis.Client

	memEvents   *memory.EventRepository
	redisEvents *redisgeo.EventStore

	closers []func()
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	if err := b.connect(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}

	switch cfg.Store.Events {
	case config.DriverPostgres:
		b.events = postgres.NewEventStore(b.pool)
	case config.DriverMongo:
		b.events = mongodb.NewEventStore(b.mongoDB)
	case config.DriverRedis:
		b.redisEvents = redisgeo.NewEventStore(b.redis, redisgeo.DefaultPrefix, cfg.Store.EventRetention)
		b.events = b.redisEvents
	default:
		b.memEvents = memory.NewEventRepository(cfg.Geo.IndexPrecision)
		b.events = b.memEvents
	}

	switch cfg.Store.Listings {
	case config.DriverPostgres:
		b.listings = postgres.NewListingStore(b.pool)
	case config.DriverMongo:
		b.listings = mongodb.NewListingStore(b.mongoDB)
	default:
		b.listings = memory.NewListingRepository(cfg.Geo.IndexPrecision)
	}

	slog.Info("stores ready", "events", cfg.Store.Events, "listings", cfg.Store.Listings)
	return b, nil
}

func uses(cfg *config.Config, driver string) bool {
	return cfg.Store.Events == driver || cfg.Store.Listings == driver
}

func (b *backends) connect(ctx context.Context, cfg *config.Config) error {
	if uses(cfg, config.DriverPostgres) {
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		b.pool = pool
	}

	if uses(cfg, config.DriverMongo) {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("ping mongo: %w", err)
		}
		b.mongoDB = client.Database(cfg.Store.MongoDatabase)
	}

	if uses(cfg, config.DriverRedis) {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		b.redis = rdb
	}
	return nil
}

// Migrate creates the schema and indexes of every SQL/document backend in
// use. Memory and Redis need none.
func (b *backends) Migrate(ctx context.Context, cfg *config.Config) error {
	var errs []error
	if b.pool != nil {
		if err := postgres.EnsureSchema(ctx, b.pool); err != nil {
			errs = append(errs, err)
		} else {
			slog.Info("postgres schema ensured")
		}
	}
	if b.mongoDB != nil {
		if err := mongodb.EnsureIndexes(ctx, b.mongoDB, cfg.Store.EventRetention); err != nil {
			errs = append(errs, err)
		} else {
			slog.Info("mongo indexes ensured", "database", cfg.Store.MongoDatabase)
		}
	}
	return errors.Join(errs...)
}

// StartRetention runs the event expiry the chosen backend does not do by
// itself, until ctx is cancelled. Postgres and Mongo rely on their own jobs
// and TTL index.
func (b *backends) StartRetention(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		return
	}
	switch {
	case b.memEvents != nil:
		sweeper := memory.NewRetentionSweeper(b.memEvents, retention, retentionInterval)
		sweeper.Start()
		go func() {
			<-ctx.Done()
			sweeper.Stop()
		}()
	case b.redisEvents != nil:
		go trimRedis(ctx, b.redisEvents, retention)
	}
}

func trimRedis(ctx context.Context, store *redisgeo.EventStore, retention time.Duration) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := store.TrimBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				slog.Warn("redis event trim failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("redis events trimmed", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close releases every client in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// newEngine builds the GeoIntelligence façade and its two result caches.
func newEngine(cfg *config.Config, b *backends) *services.GeoIntelligence {
	short := cache.New("short", cfg.Cache.ShortTTL, cfg.Cache.Capacity)
	long := cache.New("long", cfg.Cache.LongTTL, cfg.Cache.Capacity)
	return services.New(cfg, b.events, b.listings, short, long)
}
