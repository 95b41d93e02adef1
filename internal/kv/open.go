package kv

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/config"
)

// Open builds the backend selected by cfg.Driver, wrapped with metrics
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case "", "memory":
		store = NewMemoryStore()
	case "postgres":
		store, err = openPostgres(ctx, cfg.Postgres)
	case "badger":
		store, err = OpenBadger(cfg.Badger.Path)
	case "redis":
		rdb, rerr := NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if rerr != nil {
			return nil, rerr
		}
		store = NewRedisStore(rdb, cfg.Redis.Namespace)
	case "dynamodb":
		store, err = openDynamo(ctx, cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "memory"
	}
	log.Info().Str("driver", driver).Msg("Key-value store ready")
	return Instrument(store, driver), nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func openDynamo(ctx context.Context, cfg config.DynamoDBConfig) (*DynamoStore, error) {
	client, err := NewDynamoClient(ctx, cfg.Region, cfg.AccessKey, cfg.SecretKey, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	store := NewDynamoStore(client, cfg.Table)
	if cfg.CreateTable {
		if err := store.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}
