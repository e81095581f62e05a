// Package database provides PostgreSQL connection management using pgx,
// plus schema setup and reference data seeding.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/config"
	"github.com/seatsync/seatsync/internal/repository"
)

//go:embed schema.sql
var schema string

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		log.Warn("db connect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("of", connectAttempts),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// Migrate creates the tables if they don't exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Seed inserts reference data. Existing rows are left untouched.
func Seed(ctx context.Context, pool *pgxpool.Pool, ref repository.Reference) error {
	batch := &pgx.Batch{}
	for _, i := range ref.Institutions {
		batch.Queue(
			`INSERT INTO institutions (id, name, short_name, code)
			 VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			i.ID, i.Name, i.ShortName, i.Code)
	}
	for _, u := range ref.Users {
		batch.Queue(
			`INSERT INTO users (id, name, email, role, institution_id)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			u.ID, u.Name, u.Email, string(u.Role), u.InstitutionID)
	}
	for _, v := range ref.Venues {
		batch.Queue(
			`INSERT INTO venues (id, institution_id, name, capacity, location, floor, amenities)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
			v.ID, v.InstitutionID, v.Name, v.Capacity, v.Location, v.Floor, v.Amenities)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}
	return nil
}
