package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/config"
)

// Pools holds the database connections for a gatherer. Only TimescaleDB
// is used: all persisted data is time-series, and market metadata lives
// in-memory in the catalog.
type Pools struct {
	// Timescale holds book snapshots, level changes, and trades.
	Timescale *pgxpool.Pool
}

// NewPools creates the gatherer's connection pools.
func NewPools(ctx context.Context, cfg config.DatabaseConfig) (*Pools, error) {
	ts, err := Connect(ctx, cfg.Timescale)
	if err != nil {
		return nil, fmt.Errorf("connect timescale: %w", err)
	}

	return &Pools{Timescale: ts}, nil
}

// Connect creates a single connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Close closes all connection pools.
func (p *Pools) Close() {
	if p.Timescale != nil {
		p.Timescale.Close()
	}
}

// Ping verifies the connections are healthy.
func (p *Pools) Ping(ctx context.Context) error {
	if err := p.Timescale.Ping(ctx); err != nil {
		return fmt.Errorf("ping timescale: %w", err)
	}
	return nil
}
