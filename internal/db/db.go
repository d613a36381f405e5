package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Addr         string        `env:"DB_ADDR"`
	MaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"15m"`
	ConnectLimit time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a database address was configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}

// New opens a pgx pool and pings it before returning.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse db address: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	if cfg.MaxIdleTime > 0 {
		config.MaxConnIdleTime = cfg.MaxIdleTime
	}

	// Bounds pool start-up including the first connections and the ping.
	limit := cfg.ConnectLimit
	if limit <= 0 {
		limit = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
