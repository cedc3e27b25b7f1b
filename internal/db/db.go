package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tyforge-web/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// El frontend solo escribe leads: pocas conexiones alcanzan.
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

const leadsSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	name        TEXT NOT NULL,
	email       TEXT,
	phone       TEXT,
	plan_name   TEXT,
	subject     TEXT,
	body        TEXT NOT NULL,
	device_id   TEXT,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_source_created_idx ON leads (source, created_at DESC);
`

// EnsureSchema crea la tabla de leads si no existe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, leadsSchema)
	return err
}
