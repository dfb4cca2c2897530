// Package storage provides Postgres access for the operator-managed routing
// metadata and reputation state described in spec.md §6: commands, entities,
// servers, community_servers, routing, routing_gateways, gateway_servers,
// reputation, weights, events, and optional durable sessions.
//
// Grounded on the teacher's pkg/database: same connection-pool-plus-migrate
// shape, same "migrations embedded and auto-applied on startup" workflow.
// The teacher wraps an ent.Client around the pool; ent requires `go
// generate` to produce its runtime package, which this exercise cannot run,
// so this package talks to Postgres directly through pgx instead (see
// DESIGN.md).
package storage

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver, used only for migrations
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a pgx connection pool and exposes one repository per
// persisted entity named in spec.md §6.
type Client struct {
	pool *pgxpool.Pool

	Entities   *EntityRepo
	Routing    *RoutingRepo
	Commands   *CommandRepo
	Reputation *ReputationRepo
	Sessions   *SessionRepo
	Tokens     *TokenRepo
}

// Pool returns the underlying pgx pool, for health checks.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Close releases the pool's connections.
func (c *Client) Close() { c.pool.Close() }

// NewClient opens a connection pool against cfg.DatabaseURL, applies pending
// migrations, and returns a Client with every repository wired to the pool.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	return &Client{
		pool:       pool,
		Entities:   &EntityRepo{pool: pool},
		Routing:    &RoutingRepo{pool: pool},
		Commands:   &CommandRepo{pool: pool},
		Reputation: &ReputationRepo{pool: pool},
		Sessions:   &SessionRepo{pool: pool},
		Tokens:     NewTokenRepo(pool),
	}, nil
}

// runMigrations applies every embedded *.sql migration via golang-migrate,
// using its own short-lived database/sql connection (migrate's postgres
// driver wants a *sql.DB, not a pgx pool).
func runMigrations(databaseURL string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found, binary may be built incorrectly")
	}

	db, err := stdsql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && len(name) > 4 && name[len(name)-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
