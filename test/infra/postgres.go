package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Harness owns the lifecycle of the Postgres test container and pgx pool.
type Harness struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	dsn       string
}

// NewHarness boots a Postgres 16 container and applies the repository
// migrations.
func NewHarness(ctx context.Context) (*Harness, error) {
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("verdict"),
		postgres.WithUsername("verdict"),
		postgres.WithPassword("verdict"),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("resolve connection string: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	cfg.MaxConns = 64
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	h := &Harness{
		container: pgContainer,
		pool:      pool,
		dsn:       dsn,
	}

	if err := h.applyMigrations(ctx); err != nil {
		h.Close(ctx)
		return nil, err
	}

	return h, nil
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections (e.g., chaos).
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.container != nil {
		_ = h.container.Terminate(ctx)
	}
}

func (h *Harness) applyMigrations(ctx context.Context) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	pgConn := conn.Conn().PgConn()
	for _, path := range files {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		res := pgConn.Exec(ctx, string(sql))
		if _, err := res.ReadAll(); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// migrationFiles resolves migrations/*.sql relative to this source file so
// the harness works regardless of the test binary's working directory.
func migrationFiles() ([]string, error) {
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("resolve caller path")
	}
	dir := filepath.Join(filepath.Dir(self), "..", "..", "migrations")
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations found in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// Reset truncates mutable tables and reseeds the system rows so the next
// epoch starts from a clean slate.
func (h *Harness) Reset(ctx context.Context) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`TRUNCATE TABLE outbox CASCADE`,
		`TRUNCATE TABLE disputes CASCADE`,
		`TRUNCATE TABLE reputation_history CASCADE`,
		`TRUNCATE TABLE submissions CASCADE`,
		`TRUNCATE TABLE bounties CASCADE`,
		`TRUNCATE TABLE engines CASCADE`,
		`TRUNCATE TABLE users CASCADE`,
		`TRUNCATE TABLE accounts CASCADE`,
		`INSERT INTO accounts (id) VALUES ('escrow'), ('fees')`,
		`UPDATE decay_runs SET last_run_at = NULL`,
	} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset %q: %w", stmt, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset commit: %w", err)
	}
	return nil
}
