package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kairo-ai/kairo/internal/model"
	"github.com/kairo-ai/kairo/migrations"
)

// PostgresSource loads part records from a Postgres parts table. Records
// are stored as JSONB and funnel through the same validated decode path
// as file catalogs, so both sources enforce one schema.
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresSource connects to Postgres and applies the parts schema.
func NewPostgresSource(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	s := &PostgresSource{pool: pool, logger: logger}
	if err := s.runMigrations(ctx, migrations.FS); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() { s.pool.Close() }

// Pool exposes the underlying pool for seeding in tests.
func (s *PostgresSource) Pool() *pgxpool.Pool { return s.pool }

// LoadParts reads every row in insertion order. Rows failing record
// validation are skipped and logged, mirroring file-source semantics.
func (s *PostgresSource) LoadParts(ctx context.Context) ([]model.PartRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, record FROM parts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("catalog: query parts: %w", err)
	}
	defer rows.Close()

	var parts []model.PartRecord
	for rows.Next() {
		var category string
		var record []byte
		if err := rows.Scan(&category, &record); err != nil {
			return nil, fmt.Errorf("catalog: scan part row: %w", err)
		}
		p, err := decodePart(json.RawMessage(record), category, s.logger)
		if err != nil {
			s.logger.Warn("catalog: invalid row dropped", "reason", err)
			continue
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate parts: %w", err)
	}
	return parts, nil
}

// InsertPart stores one part record. Used by catalog import tooling and
// tests; the resolution pipeline itself never writes.
func (s *PostgresSource) InsertPart(ctx context.Context, p model.PartRecord) error {
	record, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("catalog: marshal part %s: %w", p.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO parts (id, category, record) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET category = EXCLUDED.category, record = EXCLUDED.record`,
		p.ID, strings.ToLower(p.Category), record,
	)
	if err != nil {
		return fmt.Errorf("catalog: insert part %s: %w", p.ID, err)
	}
	return nil
}

// runMigrations executes unapplied SQL files from the embedded filesystem
// in name order, tracking them in schema_migrations so each runs at most
// once.
func (s *PostgresSource) runMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("catalog: create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("catalog: load applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("catalog: scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("catalog: iterate migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("catalog: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("catalog: read migration %s: %w", name, err)
		}
		s.logger.Info("running migration", "file", name)
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("catalog: execute migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("catalog: record migration %s: %w", name, err)
		}
	}
	return nil
}
