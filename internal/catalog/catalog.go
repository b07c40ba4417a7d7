// Package catalog implements the Tool Catalog collaborator: a key-value
// store over tool metadata and source text, keyed by name.
//
// Grounded on manifold's database.go, which wraps pgx behind a minimal
// querier/connector interface pair so the handler can be tested without a
// live Postgres instance; the same shape is used here for the Catalog's
// pgx.Pool dependency, fronted by an optional go-redis read cache that is
// filled on Find and invalidated on write (§B domain stack wiring).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"taskforge/internal/model"
)

// querier is the minimal surface the Catalog needs from a pgx connection or
// pool, mirroring manifold's database.go querier interface so call sites
// can be exercised against a fake in tests.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the Catalog collaborator's interface, matching spec.md §6:
// list, find(name), getSource(name), upsert(record), delete(name).
type Store interface {
	List(ctx context.Context) ([]model.CatalogRecord, error)
	Find(ctx context.Context, name string) (*model.CatalogRecord, error)
	GetSource(ctx context.Context, name string) (string, error)
	Upsert(ctx context.Context, record model.CatalogRecord) error
	Delete(ctx context.Context, name string) error
}

// PostgresStore persists tool records in a "tools" table, optionally
// fronted by a Redis read cache. Writes always go to Postgres first; the
// cache is invalidated (not updated) on write, the same "invalidate, don't
// race to repopulate" discipline the Registry uses for its in-memory index.
type PostgresStore struct {
	pool  querier
	cache *redis.Client // nil disables caching
	ttl   time.Duration

	mu sync.Mutex // serializes writes, per §5's "Registry mutations are serialized"
}

// NewPostgresStore wires a pgx pool (and optional Redis client) into a
// Store. The constructor takes a *pgxpool.Pool, but PostgresStore stores
// it as the querier interface, so tests inside this package can build a
// PostgresStore around a fake connection the way manifold's database.go
// stubs connectFunc.
func NewPostgresStore(pool *pgxpool.Pool, cache *redis.Client) *PostgresStore {
	return &PostgresStore{pool: pool, cache: cache, ttl: 5 * time.Minute}
}

// EnsureSchema creates the tools table if it does not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tools (
	name TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	input_type TEXT NOT NULL DEFAULT '',
	output_type TEXT NOT NULL DEFAULT '',
	parameter_schema JSONB NOT NULL DEFAULT '{}',
	source_text TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("ensure tools schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.CatalogRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, description, input_type, output_type, parameter_schema, source_text, provenance, created_at, updated_at FROM tools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %v", model.ErrCatalogSave, err)
	}
	defer rows.Close()

	var out []model.CatalogRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Find(ctx context.Context, name string) (*model.CatalogRecord, error) {
	if s.cache != nil {
		if cached, ok := s.readCache(ctx, name); ok {
			return cached, nil
		}
	}

	rows, err := s.pool.Query(ctx, `SELECT name, description, input_type, output_type, parameter_schema, source_text, provenance, created_at, updated_at FROM tools WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", model.ErrCatalogSave, name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.writeCache(ctx, rec)
	}
	return &rec, nil
}

func (s *PostgresStore) GetSource(ctx context.Context, name string) (string, error) {
	rec, err := s.Find(ctx, name)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownTool, name)
	}
	return rec.SourceText, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, record model.CatalogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schemaJSON, err := json.Marshal(record.ParameterSchema)
	if err != nil {
		return fmt.Errorf("marshal parameter schema for %s: %w", record.Name, err)
	}
	now := record.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO tools (name, description, input_type, output_type, parameter_schema, source_text, provenance, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (name) DO UPDATE SET
	description = EXCLUDED.description,
	input_type = EXCLUDED.input_type,
	output_type = EXCLUDED.output_type,
	parameter_schema = EXCLUDED.parameter_schema,
	source_text = EXCLUDED.source_text,
	provenance = EXCLUDED.provenance,
	updated_at = EXCLUDED.updated_at`,
		record.Name, record.Description, record.InputType, record.OutputType,
		schemaJSON, record.SourceText, record.Provenance, record.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", model.ErrCatalogSave, record.Name, err)
	}

	if s.cache != nil {
		s.invalidateCache(ctx, record.Name)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx, `DELETE FROM tools WHERE name = $1`, name); err != nil {
		return fmt.Errorf("%w: delete %s: %v", model.ErrCatalogSave, name, err)
	}
	if s.cache != nil {
		s.invalidateCache(ctx, name)
	}
	return nil
}

func (s *PostgresStore) cacheKey(name string) string { return "taskforge:tool:" + name }

func (s *PostgresStore) readCache(ctx context.Context, name string) (*model.CatalogRecord, bool) {
	raw, err := s.cache.Get(ctx, s.cacheKey(name)).Bytes()
	if err != nil {
		return nil, false
	}
	var rec model.CatalogRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *PostgresStore) writeCache(ctx context.Context, rec model.CatalogRecord) {
	if b, err := json.Marshal(rec); err == nil {
		s.cache.Set(ctx, s.cacheKey(rec.Name), b, s.ttl)
	}
}

func (s *PostgresStore) invalidateCache(ctx context.Context, name string) {
	s.cache.Del(ctx, s.cacheKey(name))
}

func scanRecord(rows pgx.Rows) (model.CatalogRecord, error) {
	var rec model.CatalogRecord
	var schemaJSON []byte
	if err := rows.Scan(&rec.Name, &rec.Description, &rec.InputType, &rec.OutputType, &schemaJSON, &rec.SourceText, &rec.Provenance, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, fmt.Errorf("scan tool row: %w", err)
	}
	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &rec.ParameterSchema); err != nil {
			return rec, fmt.Errorf("unmarshal parameter schema for %s: %w", rec.Name, err)
		}
	}
	return rec, nil
}
