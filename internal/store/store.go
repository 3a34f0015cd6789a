package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/graphtran/internal"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- chunk_cache keeps sanitized outputs keyed by backend scope, reference and chunk text
	CREATE TABLE IF NOT EXISTS chunk_cache (
		id TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		model TEXT NOT NULL,
		chunk_text TEXT NOT NULL,
		output_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 0,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- runs records each convert invocation
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		reference_path TEXT NOT NULL,
		backend TEXT NOT NULL,
		chunks INTEGER DEFAULT 0,
		status TEXT DEFAULT 'running',
		error TEXT DEFAULT '',
		verification TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cache_backend ON chunk_cache(backend, model);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.addColumn("runs", "verification", "TEXT DEFAULT ''")
}

// addColumn adds column to tables created before it existed.
func (s *Store) addColumn(table, column, decl string) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CacheKey derives the chunk_cache id. Any change to the backend scope, the
// reference text or the chunk yields a different key. Chunk text is NFC
// normalized but otherwise kept as is, whitespace included.
func CacheKey(scope, reference, chunk string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(reference))
	h.Write([]byte{0})
	h.Write([]byte(normalizeText(chunk)))
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkCache is the cache view for one backend, model and instruction.
type ChunkCache struct {
	s       *Store
	backend string
	model   string
	scope   string
}

func (s *Store) ChunkCache(backend, model, instruction string) *ChunkCache {
	return &ChunkCache{
		s:       s,
		backend: backend,
		model:   model,
		scope:   backend + "/" + model + "\n" + instruction,
	}
}

func (c *ChunkCache) Get(ctx context.Context, reference, chunk string) (string, bool, error) {
	id := CacheKey(c.scope, reference, chunk)

	var output string
	var invalidated bool
	err := c.s.db.QueryRowContext(ctx,
		`SELECT output_text, invalidated FROM chunk_cache WHERE id = ?`, id).Scan(&output, &invalidated)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if invalidated {
		return "", false, nil
	}

	_, err = c.s.db.ExecContext(ctx,
		`UPDATE chunk_cache SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`,
		time.Now(), id)
	return output, true, err
}

func (c *ChunkCache) Put(ctx context.Context, reference, chunk, output string) error {
	_, err := c.s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunk_cache (id, backend, model, chunk_text, output_text, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, 0, FALSE, ?, ?)`,
		CacheKey(c.scope, reference, chunk), c.backend, c.model, normalizeText(chunk), output, time.Now(), time.Now())
	return err
}

// CacheEntry is a row from the chunk_cache table.
type CacheEntry struct {
	ID          string
	Backend     string
	Model       string
	ChunkText   string
	OutputText  string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// CacheStats summarises chunk cache usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalHits      int
}

func (s *Store) InvalidateCache(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chunk_cache SET invalidated = TRUE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "cache entry", id)
}

// DeleteCache permanently removes a chunk cache entry by ID.
func (s *Store) DeleteCache(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_cache WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "cache entry", id)
}

// ClearCache removes all chunk cache entries.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListCache returns all chunk cache entries ordered by most recently used.
func (s *Store) ListCache(ctx context.Context) ([]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, backend, model, chunk_text, output_text, usage_count, invalidated, last_used FROM chunk_cache ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.ID, &e.Backend, &e.Model, &e.ChunkText, &e.OutputText, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the chunk cache.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM chunk_cache`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalHits,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// StartRun records a new run in the running state and returns it with its
// generated ID.
func (s *Store) StartRun(ctx context.Context, run internal.RunRecord) (*internal.RunRecord, error) {
	run.ID = uuid.NewString()
	run.Status = internal.RunStatusRunning
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, output_path, reference_path, backend, chunks, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputPath, run.ReferencePath, run.Backend, run.Chunks, run.Status, run.Timestamp, run.Timestamp)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// FinishRun marks a run completed, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status, msg := internal.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = internal.RunStatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, msg, time.Now(), id)
	if err != nil {
		return err
	}
	return expectOne(res, "run", id)
}

// SetRunVerification records the outcome of checking a run's output against
// the rule table. It leaves the run status alone: a run whose output was
// written stays completed even when verification fails.
func (s *Store) SetRunVerification(ctx context.Context, id string, passed bool) error {
	outcome := internal.VerificationFailed
	if passed {
		outcome = internal.VerificationPassed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET verification = ?, updated_at = ? WHERE id = ?`,
		outcome, time.Now(), id)
	if err != nil {
		return err
	}
	return expectOne(res, "run", id)
}

// RunEntry is a row from the runs table.
type RunEntry struct {
	internal.RunRecord
	Error        string
	Verification string
	UpdatedAt    time.Time
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	query := `SELECT id, input_path, output_path, reference_path, backend, chunks, status, error, verification, created_at, updated_at FROM runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunEntry
	for rows.Next() {
		var r RunEntry
		if err := rows.Scan(&r.ID, &r.InputPath, &r.OutputPath, &r.ReferencePath, &r.Backend, &r.Chunks, &r.Status, &r.Error, &r.Verification, &r.Timestamp, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// normalizeText applies Unicode NFC normalization for consistent cache key
// comparison.
func normalizeText(text string) string {
	return norm.NFC.String(text)
}
