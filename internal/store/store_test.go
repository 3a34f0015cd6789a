package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/graphtran/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	assert.Error(t, err)
}

func TestStore_New_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.ChunkCache("gemini", "m", "i").Put(context.Background(), "ref", "chunk", "out"))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.ChunkCache("gemini", "m", "i").Get(context.Background(), "ref", "chunk")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "out", got)
}

func TestCacheKey(t *testing.T) {
	base := CacheKey("gemini/m", "ref", "chunk")

	assert.Len(t, base, 64)
	assert.Equal(t, base, CacheKey("gemini/m", "ref", "chunk"))
	assert.NotEqual(t, base, CacheKey("ollama/m", "ref", "chunk"))
	assert.NotEqual(t, base, CacheKey("gemini/m", "ref2", "chunk"))
	assert.NotEqual(t, base, CacheKey("gemini/m", "ref", "chunk "))
	// "é" precomposed and decomposed hash alike
	assert.Equal(t, CacheKey("s", "r", "caf\u00e9"), CacheKey("s", "r", "cafe\u0301"))
}

func TestChunkCache_GetPut(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cache := s.ChunkCache("gemini", "gemini-2.0-flash", "instr")

	_, ok, err := cache.Get(ctx, "ref", "aten.relu")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "ref", "aten.relu", "ttnn.relu"))

	got, ok, err := cache.Get(ctx, "ref", "aten.relu")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ttnn.relu", got)

	other := s.ChunkCache("gemini", "gemini-2.0-flash", "different instruction")
	_, ok, err = other.Get(ctx, "ref", "aten.relu")
	require.NoError(t, err)
	assert.False(t, ok, "scope is part of the key")
}

func TestChunkCache_EmptyOutputIsAHit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cache := s.ChunkCache("gemini", "m", "i")

	require.NoError(t, cache.Put(ctx, "", "x", ""))
	got, ok, err := cache.Get(ctx, "", "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestStore_CacheManagement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cache := s.ChunkCache("gemini", "m", "i")

	require.NoError(t, cache.Put(ctx, "ref", "a", "A"))
	require.NoError(t, cache.Put(ctx, "ref", "b", "B"))
	_, _, err := cache.Get(ctx, "ref", "a")
	require.NoError(t, err)

	entries, err := s.ListCache(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "gemini", entries[0].Backend)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 2, stats.ActiveEntries)
	assert.Equal(t, 1, stats.TotalHits)

	id := CacheKey("gemini/m\ni", "ref", "a")
	require.NoError(t, s.InvalidateCache(ctx, id))
	_, ok, err := cache.Get(ctx, "ref", "a")
	require.NoError(t, err)
	assert.False(t, ok, "invalidated entries are misses")

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InvalidEntries)

	require.NoError(t, s.DeleteCache(ctx, id))
	assert.Error(t, s.DeleteCache(ctx, id))

	n, err := s.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_Runs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, internal.RunRecord{
		InputPath:     "graph.txt",
		OutputPath:    "graph_ttnn.txt",
		ReferencePath: "api_docs.json",
		Backend:       "gemini",
		Chunks:        3,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, internal.RunStatusRunning, run.Status)

	failed, err := s.StartRun(ctx, internal.RunRecord{InputPath: "b.txt", OutputPath: "b_ttnn.txt", ReferencePath: "r", Backend: "ollama"})
	require.NoError(t, err)

	require.NoError(t, s.FinishRun(ctx, run.ID, nil))
	require.NoError(t, s.FinishRun(ctx, failed.ID, errors.New("translation request failed on chunk 2: boom")))
	assert.Error(t, s.FinishRun(ctx, "missing", nil))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]RunEntry{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	assert.Equal(t, internal.RunStatusCompleted, byID[run.ID].Status)
	assert.Equal(t, 3, byID[run.ID].Chunks)
	assert.Equal(t, internal.RunStatusFailed, byID[failed.ID].Status)
	assert.Contains(t, byID[failed.ID].Error, "chunk 2")

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_RunVerificationKeepsStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	passed, err := s.StartRun(ctx, internal.RunRecord{InputPath: "a.txt", OutputPath: "a_ttnn.txt", ReferencePath: "r", Backend: "gemini"})
	require.NoError(t, err)
	broken, err := s.StartRun(ctx, internal.RunRecord{InputPath: "b.txt", OutputPath: "b_ttnn.txt", ReferencePath: "r", Backend: "gemini"})
	require.NoError(t, err)
	unchecked, err := s.StartRun(ctx, internal.RunRecord{InputPath: "c.txt", OutputPath: "c_ttnn.txt", ReferencePath: "r", Backend: "gemini"})
	require.NoError(t, err)

	for _, id := range []string{passed.ID, broken.ID, unchecked.ID} {
		require.NoError(t, s.FinishRun(ctx, id, nil))
	}
	require.NoError(t, s.SetRunVerification(ctx, passed.ID, true))
	require.NoError(t, s.SetRunVerification(ctx, broken.ID, false))
	assert.Error(t, s.SetRunVerification(ctx, "missing", true))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	byID := map[string]RunEntry{}
	for _, r := range runs {
		byID[r.ID] = r
	}

	assert.Equal(t, internal.VerificationPassed, byID[passed.ID].Verification)
	assert.Equal(t, internal.VerificationFailed, byID[broken.ID].Verification)
	assert.Equal(t, internal.VerificationSkipped, byID[unchecked.ID].Verification)
	for _, r := range runs {
		assert.Equal(t, internal.RunStatusCompleted, r.Status, r.ID)
		assert.Empty(t, r.Error, r.ID)
	}
}

func TestStore_New_UpgradesRunsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		reference_path TEXT NOT NULL,
		backend TEXT NOT NULL,
		chunks INTEGER DEFAULT 0,
		status TEXT DEFAULT 'running',
		error TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	run, err := s.StartRun(context.Background(), internal.RunRecord{InputPath: "a", OutputPath: "b", ReferencePath: "r", Backend: "gemini"})
	require.NoError(t, err)
	require.NoError(t, s.SetRunVerification(context.Background(), run.ID, true))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, internal.VerificationPassed, runs[0].Verification)
}
