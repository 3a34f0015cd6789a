// Package assembler joins translated chunks back into one graph document and
// commits it to disk atomically.
package assembler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Part is the sanitized output for one chunk.
type Part struct {
	Index int
	Text  string
}

// Assemble orders parts by Index and concatenates them, ending each part
// with exactly one newline. Indexes must cover 0..len(parts)-1 exactly once,
// whatever order the parts arrive in.
func Assemble(parts []Part) (string, error) {
	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var b strings.Builder
	for i, p := range sorted {
		if p.Index != i {
			if i > 0 && p.Index == sorted[i-1].Index {
				return "", fmt.Errorf("duplicate result for chunk %d", p.Index+1)
			}
			return "", fmt.Errorf("missing result for chunk %d", i+1)
		}
		b.WriteString(trimNewline(p.Text))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func trimNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}

// WriteFile replaces path with text. The data goes to a temporary file in
// the same directory which is synced and renamed over path, so readers see
// either the old file or the complete new one. On any failure nothing is
// left behind.
func WriteFile(ctx context.Context, path, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".graphtran-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	_ = syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Not every platform
// supports it, so callers ignore the error.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
