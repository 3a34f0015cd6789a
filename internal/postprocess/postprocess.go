// Package postprocess removes decorative artifacts from LLM output before a
// translated chunk is reassembled.
//
// Models asked for "only the rewritten chunk" still tend to wrap it in a
// Markdown code fence. The fence lines are dropped wherever they appear;
// every other line is kept byte for byte, blank lines included.
package postprocess

import "strings"

// FenceMarkers are the line contents (after trimming) that Clean removes.
var FenceMarkers = []string{"```python", "```"}

// Clean returns text without its fence-marker lines. Lines are split on
// '\n'; a '\r' before the terminator stays with its line. Clean is
// idempotent.
func Clean(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isFence(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, m := range FenceMarkers {
		if trimmed == m {
			return true
		}
	}
	return false
}
