// Package chunker splits a graph document into fixed-size, order-preserving
// line windows. Line terminators are kept so that joining the chunks back
// together reproduces the document byte for byte.
package chunker

import (
	"fmt"
	"strings"
)

const (
	// DefaultLines is the default number of lines per chunk.
	DefaultLines = 50
)

// Chunk is a contiguous slice of a document, addressed by its position.
type Chunk struct {
	Index int
	Text  string
}

// Split cuts text into windows of at most n lines. A line ends after '\n';
// a trailing line without terminator counts as a line of its own. The last
// chunk may be shorter than n. An empty text yields no chunks.
//
// Boundaries are purely line-count based: a multi-line node may straddle two
// chunks.
func Split(text string, n int) ([]Chunk, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", n)
	}
	lines := Lines(text)
	if len(lines) == 0 {
		return nil, nil
	}

	chunks := make([]Chunk, 0, (len(lines)+n-1)/n)
	for start := 0; start < len(lines); start += n {
		end := start + n
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  strings.Join(lines[start:end], ""),
		})
	}
	return chunks, nil
}

// Lines splits text after every '\n', keeping the terminators. A final
// fragment without a terminator is returned as the last line.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Join concatenates chunk texts in slice order. It is the inverse of Split.
func Join(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	return sb.String()
}
