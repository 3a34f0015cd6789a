package translator

import (
	"context"
	"time"
)

// ServiceConfig carries the per-backend settings resolved from flags, the
// config file and the environment.
type ServiceConfig struct {
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	Model   string        `mapstructure:"model" json:"model"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// ChunkRequest is one chunk of a graph document plus the reference text
// describing the target vocabulary.
type ChunkRequest struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

// ChunkResult is the raw, unsanitized text a backend returned for a chunk.
type ChunkResult struct {
	Index    int               `json:"index"`
	Backend  string            `json:"backend"`
	RawText  string            `json:"raw_text"`
	Latency  time.Duration     `json:"latency"`
	Metadata map[string]string `json:"metadata"`
}

// ChunkTranslator rewrites one chunk per call. Calls are stateless: no
// conversation is carried from one chunk to the next and chunks are never
// batched into a single request.
type ChunkTranslator interface {
	Name() string
	Translate(ctx context.Context, req ChunkRequest) (*ChunkResult, error)
}
