package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "qwen2.5-coder:7b"
)

// OllamaTranslator sends the prompt to a local Ollama server. It needs no
// credential.
type OllamaTranslator struct {
	baseURL string
	model   string
	prompt  Prompt
	client  *http.Client
}

func NewOllamaTranslator(cfg ServiceConfig, prompt Prompt) *OllamaTranslator {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaTranslator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		prompt:  prompt,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *OllamaTranslator) Name() string {
	return "ollama"
}

func (s *OllamaTranslator) Model() string {
	return s.model
}

func (s *OllamaTranslator) Translate(ctx context.Context, req ChunkRequest) (*ChunkResult, error) {
	result := &ChunkResult{Index: req.Index, Backend: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	ollamaReq := map[string]interface{}{
		"model":  s.model,
		"prompt": strings.Join(s.prompt.Parts(req.Text, req.Reference), "\n"),
		"stream": false,
	}

	jsonData, err := json.Marshal(ollamaReq)
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return result, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var ollamaResp struct {
		Response *string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if ollamaResp.Response == nil {
		return result, ErrMissingText
	}

	result.RawText = *ollamaResp.Response
	result.Metadata = map[string]string{"model": s.model}
	return result, nil
}

// IsAvailable checks that the server answers on /api/tags.
func (s *OllamaTranslator) IsAvailable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not available: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}
