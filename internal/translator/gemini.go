package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

type gmPart struct {
	Text string `json:"text"`
}

type gmContent struct {
	Parts []gmPart `json:"parts"`
}

type gmReq struct {
	Contents []gmContent `json:"contents"`
}

// gmResp keeps Text as a pointer so an absent field is distinguishable from
// an empty rewrite.
type gmResp struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiTranslator calls the generateContent REST endpoint directly.
type GeminiTranslator struct {
	apiKey   string
	model    string
	endpoint string
	prompt   Prompt
	client   *http.Client
}

func NewGeminiTranslator(cfg ServiceConfig, prompt Prompt) *GeminiTranslator {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiTranslator{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(base, "/"), url.PathEscape(model)),
		prompt:   prompt,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *GeminiTranslator) Name() string {
	return "gemini"
}

func (s *GeminiTranslator) Model() string {
	return s.model
}

func (s *GeminiTranslator) Translate(ctx context.Context, req ChunkRequest) (*ChunkResult, error) {
	result := &ChunkResult{Index: req.Index, Backend: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	body := gmReq{Contents: []gmContent{{}}}
	for _, p := range s.prompt.Parts(req.Text, req.Reference) {
		body.Contents[0].Parts = append(body.Contents[0].Parts, gmPart{Text: p})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-goog-api-key", s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return result, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var gr gmResp
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	text, err := firstText(gr)
	if err != nil {
		return result, err
	}

	result.RawText = text
	result.Metadata = map[string]string{"model": s.model}
	return result, nil
}

func firstText(gr gmResp) (string, error) {
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	parts := gr.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: first candidate has no parts", ErrMalformedResponse)
	}
	if parts[0].Text == nil {
		return "", ErrMissingText
	}
	return *parts[0].Text, nil
}
