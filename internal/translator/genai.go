package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GenAITranslator goes through the official Gemini SDK. The request carries
// the same three parts as the REST backend in one user content.
type GenAITranslator struct {
	client *genai.Client
	model  string
	prompt Prompt
}

func NewGenAITranslator(ctx context.Context, cfg ServiceConfig, prompt Prompt) (*GenAITranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAITranslator{client: client, model: model, prompt: prompt}, nil
}

func (s *GenAITranslator) Name() string {
	return "genai"
}

func (s *GenAITranslator) Model() string {
	return s.model
}

func (s *GenAITranslator) Translate(ctx context.Context, req ChunkRequest) (*ChunkResult, error) {
	result := &ChunkResult{Index: req.Index, Backend: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	var parts []*genai.Part
	for _, p := range s.prompt.Parts(req.Text, req.Reference) {
		parts = append(parts, genai.NewPartFromText(p))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return result, fromSDKError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	cp := resp.Candidates[0].Content.Parts
	if len(cp) == 0 || cp[0] == nil {
		return result, fmt.Errorf("%w: first candidate has no parts", ErrMalformedResponse)
	}

	if cp[0].Text == "" && hasNonTextPayload(cp[0]) {
		return result, ErrMissingText
	}

	result.RawText = cp[0].Text
	result.Metadata = map[string]string{"model": s.model}
	if resp.ModelVersion != "" {
		result.Metadata["model_version"] = resp.ModelVersion
	}
	return result, nil
}

// hasNonTextPayload reports whether p carries inline data, a file reference,
// a function call or code execution content instead of text.
func hasNonTextPayload(p *genai.Part) bool {
	return p.InlineData != nil || p.FileData != nil ||
		p.FunctionCall != nil || p.FunctionResponse != nil ||
		p.ExecutableCode != nil || p.CodeExecutionResult != nil
}

// fromSDKError maps SDK API errors onto StatusError so the retry policy
// treats both Gemini backends alike.
func fromSDKError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Code: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return fmt.Errorf("request failed: %w", err)
}
