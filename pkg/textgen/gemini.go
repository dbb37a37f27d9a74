package textgen

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient creates a client. An empty baseURL uses the public endpoint.
func NewGeminiClient(ctx context.Context, apiKey, baseURL string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Generate maps num_return_sequences onto the candidate count. The prompt is
// sent as a raw continuation, and return_full_text prepends it to each result.
func (g *GeminiClient) Generate(ctx context.Context, prompt, model string, params Params) ([]string, error) {
	cfg := &genai.GenerateContentConfig{}
	if n, ok := params.Int("num_return_sequences"); ok && n > 0 {
		cfg.CandidateCount = int32(n)
	}
	if n, ok := params.Int("max_new_tokens"); ok && n > 0 {
		cfg.MaxOutputTokens = int32(n)
	}
	if f, ok := params.Float("temperature"); ok {
		t := float32(f)
		cfg.Temperature = &t
	}
	if f, ok := params.Float("top_p"); ok {
		p := float32(f)
		cfg.TopP = &p
	}
	if f, ok := params.Float("top_k"); ok {
		k := float32(f)
		cfg.TopK = &k
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	fullText, _ := params["return_full_text"].(bool)
	out := make([]string, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		if fullText {
			b.WriteString(prompt)
		}
		for _, p := range c.Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		out = append(out, b.String())
	}
	return out, nil
}
