package textgen

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pario-ai/persona/pkg/httputil"
)

// HFClient calls the Hugging Face inference API.
type HFClient struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

var (
	_ Generator = (*HFClient)(nil)
	_ Ranker    = (*HFClient)(nil)
)

type hfRequest struct {
	Inputs     string    `json:"inputs"`
	Parameters Params    `json:"parameters,omitempty"`
	Options    hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewHFClient creates a client for the Hugging Face inference API at baseURL.
func NewHFClient(client *http.Client, baseURL, apiKey string) *HFClient {
	return &HFClient{
		Client:  client,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
	}
}

func (h *HFClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + h.APIKey}
}

// Generate returns one string per generated sequence, in backend order.
func (h *HFClient) Generate(ctx context.Context, prompt, model string, params Params) ([]string, error) {
	body := hfRequest{
		Inputs:     prompt,
		Parameters: params,
		Options:    hfOptions{WaitForModel: true},
	}
	var resp []hfGeneration
	if err := httputil.PostJSON(ctx, h.Client, "huggingface", h.BaseURL+"/models/"+model, h.headers(), body, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp))
	for _, g := range resp {
		out = append(out, g.GeneratedText)
	}
	return out, nil
}

// Rank scores context and candidate with a DialogRPT-style classifier and
// returns the top label's score.
func (h *HFClient) Rank(ctx context.Context, prior, candidate, model string) (float64, error) {
	body := hfRequest{
		Inputs:  RankInput(prior, candidate),
		Options: hfOptions{WaitForModel: true},
	}
	var resp [][]hfLabel
	if err := httputil.PostJSON(ctx, h.Client, "huggingface", h.BaseURL+"/models/"+model, h.headers(), body, &resp); err != nil {
		return 0, err
	}
	if len(resp) == 0 || len(resp[0]) == 0 {
		return 0, errors.New("ranking response contained no scores")
	}
	return resp[0][0].Score, nil
}
