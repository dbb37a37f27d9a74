package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pario-ai/persona/pkg/httputil"
)

type zeroShotReq struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResp struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// ZeroShotClient classifies topics with a Hugging Face zero-shot model.
type ZeroShotClient struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
	Model   string
}

var _ TopicClassifier = (*ZeroShotClient)(nil)

func NewZeroShotClient(client *http.Client, baseURL, apiKey, model string) *ZeroShotClient {
	return &ZeroShotClient{
		Client:  client,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
	}
}

// Topics scores each label independently, so scores do not sum to one.
func (z *ZeroShotClient) Topics(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	body := zeroShotReq{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels, MultiLabel: true},
	}
	headers := map[string]string{"Authorization": "Bearer " + z.APIKey}

	var resp zeroShotResp
	if err := httputil.PostJSON(ctx, z.Client, "zeroshot", z.BaseURL+"/models/"+z.Model, headers, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Labels) != len(resp.Scores) {
		return nil, fmt.Errorf("zero-shot response has %d labels and %d scores", len(resp.Labels), len(resp.Scores))
	}
	scores := make(map[string]float64, len(resp.Labels))
	for i, l := range resp.Labels {
		scores[l] = resp.Scores[i]
	}
	return scores, nil
}
