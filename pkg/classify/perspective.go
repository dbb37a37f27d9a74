package classify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/pario-ai/persona/pkg/httputil"
)

// schema: https://developers.perspectiveapi.com/s/about-the-api-methods
type perspectiveReq struct {
	Comment             perspectiveText     `json:"comment"`
	Languages           []string            `json:"languages"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
}

type perspectiveText struct {
	Text string `json:"text"`
}

type perspectiveResp struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// PerspectiveClient scores TOXICITY with the Perspective comment analyzer.
type PerspectiveClient struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

var _ Classifier = (*PerspectiveClient)(nil)

func NewPerspectiveClient(client *http.Client, baseURL, apiKey string) *PerspectiveClient {
	return &PerspectiveClient{
		Client:  client,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
	}
}

func (p *PerspectiveClient) Toxicity(ctx context.Context, text string) (float64, error) {
	body := perspectiveReq{
		Comment:             perspectiveText{Text: text},
		Languages:           []string{"en"},
		RequestedAttributes: map[string]struct{}{"TOXICITY": {}},
	}
	u := p.BaseURL + "/v1alpha1/comments:analyze?key=" + url.QueryEscape(p.APIKey)

	var resp perspectiveResp
	if err := httputil.PostJSON(ctx, p.Client, "perspective", u, nil, body, &resp); err != nil {
		return 0, err
	}
	attr, ok := resp.AttributeScores["TOXICITY"]
	if !ok {
		return 0, errors.New("perspective response missing TOXICITY score")
	}
	return attr.SummaryScore.Value, nil
}
