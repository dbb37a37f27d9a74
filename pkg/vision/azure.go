package vision

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pario-ai/persona/pkg/httputil"
)

// schema: https://westus.dev.cognitive.microsoft.com/docs/services/computer-vision-v3-2/operations/56f91f2e778daf14a499f21f
type azureDescribeResp struct {
	Description struct {
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
}

// AzureCaptioner captions images with Azure Computer Vision "describe".
type AzureCaptioner struct {
	Client   *http.Client
	Endpoint string
	Key      string
}

var _ Captioner = (*AzureCaptioner)(nil)

func NewAzureCaptioner(client *http.Client, endpoint, key string) *AzureCaptioner {
	return &AzureCaptioner{
		Client:   client,
		Endpoint: strings.TrimRight(endpoint, "/"),
		Key:      key,
	}
}

// Caption returns "A picture of <caption>" for the best caption, or "" when
// the service offers none.
func (a *AzureCaptioner) Caption(ctx context.Context, imageURL string) (string, error) {
	params := url.Values{}
	params.Set("maxCandidates", "1")
	params.Set("language", "en")
	params.Set("model-version", "latest")
	u := a.Endpoint + "/vision/v3.2/describe?" + params.Encode()

	headers := map[string]string{"Ocp-Apim-Subscription-Key": a.Key}
	var resp azureDescribeResp
	if err := httputil.PostJSON(ctx, a.Client, "azure-vision", u, headers, map[string]string{"url": imageURL}, &resp); err != nil {
		return "", err
	}
	if len(resp.Description.Captions) == 0 || resp.Description.Captions[0].Text == "" {
		return "", nil
	}
	return "A picture of " + resp.Description.Captions[0].Text, nil
}
