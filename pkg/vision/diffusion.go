package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pario-ai/persona/pkg/httputil"
)

// Latent diffusion sampling settings: steps, width, height, images, diversity.
var diffusionSettings = []any{45, "256", "256", 1, 1}

type diffusionResp struct {
	Data []string `json:"data"`
}

type upscaleResp struct {
	OutputURL string `json:"output_url"`
}

// DiffusionGenerator renders images with a hosted latent diffusion model and
// upscales the result, which also gives it a public URL.
type DiffusionGenerator struct {
	Client     *http.Client
	ImageURL   string
	UpscaleURL string
	UpscaleKey string
}

var _ ImageGenerator = (*DiffusionGenerator)(nil)

func NewDiffusionGenerator(client *http.Client, imageURL, upscaleURL, upscaleKey string) *DiffusionGenerator {
	return &DiffusionGenerator{
		Client:     client,
		ImageURL:   imageURL,
		UpscaleURL: upscaleURL,
		UpscaleKey: upscaleKey,
	}
}

func (d *DiffusionGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	img, err := d.render(ctx, prompt)
	if err != nil {
		return "", err
	}
	return d.upscale(ctx, img)
}

func (d *DiffusionGenerator) render(ctx context.Context, prompt string) ([]byte, error) {
	body := map[string][]any{"data": append([]any{prompt}, diffusionSettings...)}

	var resp diffusionResp
	if err := httputil.PostJSON(ctx, d.Client, "diffusion", d.ImageURL, nil, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("diffusion response contained no image")
	}
	// data URI: "data:image/jpeg;base64,<payload>"
	_, payload, ok := strings.Cut(resp.Data[0], ",")
	if !ok {
		return nil, errors.New("diffusion response is not a data URI")
	}
	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode diffusion image: %w", err)
	}
	return img, nil
}

func (d *DiffusionGenerator) upscale(ctx context.Context, img []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "image.jpg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.UpscaleURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", d.UpscaleKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	respBytes, err := httputil.Do(d.Client, "upscale", req)
	if err != nil {
		return "", err
	}
	var resp upscaleResp
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("failed to parse upscale resp JSON: %w", err)
	}
	if resp.OutputURL == "" {
		return "", errors.New("upscale response has no output_url")
	}
	return resp.OutputURL, nil
}
