package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/persona/pkg/cache"
)

func TestAzureCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision/v3.2/describe", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("maxCandidates"))
		assert.Equal(t, "az", r.Header.Get("Ocp-Apim-Subscription-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://i.example/cat.jpg", body["url"])

		_, _ = w.Write([]byte(`{"description":{"captions":[{"text":"a cat sitting on a couch","confidence":0.9}]}}`))
	}))
	defer srv.Close()

	c := NewAzureCaptioner(srv.Client(), srv.URL, "az")
	caption, err := c.Caption(context.Background(), "https://i.example/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, "A picture of a cat sitting on a couch", caption)
}

func TestAzureNoCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"description":{"captions":[]}}`))
	}))
	defer srv.Close()

	caption, err := NewAzureCaptioner(srv.Client(), srv.URL, "az").Caption(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, caption)
}

func TestDiffusionGenerateImage(t *testing.T) {
	img := []byte("\xff\xd8\xff fake jpeg")

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Data, 6)
		assert.Equal(t, "a lighthouse at dusk", body.Data[0])
		assert.Equal(t, float64(45), body.Data[1])

		_ = json.NewEncoder(w).Encode(map[string][]string{
			"data": {"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)},
		})
	})
	mux.HandleFunc("/upscale", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "deep", r.Header.Get("api-key"))
		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		got, _ := io.ReadAll(f)
		assert.Equal(t, img, got)
		_, _ = w.Write([]byte(`{"id":"1","output_url":"https://cdn.example/up.jpg"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewDiffusionGenerator(srv.Client(), srv.URL+"/predict", srv.URL+"/upscale", "deep")
	u, err := g.GenerateImage(context.Background(), "a lighthouse at dusk")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/up.jpg", u)
}

func TestDiffusionBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":["not a data uri"]}`))
	}))
	defer srv.Close()

	g := NewDiffusionGenerator(srv.Client(), srv.URL, srv.URL, "k")
	_, err := g.GenerateImage(context.Background(), "x")
	assert.Error(t, err)
}

type countingCaptioner struct {
	caption string
	calls   int
}

func (c *countingCaptioner) Caption(context.Context, string) (string, error) {
	c.calls++
	return c.caption, nil
}

func TestCachedCaptioner(t *testing.T) {
	ctx := context.Background()
	inner := &countingCaptioner{caption: "A picture of a dog"}
	c := NewCachedCaptioner(inner, cache.NewMemStore(8, time.Hour), nil)

	for range 3 {
		got, err := c.Caption(ctx, "https://i.example/dog.jpg")
		require.NoError(t, err)
		assert.Equal(t, "A picture of a dog", got)
	}
	assert.Equal(t, 1, inner.calls)

	// empty captions are not cached
	inner.caption = ""
	_, _ = c.Caption(ctx, "https://i.example/blank.jpg")
	_, _ = c.Caption(ctx, "https://i.example/blank.jpg")
	assert.Equal(t, 3, inner.calls)
}
