package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/config"
)

func TestParams(t *testing.T) {
	assert := assert.New(t)
	p := Params{"num_return_sequences": 4, "temperature": 0.8, "max_new_tokens": 50.0, "top_k": "x"}

	n, ok := p.Int("num_return_sequences")
	assert.True(ok)
	assert.Equal(4, n)

	n, ok = p.Int("max_new_tokens")
	assert.True(ok)
	assert.Equal(50, n)

	_, ok = p.Int("temperature")
	assert.False(ok)

	f, ok := p.Float("temperature")
	assert.True(ok)
	assert.InDelta(0.8, f, 1e-9)

	_, ok = p.Float("top_k")
	assert.False(ok)

	q := p.With("return_full_text", true)
	assert.Equal(true, q["return_full_text"])
	assert.NotContains(p, "return_full_text")
}

func TestRankInput(t *testing.T) {
	assert.Equal(t, "a<|endoftext|>b", RankInput("a", "b"))
}

func TestHFGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/someone/persona-gpt2", r.URL.Path)
		assert.Equal(t, "Bearer hf", r.Header.Get("Authorization"))

		var req hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "<|soss", req.Inputs)
		assert.Equal(t, float64(2), req.Parameters["num_return_sequences"])
		assert.True(t, req.Options.WaitForModel)

		_, _ = w.Write([]byte(`[{"generated_text":"one"},{"generated_text":"two"}]`))
	}))
	defer srv.Close()

	c := NewHFClient(srv.Client(), srv.URL, "hf")
	out, err := c.Generate(context.Background(), "<|soss", "someone/persona-gpt2", Params{"num_return_sequences": 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, out)
}

func TestHFRank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello<|endoftext|>hi there", req.Inputs)
		_, _ = w.Write([]byte(`[[{"label":"LABEL_0","score":0.73}]]`))
	}))
	defer srv.Close()

	c := NewHFClient(srv.Client(), srv.URL, "hf")
	score, err := c.Rank(context.Background(), "hello", "hi there", "microsoft/DialogRPT-updown")
	require.NoError(t, err)
	assert.InDelta(t, 0.73, score, 1e-9)
}

func TestHFRankEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewHFClient(srv.Client(), srv.URL, "hf").Rank(context.Background(), "a", "b", "m")
	assert.Error(t, err)
}

func TestClientFallsBackAcrossProviders(t *testing.T) {
	var primaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer primary.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "DialogRPT-updown") {
			_, _ = w.Write([]byte(`[[{"label":"LABEL_0","score":0.5}]]`))
			return
		}
		_, _ = w.Write([]byte(`[{"generated_text":"from backup"}]`))
	}))
	defer backup.Close()

	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "primary", URL: primary.URL},
			{Name: "down", URL: down.URL},
			{Name: "backup", URL: backup.URL},
		},
		Router: config.RouterConfig{Routes: []config.RouteConfig{{
			Model: "reply",
			Targets: []config.RouteTarget{
				{Provider: "down", Model: "m1"},
				{Provider: "backup", Model: "m2"},
			},
		}}},
	}
	c, err := New(context.Background(), cfg, http.DefaultClient, zap.NewNop())
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), "prompt", "reply", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from backup"}, out)

	// unrouted models go to the first provider only
	_, err = c.Generate(context.Background(), "prompt", "other", nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), primaryCalls.Load())
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gc, _ := req["generationConfig"].(map[string]any)
		assert.Equal(t, float64(2), gc["candidateCount"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[
			{"content":{"role":"model","parts":[{"text":" first."}]}},
			{"content":{"role":"model","parts":[{"text":" second"},{"text":" part."}]}}
		]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiClient(context.Background(), "g-key", srv.URL)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "Hi", "gemini-test", Params{
		"num_return_sequences": 2,
		"return_full_text":     true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi first.", "Hi second part."}, out)
}

func TestGeminiRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "")
	assert.Error(t, err)
}
