package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerspectiveToxicity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1alpha1/comments:analyze", r.URL.Path)
		assert.Equal(t, "pk", r.URL.Query().Get("key"))

		var req perspectiveReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "you are lovely", req.Comment.Text)
		assert.Contains(t, req.RequestedAttributes, "TOXICITY")

		_, _ = w.Write([]byte(`{"attributeScores":{"TOXICITY":{"summaryScore":{"value":0.12,"type":"PROBABILITY"}}}}`))
	}))
	defer srv.Close()

	c := NewPerspectiveClient(srv.Client(), srv.URL+"/", "pk")
	score, err := c.Toxicity(context.Background(), "you are lovely")
	require.NoError(t, err)
	assert.InDelta(t, 0.12, score, 1e-9)
}

func TestPerspectiveMissingAttribute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"attributeScores":{}}`))
	}))
	defer srv.Close()

	_, err := NewPerspectiveClient(srv.Client(), srv.URL, "pk").Toxicity(context.Background(), "x")
	assert.Error(t, err)
}

func TestZeroShotTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/facebook/bart-large-mnli", r.URL.Path)
		assert.Equal(t, "Bearer hf", r.Header.Get("Authorization"))

		var req zeroShotReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"cooking", "politics"}, req.Parameters.CandidateLabels)

		_, _ = w.Write([]byte(`{"sequence":"x","labels":["cooking","politics"],"scores":[0.91,0.02]}`))
	}))
	defer srv.Close()

	c := NewZeroShotClient(srv.Client(), srv.URL, "hf", "facebook/bart-large-mnli")
	scores, err := c.Topics(context.Background(), "best way to sear a steak", []string{"cooking", "politics"})
	require.NoError(t, err)
	assert.InDelta(t, 0.91, scores["cooking"], 1e-9)
	assert.InDelta(t, 0.02, scores["politics"], 1e-9)
}

func TestZeroShotMismatchedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"labels":["a","b"],"scores":[0.5]}`))
	}))
	defer srv.Close()

	_, err := NewZeroShotClient(srv.Client(), srv.URL, "hf", "m").Topics(context.Background(), "x", []string{"a", "b"})
	assert.Error(t, err)
}
