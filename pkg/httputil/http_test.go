package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("User-Agent"), "persona/")

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := PostJSON(context.Background(), srv.Client(), "test", srv.URL,
		map[string]string{"Authorization": "Bearer k"}, map[string]string{"msg": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.Client(), "test", srv.URL, nil, map[string]string{}, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Contains(t, se.Body, "model loading")
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert := assert.New(t)
	assert.False(IsRetryable(nil))
	assert.True(IsRetryable(errors.New("connection reset")))
	assert.True(IsRetryable(&StatusError{StatusCode: 500}))
	assert.True(IsRetryable(&StatusError{StatusCode: 429}))
	assert.False(IsRetryable(&StatusError{StatusCode: 400}))
	assert.False(IsRetryable(&StatusError{StatusCode: 401}))
}

func TestRobustHTTPClient(t *testing.T) {
	c := RobustHTTPClient(nil)
	require.NotNil(t, c)
	assert.NotZero(t, c.Timeout)
}
