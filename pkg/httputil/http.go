package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "persona_backend_api_duration_sec",
	Help: "Duration of backend API calls",
}, []string{"backend"})

var apiCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "persona_backend_api_count",
	Help: "Number of backend API calls, by HTTP status code",
}, []string{"backend", "status"})

// maxErrorBody bounds how much of a failed response is kept in a StatusError.
const maxErrorBody = 512

type LeveledZap struct {
	inner *zap.SugaredLogger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledZap) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l LeveledZap) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l LeveledZap) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Infow(msg, keysAndValues...)
}

// re-writes HTTP client DEBUG to INFO level (this is where retry is logged)
func (l LeveledZap) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Infow(msg, keysAndValues...)
}

// RobustHTTPClient returns a client that retries connection errors, 5xx
// responses (except 501) and 429s, logging intermediate failures at WARN.
func RobustHTTPClient(log *zap.Logger) *http.Client {
	if log == nil {
		log = zap.NewNop()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledZap{log.Named("http").Sugar()})
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}

// UserAgent is sent on every outbound request.
func UserAgent() string {
	return "persona/" + versioninfo.Short()
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed statusCode=%d: %s", e.Backend, e.StatusCode, e.Body)
}

// IsRetryable reports whether a failed call is worth trying against the next
// provider in a fallback chain.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// Do sends req, records metrics under backend and returns the body of a 2xx
// response.
func Do(client *http.Client, backend string, req *http.Request) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent())
	}

	start := time.Now()
	defer func() {
		apiDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	}()

	res, err := client.Do(req)
	if err != nil {
		apiCount.WithLabelValues(backend, "error").Inc()
		return nil, fmt.Errorf("%s request failed: %w", backend, err)
	}
	defer res.Body.Close()

	apiCount.WithLabelValues(backend, fmt.Sprint(res.StatusCode)).Inc()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s resp body: %w", backend, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Backend: backend, StatusCode: res.StatusCode, Body: string(body)}
	}
	return body, nil
}

// PostJSON marshals in, POSTs it to url and decodes the response into out.
// A nil out discards the response body.
func PostJSON(ctx context.Context, client *http.Client, backend, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", backend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", backend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	body, err := Do(client, backend, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s resp JSON: %w", backend, err)
	}
	return nil
}
