package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/persona/pkg/models"
)

type staticReporter models.AgentStatus

func (r staticReporter) Status() models.AgentStatus { return models.AgentStatus(r) }

type fakeDecisions struct {
	got  models.AuditQueryOpts
	err  error
	list []models.Decision
}

func (f *fakeDecisions) Query(_ context.Context, opts models.AuditQueryOpts) ([]models.Decision, error) {
	f.got = opts
	return f.list, f.err
}

func sample() staticReporter {
	return staticReporter{
		Username:  "persona",
		Subreddit: "test",
		Counters:  models.CounterSnapshot{PostsSeen: 4, CommentsMade: 1},
		Budget:    models.BudgetStatus{Day: "2026-10-18", Spent: 50, Cap: 100, Remaining: 50, Percent: 50},
	}
}

func TestStatus(t *testing.T) {
	srv := New(":0", sample(), nil, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.AgentStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, models.AgentStatus(sample()), got)
}

func TestDecisions(t *testing.T) {
	fd := &fakeDecisions{list: []models.Decision{{ID: "1", Action: models.ActionReply, Outcome: models.OutcomePosted}}}
	srv := New(":0", sample(), fd, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions?outcome=posted&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OutcomePosted, fd.got.Outcome)
	assert.Equal(t, 5, fd.got.Limit)

	var got []models.Decision
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fd.err = errors.New("db gone")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDecisionsDisabled(t *testing.T) {
	srv := New(":0", sample(), nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	srv := New(":0", sample(), nil, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListenAndServeShutsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := New(addr, sample(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.TrimSpace(string(body)) == "ok"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
