package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/metrics"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	metrics.RecordRun("success", 0)
	s := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opsuite_runs_total")
}

func TestStatus(t *testing.T) {
	var status any
	s := New(Config{
		Log:    log.NewLogger(log.DiscardHandler()),
		Status: func() any { return status },
	})

	rec := get(t, s.Handler(), "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"pending"}`, rec.Body.String())

	status = map[string]any{"runID": "run-1", "passed": 3}
	rec = get(t, s.Handler(), "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got["runID"])
}

func TestCORS(t *testing.T) {
	s := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s := New(Config{Log: log.NewLogger(log.DiscardHandler())})
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/nope").Code)
}

func TestStartStop(t *testing.T) {
	s := New(Config{Log: log.NewLogger(log.DiscardHandler()), Host: "127.0.0.1"})
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", s.Addr()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	require.NoError(t, s.Stop(context.Background()))
	_, err = http.Get(fmt.Sprintf("http://%s/healthz", s.Addr()))
	assert.Error(t, err)
}
