package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	admissionv1 "k8s.io/api/admission/v1"

	"github.com/kilianp07/greenplace/config"
	"github.com/kilianp07/greenplace/core/audit"
	"github.com/kilianp07/greenplace/core/factory"
	"github.com/kilianp07/greenplace/core/model"
	"github.com/kilianp07/greenplace/core/prediction"
)

func flat(v float64, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// testConfig points the webhook at schedulerURL and serves fixed forecasts.
func testConfig(t *testing.T, schedulerURL string) *config.Config {
	t.Helper()
	t.Setenv("GP_SCHEDULER_CLIENT__URL", schedulerURL)
	t.Setenv("GP_AUDIT__BACKEND", "jsonl")
	t.Setenv("GP_AUDIT__PATH", filepath.Join(t.TempDir(), "audit.jsonl"))
	cfg, err := config.Load("")
	require.NoError(t, err)

	useast := flat(300, 48)
	for i := 20; i < 24; i++ {
		useast[i] = 40.0
	}
	cfg.Provider = factory.ModuleConfig{Type: "static", Conf: map[string]any{
		"max_horizon_hours": 48,
		"series": map[string]any{
			"us-east-1":    useast,
			"us-west-2":    flat(100, 48),
			"eu-central-1": flat(90, 48),
			"eu-west-1":    flat(200, 48),
		},
	}}
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	return cfg
}

func TestWebhookToSchedulerEndToEnd(t *testing.T) {
	// the scheduler URL is only known once the server exists
	var schedHandler http.Handler
	schedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		schedHandler.ServeHTTP(w, r)
	}))
	defer schedSrv.Close()

	cfg := testConfig(t, schedSrv.URL+"/schedule")
	sched, err := NewScheduler(cfg)
	require.NoError(t, err)
	defer func() { _ = sched.Close() }()
	schedHandler = sched.Handler()

	hook, err := NewWebhook(cfg)
	require.NoError(t, err)
	defer func() { _ = hook.Close() }()
	hookSrv := httptest.NewServer(hook.Handler())
	defer hookSrv.Close()

	body := []byte(`{"apiVersion":"admission.k8s.io/v1","kind":"AdmissionReview","request":{"uid":"e2e-1","object":{"spec":{"duration_hours":4,"gpu":{"type":"nvidia-a100"}}}}}`)
	start := time.Now().UTC()
	resp, err := http.Post(hookSrv.URL+"/mutate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var review admissionv1.AdmissionReview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&review))
	require.NotNil(t, review.Response)
	require.True(t, review.Response.Allowed, "denied: %+v", review.Response.Result)
	assert.Equal(t, "e2e-1", string(review.Response.UID))

	var patch []model.PatchOperation
	require.NoError(t, json.Unmarshal(review.Response.Patch, &patch))
	require.Len(t, patch, 2)
	assert.Equal(t, "us-east-1", patch[0].Value)
	slot, err := time.Parse(time.RFC3339, patch[1].Value.(string))
	require.NoError(t, err)
	want := start.Add(20 * time.Hour)
	assert.WithinDuration(t, want, slot, 2*time.Minute)

	logs, err := http.Get(hookSrv.URL + "/api/audit/logs?allowed=true")
	require.NoError(t, err)
	defer func() { _ = logs.Body.Close() }()
	var recs []audit.Record
	require.NoError(t, json.NewDecoder(logs.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "us-east-1", recs[0].Region)
}

func TestSchedulerDownDeniesAdmission(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t, "http://"+addr+"/schedule")
	hook, err := NewWebhook(cfg)
	require.NoError(t, err)
	defer func() { _ = hook.Close() }()

	rr := httptest.NewRecorder()
	body := []byte(`{"request":{"uid":"down","object":{"spec":{}}}}`)
	hook.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mutate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	var review admissionv1.AdmissionReview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &review))
	assert.False(t, review.Response.Allowed)
	assert.Equal(t, "down", string(review.Response.UID))
	require.NotNil(t, review.Response.Result)
	assert.Contains(t, review.Response.Result.Message, "scheduling rpc")
}

func TestSchedulerReportsMissingProvider(t *testing.T) {
	cfg := testConfig(t, "http://localhost:5001/schedule")
	cfg.Provider = factory.ModuleConfig{Type: "nope"}
	sched, err := NewScheduler(cfg)
	require.NoError(t, err)
	defer func() { _ = sched.Close() }()
	rr := httptest.NewRecorder()
	sched.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy","model_loaded":false}`, rr.Body.String())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t, "http://localhost:5001/schedule")
	cfg.Scheduler.Addr = "127.0.0.1:0"
	sched, err := NewScheduler(cfg)
	require.NoError(t, err)
	defer func() { _ = sched.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("service did not stop")
	}
}

// trackedSource is a history source that records being closed.
type trackedSource struct{ closed chan struct{} }

func (s *trackedSource) History(_ context.Context, _ string, hours int) ([]prediction.Sample, error) {
	start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(hours) * time.Hour)
	out := make([]prediction.Sample, hours)
	for i := range out {
		out[i] = prediction.Sample{Time: start.Add(time.Duration(i) * time.Hour), Value: 100}
	}
	return out, nil
}

func (s *trackedSource) Close() error {
	close(s.closed)
	return nil
}

func TestSchedulerCloseReleasesHistorySource(t *testing.T) {
	src := &trackedSource{closed: make(chan struct{})}
	require.NoError(t, prediction.RegisterHistorySource("tracked", func(map[string]any) (prediction.HistorySource, error) {
		return src, nil
	}))
	cfg := testConfig(t, "http://localhost:5001/schedule")
	cfg.Provider = factory.ModuleConfig{Type: "seasonal", Conf: map[string]any{
		"context_hours": 48,
		"source":        map[string]any{"type": "tracked"},
	}}
	sched, err := NewScheduler(cfg)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	sched.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy","model_loaded":true}`, rr.Body.String())

	require.NoError(t, sched.Close())
	select {
	case <-src.closed:
	default:
		t.Fatal("history source left open")
	}
}
