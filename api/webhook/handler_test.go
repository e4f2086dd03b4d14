package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	admissionv1 "k8s.io/api/admission/v1"

	"github.com/kilianp07/greenplace/core/audit"
	"github.com/kilianp07/greenplace/core/events"
	"github.com/kilianp07/greenplace/core/model"
	"github.com/kilianp07/greenplace/core/policy"
	"github.com/kilianp07/greenplace/infra/logger"
)

type fakeScheduler struct {
	mu       sync.Mutex
	calls    int
	req      model.WorkloadRequest
	cons     model.Constraints
	decision model.ScheduleDecision
	err      error
}

func (f *fakeScheduler) RequestSchedule(_ context.Context, req model.WorkloadRequest, c model.Constraints) (model.ScheduleDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.req = req
	f.cons = c
	return f.decision, f.err
}

type memStore struct {
	mu   sync.Mutex
	recs []audit.Record
}

func (m *memStore) Append(_ context.Context, r audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(context.Context, audit.Query) ([]audit.Record, error) { return m.recs, nil }
func (m *memStore) Close() error                                               { return nil }

var slot = time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)

func reviewBody(uid, object string) []byte {
	return []byte(fmt.Sprintf(`{"apiVersion":"admission.k8s.io/v1","kind":"AdmissionReview","request":{"uid":%q,"object":%s}}`, uid, object))
}

func newTestHandler(s Scheduler, opts ...Option) *Handler {
	f := policy.NewFilter(policy.DefaultConfig(), logger.NopLogger{})
	opts = append([]Option{WithLogger(logger.NopLogger{})}, opts...)
	return NewHandler(f, s, 4, 48, opts...)
}

func post(t *testing.T, h http.Handler, body []byte) admissionv1.AdmissionReview {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mutate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	var review admissionv1.AdmissionReview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &review))
	require.Equal(t, "admission.k8s.io/v1", review.APIVersion)
	require.Equal(t, "AdmissionReview", review.Kind)
	require.NotNil(t, review.Response)
	return review
}

func TestMutatePlacesGPUWorkload(t *testing.T) {
	sched := &fakeScheduler{decision: model.ScheduleDecision{Region: "us-east-1", StartTime: slot, AvgIntensity: 101.5}}
	store := &memStore{}
	bus := events.NewBus()
	sub := bus.Subscribe()
	h := newTestHandler(sched, WithAuditStore(store), WithEventBus(bus))

	review := post(t, h, reviewBody("uid-a100", `{"spec":{"duration_hours":4,"gpu":{"type":"nvidia-a100"}}}`))

	assert.True(t, review.Response.Allowed)
	assert.Equal(t, "uid-a100", string(review.Response.UID))
	require.NotNil(t, review.Response.PatchType)
	assert.Equal(t, admissionv1.PatchTypeJSONPatch, *review.Response.PatchType)
	var patch []model.PatchOperation
	require.NoError(t, json.Unmarshal(review.Response.Patch, &patch))
	want := []model.PatchOperation{
		{Op: "add", Path: "/spec/schedulingLocation", Value: "us-east-1"},
		{Op: "add", Path: "/spec/schedulingTime", Value: "2025-06-01T15:00:00Z"},
	}
	if diff := cmp.Diff(want, patch); diff != "" {
		t.Fatalf("patch mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"us-east-1"}, sched.cons.EligibleRegions)
	assert.Equal(t, 48, sched.cons.DeadlineHours)
	assert.Equal(t, 4, sched.req.DurationHours)

	require.Len(t, store.recs, 1)
	rec := store.recs[0]
	assert.True(t, rec.Allowed)
	assert.Equal(t, "us-east-1", rec.Region)
	assert.Equal(t, []string{"base", "gpu"}, []string{rec.Stages[0].Name, rec.Stages[1].Name})

	select {
	case ev := <-sub:
		pe, ok := ev.(events.PlacementEvent)
		require.True(t, ok)
		assert.Equal(t, "uid-a100", pe.UID)
		assert.True(t, pe.Allowed)
		assert.Equal(t, []string{"us-east-1"}, pe.Eligible)
	case <-time.After(time.Second):
		t.Fatal("no placement event")
	}
}

func TestMutateDefaultsDuration(t *testing.T) {
	sched := &fakeScheduler{decision: model.ScheduleDecision{Region: "eu-west-1", StartTime: slot}}
	h := newTestHandler(sched)
	review := post(t, h, reviewBody("u1", `{"metadata":{"labels":{"data_residency":"gdpr"}},"spec":{}}`))
	assert.True(t, review.Response.Allowed)
	assert.Equal(t, 4, sched.req.DurationHours)
	assert.Equal(t, []string{"eu-central-1", "eu-west-1", "eu-west-2"}, sched.cons.EligibleRegions)
}

func TestMutateDenials(t *testing.T) {
	cases := []struct {
		name       string
		body       []byte
		schedErr   error
		wantUID    string
		wantReason string
		wantCalls  int
		wantKind   string
	}{
		{
			name:       "unsupported gpu",
			body:       reviewBody("u-gpu", `{"spec":{"gpu":{"type":"tpu-v5"}}}`),
			wantUID:    "u-gpu",
			wantReason: policy.ReasonUnsupportedGPU,
			wantKind:   "policy",
		},
		{
			name:       "empty after residency and latency",
			body:       reviewBody("u-empty", `{"metadata":{"labels":{"data_residency":"usa"}},"spec":{"latency":{"from_region":"ap-southeast-1"}}}`),
			wantUID:    "u-empty",
			wantReason: policy.ReasonNoRegions,
			wantKind:   "policy",
		},
		{
			name:       "invalid duration",
			body:       reviewBody("u-dur", `{"spec":{"duration_hours":0}}`),
			wantUID:    "u-dur",
			wantReason: "duration_hours",
			wantKind:   "validation",
		},
		{
			name:       "malformed body",
			body:       []byte(`{not json`),
			wantReason: "malformed admission review",
			wantKind:   "validation",
		},
		{
			name:       "missing request",
			body:       []byte(`{"apiVersion":"admission.k8s.io/v1","kind":"AdmissionReview"}`),
			wantReason: "request is missing",
			wantKind:   "validation",
		},
		{
			name:       "scheduler failure",
			body:       reviewBody("u-rpc", `{"spec":{"duration_hours":2}}`),
			schedErr:   &model.RPCError{Status: 502, Err: errors.New("forecast for eu-west-1: timeout")},
			wantUID:    "u-rpc",
			wantReason: "forecast for eu-west-1: timeout",
			wantCalls:  1,
			wantKind:   "rpc",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched := &fakeScheduler{err: tc.schedErr}
			store := &memStore{}
			h := newTestHandler(sched, WithAuditStore(store))
			review := post(t, h, tc.body)

			assert.False(t, review.Response.Allowed)
			assert.Equal(t, tc.wantUID, string(review.Response.UID))
			assert.Nil(t, review.Response.Patch)
			assert.Nil(t, review.Response.PatchType)
			require.NotNil(t, review.Response.Result)
			assert.True(t, strings.Contains(review.Response.Result.Message, tc.wantReason), review.Response.Result.Message)
			assert.Equal(t, tc.wantCalls, sched.calls)

			require.Len(t, store.recs, 1)
			assert.Equal(t, tc.wantKind, store.recs[0].ErrorKind)
			assert.False(t, store.recs[0].Allowed)
		})
	}
}

func TestRouter(t *testing.T) {
	sched := &fakeScheduler{decision: model.ScheduleDecision{Region: "us-east-1", StartTime: slot}}
	logs := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("[]")) })
	srv := httptest.NewServer(NewRouter(newTestHandler(sched), 10*time.Second, logs))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/mutate")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/audit/logs")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/mutate", "application/json", bytes.NewReader(reviewBody("u", `{"spec":{}}`)))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var review admissionv1.AdmissionReview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&review))
	assert.True(t, review.Response.Allowed)
}
