package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/greenplace/core/events"
)

func captureServer(t *testing.T, bodies *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*bodies = append(*bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordPlacement(t *testing.T) {
	var bodies []string
	srv := captureServer(t, &bodies)

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := events.PlacementEvent{
		UID:          "u1",
		Allowed:      true,
		Region:       "us-east-1",
		StartTime:    now.Add(2 * time.Hour),
		AvgIntensity: 120.1234,
		Eligible:     []string{"us-east-1"},
		ErrorKind:    "none",
		Latency:      15 * time.Millisecond,
		Time:         now,
	}
	if err := sink.RecordPlacement(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("placement_decision").
		AddTag("allowed", "true").
		AddTag("error_kind", "none").
		AddTag("component", "webhook").
		AddTag("region", "us-east-1").
		AddField("uid", "u1").
		AddField("eligible_regions", 1).
		AddField("latency_ms", 15.0).
		AddField("avg_intensity", 120.123).
		AddField("start_time", now.Add(2*time.Hour).UTC().Format(time.RFC3339)).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(bodies) != 1 || bodies[0] != expected {
		t.Errorf("unexpected body: %#v", bodies)
	}
}

func TestPlacementPointDenial(t *testing.T) {
	p := PlacementPoint(events.PlacementEvent{UID: "u2", ErrorKind: "policy", Reason: "policy: no eligible regions", Time: time.Unix(0, 0)})
	line := write.PointToLineProtocol(p, time.Nanosecond)
	if !strings.Contains(line, `reason="policy: no eligible regions"`) {
		t.Fatalf("reason missing: %s", line)
	}
	if strings.Contains(line, "region=") || strings.Contains(line, "avg_intensity") {
		t.Fatalf("denial carries decision fields: %s", line)
	}
}

func TestInfluxSink_RecordScheduleAndFetch(t *testing.T) {
	var bodies []string
	srv := captureServer(t, &bodies)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	if err := sink.RecordSchedule(events.ScheduleEvent{Region: "eu-west-1", DurationHours: 4, HorizonHours: 24, Regions: 3, AvgIntensity: 99, ErrorKind: "none", Time: now}); err != nil {
		t.Fatalf("record schedule: %v", err)
	}
	if err := sink.RecordForecastFetch(events.ForecastFetchEvent{Region: "eu-west-1", Latency: time.Millisecond, Err: errors.New("x")}); err != nil {
		t.Fatalf("record fetch: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 writes got %d", len(bodies))
	}
	for _, want := range []string{"schedule_request,", "region=eu-west-1", "error_kind=none", "duration_hours=4i"} {
		if !strings.Contains(bodies[0], want) {
			t.Errorf("schedule line %s missing %s", bodies[0], want)
		}
	}
	for _, want := range []string{"forecast_fetch,", "ok=false", "latency_ms=1"} {
		if !strings.Contains(bodies[1], want) {
			t.Errorf("fetch line %s missing %s", bodies[1], want)
		}
	}
}

func TestOpenInfluxSinkUnhealthy(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	conf := InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "placements", HealthTimeoutSeconds: 1}
	sink, err := OpenInfluxSink(conf)
	if err != nil {
		t.Fatalf("optional sink should fall back: %v", err)
	}
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}

	conf.Required = true
	if _, err := OpenInfluxSink(conf); err == nil || !strings.Contains(err.Error(), srv.URL) {
		t.Fatalf("required sink should fail naming the url, got %v", err)
	}
}

func TestInfluxConfigValidate(t *testing.T) {
	if err := (InfluxConfig{Bucket: "b"}).Validate(); err == nil {
		t.Fatalf("missing url accepted")
	}
	if err := (InfluxConfig{URL: "http://influx:8086"}).Validate(); err == nil {
		t.Fatalf("missing bucket accepted")
	}
	if _, err := OpenInfluxSink(InfluxConfig{}); err == nil {
		t.Fatalf("open with empty config should fail")
	}
}
