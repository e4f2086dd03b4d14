// Package schedule serves the carbon-aware scheduling endpoint: it fetches
// forecasts for the candidate regions and returns the lowest-intensity slot.
package schedule

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/greenplace/connectors/scheduling"
	"github.com/kilianp07/greenplace/core/events"
	"github.com/kilianp07/greenplace/core/forecast"
	"github.com/kilianp07/greenplace/core/logger"
	"github.com/kilianp07/greenplace/core/model"
	coremon "github.com/kilianp07/greenplace/core/monitoring"
	"github.com/kilianp07/greenplace/core/scheduler"
	inflog "github.com/kilianp07/greenplace/infra/logger"
)

// request mirrors scheduling.Request with pointers so absent fields can take
// the configured defaults.
type request struct {
	VMSpec *struct {
		DurationHours *int `json:"duration_hours"`
	} `json:"vm_spec"`
	Constraints *struct {
		EligibleRegions []string `json:"eligible_regions"`
		DeadlineHours   *int     `json:"deadline_hours"`
	} `json:"constraints"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Handler runs the scheduling pipeline for one request at a time; it holds no
// per-request state.
type Handler struct {
	orch *forecast.Orchestrator
	opt  *scheduler.Optimizer
	cfg  scheduler.Config
	bus  events.Bus
	log  logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithEventBus publishes a ScheduleEvent per request.
func WithEventBus(b events.Bus) Option { return func(h *Handler) { h.bus = b } }

// WithLogger overrides the handler logger.
func WithLogger(l logger.Logger) Option { return func(h *Handler) { h.log = l } }

// NewHandler builds a Handler. orch may be nil, in which case /schedule
// answers 502 and /health reports model_loaded=false.
func NewHandler(orch *forecast.Orchestrator, opt *scheduler.Optimizer, cfg scheduler.Config, opts ...Option) *Handler {
	cfg.SetDefaults()
	h := &Handler{orch: orch, opt: opt, cfg: cfg, log: inflog.New("scheduler")}
	for _, o := range opts {
		o(h)
	}
	return h
}

// NewRouter mounts POST /schedule and GET /health.
func NewRouter(h *Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}
	r.Post("/schedule", h.Schedule)
	r.Get("/health", h.Health)
	return r
}

// Health reports liveness and whether a forecast provider is available.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", ModelLoaded: h.orch != nil})
}

// Schedule implements POST /schedule.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ev := events.ScheduleEvent{Time: start}
	defer func() {
		ev.Latency = time.Since(start)
		if h.bus != nil {
			h.bus.Publish(ev)
		}
	}()

	duration, regions, deadline, err := h.parse(r)
	if err != nil {
		ev.ErrorKind = model.Kind(err)
		h.fail(w, err)
		return
	}
	ev.DurationHours = duration
	ev.Regions = len(regions)
	if h.orch == nil {
		err = &model.ProviderError{Region: "*", Err: errors.New("forecast provider not loaded")}
		ev.ErrorKind = model.Kind(err)
		h.fail(w, err)
		return
	}

	horizon := h.orch.ClampHorizon(min(deadline, h.cfg.MaxHorizonHours))
	ev.HorizonHours = horizon
	h.log.Infow("scheduling request", map[string]any{
		"duration": duration,
		"deadline": deadline,
		"horizon":  horizon,
		"regions":  regions,
	})

	forecasts, err := h.orch.FetchAll(r.Context(), regions, horizon)
	var d model.ScheduleDecision
	if err == nil {
		d, err = h.opt.Optimize(forecasts, duration, horizon)
	}
	if err != nil {
		ev.ErrorKind = model.Kind(err)
		h.fail(w, err)
		return
	}
	ev.Region = d.Region
	ev.AvgIntensity = d.AvgIntensity
	avg := d.AvgIntensity
	h.log.Infow("schedule found", map[string]any{
		"region":     d.Region,
		"start_time": d.StartTimeUTC(),
		"avg":        avg,
	})
	writeJSON(w, http.StatusOK, scheduling.Response{
		Region:                d.Region,
		StartTimeUTC:          d.StartTimeUTC(),
		EstimatedAvgIntensity: &avg,
	})
}

func (h *Handler) parse(r *http.Request) (duration int, regions []string, deadline int, err error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return 0, nil, 0, &model.ValidationError{Reason: "read body: " + err.Error()}
	}
	var req request
	if len(body) == 0 {
		return 0, nil, 0, &model.ValidationError{Reason: "JSON body required"}
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return 0, nil, 0, &model.ValidationError{Reason: "malformed JSON body: " + err.Error()}
	}

	duration = h.cfg.DefaultDurationHours
	if req.VMSpec != nil && req.VMSpec.DurationHours != nil {
		duration = *req.VMSpec.DurationHours
	}
	if duration <= 0 {
		return 0, nil, 0, &model.ValidationError{Field: "vm_spec.duration_hours", Reason: "must be a positive number of hours"}
	}

	regions = h.cfg.DefaultRegions
	deadline = h.cfg.DefaultDeadlineHours
	if c := req.Constraints; c != nil {
		if c.EligibleRegions != nil {
			if len(c.EligibleRegions) == 0 {
				return 0, nil, 0, &model.ValidationError{Field: "constraints.eligible_regions", Reason: "must not be empty"}
			}
			regions = c.EligibleRegions
		}
		if c.DeadlineHours != nil {
			deadline = *c.DeadlineHours
		}
	}
	if deadline <= 0 {
		return 0, nil, 0, &model.ValidationError{Field: "constraints.deadline_hours", Reason: "must be a positive number of hours"}
	}
	return duration, regions, deadline, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch model.Kind(err) {
	case "validation", "policy":
		status = http.StatusBadRequest
	case "provider":
		status = http.StatusBadGateway
	case "no_schedule":
		status = http.StatusUnprocessableEntity
	}
	coremon.Capture("scheduler", err, nil)
	h.log.Warnf("schedule failed (%d): %v", status, err)
	writeJSON(w, status, scheduling.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
