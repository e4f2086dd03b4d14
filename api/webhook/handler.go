// Package webhook serves the mutating admission endpoint that places
// intercepted workloads in a region and time slot.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	admissionv1 "k8s.io/api/admission/v1"

	"github.com/kilianp07/greenplace/core/admission"
	"github.com/kilianp07/greenplace/core/audit"
	"github.com/kilianp07/greenplace/core/events"
	"github.com/kilianp07/greenplace/core/logger"
	"github.com/kilianp07/greenplace/core/model"
	coremon "github.com/kilianp07/greenplace/core/monitoring"
	"github.com/kilianp07/greenplace/core/policy"
	inflog "github.com/kilianp07/greenplace/infra/logger"
)

// maxBodyBytes bounds the size of an AdmissionReview body.
const maxBodyBytes = 3 << 20

// Scheduler asks the scheduling service for a slot.
type Scheduler interface {
	RequestSchedule(ctx context.Context, req model.WorkloadRequest, c model.Constraints) (model.ScheduleDecision, error)
}

// Handler answers AdmissionReview requests. Every request gets HTTP 200 and a
// well-formed envelope; failures become denials.
type Handler struct {
	filter          *policy.Filter
	scheduler       Scheduler
	enc             admission.Encoder
	defaultDuration int
	deadlineHours   int

	bus   events.Bus
	store audit.Store
	log   logger.Logger
	now   func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithEventBus publishes a PlacementEvent per review.
func WithEventBus(b events.Bus) Option { return func(h *Handler) { h.bus = b } }

// WithAuditStore appends an audit record per review.
func WithAuditStore(s audit.Store) Option { return func(h *Handler) { h.store = s } }

// WithLogger overrides the handler logger.
func WithLogger(l logger.Logger) Option { return func(h *Handler) { h.log = l } }

// WithClock overrides the clock used for audit and event timestamps.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// NewHandler builds a Handler. defaultDuration applies when the object has no
// duration; deadlineHours is sent as the scheduling deadline.
func NewHandler(f *policy.Filter, s Scheduler, defaultDuration, deadlineHours int, opts ...Option) *Handler {
	h := &Handler{
		filter:          f,
		scheduler:       s,
		defaultDuration: defaultDuration,
		deadlineHours:   deadlineHours,
		store:           audit.NopStore{},
		log:             inflog.New("webhook"),
		now:             time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP implements POST /mutate.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		err = &model.ValidationError{Reason: "read body: " + err.Error()}
	}

	rec := audit.NewRecord("", start)
	var d model.ScheduleDecision
	if err == nil {
		d, err = h.place(r.Context(), body, &rec)
	}
	review := h.enc.Encode(rec.UID, d, err)
	h.finish(r.Context(), &rec, review, d, err, start)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(review); err != nil {
		h.log.With(map[string]any{"uid": rec.UID}).Errorf("write review: %v", err)
	}
}

// place runs decode, filter and schedule. rec is filled as stages complete.
func (h *Handler) place(ctx context.Context, body []byte, rec *audit.Record) (model.ScheduleDecision, error) {
	review, err := admission.DecodeReview(body)
	if err != nil {
		return model.ScheduleDecision{}, err
	}
	uid, req, err := admission.DecodeWorkload(review, h.defaultDuration)
	rec.UID = uid
	if err != nil {
		return model.ScheduleDecision{}, err
	}
	rec.DurationHours = req.DurationHours
	rec.GPUType = req.GPUType
	rec.LatencyOrigin = req.LatencyOrigin
	rec.Labels = req.Labels

	regions, stages, err := h.filter.Trace(uid, nil, req)
	rec.Stages = stages
	if err != nil {
		return model.ScheduleDecision{}, err
	}
	h.log.With(map[string]any{"uid": uid}).Infow("requesting schedule", map[string]any{
		"regions":  regions,
		"duration": req.DurationHours,
	})
	return h.scheduler.RequestSchedule(ctx, req, model.Constraints{
		EligibleRegions: regions,
		DeadlineHours:   h.deadlineHours,
	})
}

func (h *Handler) finish(ctx context.Context, rec *audit.Record, review admissionv1.AdmissionReview, d model.ScheduleDecision, err error, start time.Time) {
	kind := model.Kind(err)
	log := h.log.With(map[string]any{"uid": rec.UID})
	rec.Allowed = review.Response.Allowed
	if rec.Allowed {
		rec.Region = d.Region
		rec.StartTime = d.StartTimeUTC()
		rec.AvgIntensity = d.AvgIntensity
		log.Infow("workload placed", map[string]any{
			"region":     d.Region,
			"start_time": rec.StartTime,
		})
	} else {
		rec.ErrorKind = kind
		if review.Response.Result != nil {
			rec.Reason = review.Response.Result.Message
		}
		log.Warnf("denied (%s): %s", rec.ErrorKind, rec.Reason)
	}
	coremon.Capture("webhook", err, map[string]string{"uid": rec.UID})

	if h.bus != nil {
		h.bus.Publish(events.PlacementEvent{
			UID:          rec.UID,
			Allowed:      rec.Allowed,
			Region:       rec.Region,
			StartTime:    d.StartTime,
			AvgIntensity: rec.AvgIntensity,
			Eligible:     rec.Eligible(),
			ErrorKind:    rec.ErrorKind,
			Reason:       rec.Reason,
			Latency:      h.now().Sub(start),
			Time:         start,
		})
	}
	if err := h.store.Append(context.WithoutCancel(ctx), *rec); err != nil {
		log.Errorf("audit append: %v", err)
	}
}
