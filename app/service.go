// Package app wires configuration into the two runnable services: the
// admission webhook and the scheduling service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	auditapi "github.com/kilianp07/greenplace/api/audit"
	"github.com/kilianp07/greenplace/api/schedule"
	"github.com/kilianp07/greenplace/api/webhook"
	"github.com/kilianp07/greenplace/config"
	"github.com/kilianp07/greenplace/connectors/scheduling"
	"github.com/kilianp07/greenplace/core/audit"
	"github.com/kilianp07/greenplace/core/events"
	"github.com/kilianp07/greenplace/core/forecast"
	coremetrics "github.com/kilianp07/greenplace/core/metrics"
	coremon "github.com/kilianp07/greenplace/core/monitoring"
	"github.com/kilianp07/greenplace/core/policy"
	"github.com/kilianp07/greenplace/core/prediction"
	"github.com/kilianp07/greenplace/core/scheduler"
	"github.com/kilianp07/greenplace/infra/logger"
	"github.com/kilianp07/greenplace/infra/metrics"
	"github.com/kilianp07/greenplace/infra/mqtt"
	"github.com/kilianp07/greenplace/internal/eventbus"

	// remote forecast providers and history sources register themselves
	_ "github.com/kilianp07/greenplace/connectors/clients/intensity"
	_ "github.com/kilianp07/greenplace/infra/history"
)

const shutdownTimeout = 5 * time.Second

// telemetry is the event bus and the sinks fed from it.
type telemetry struct {
	bus      *eventbus.Bus[events.Event]
	sink     coremetrics.MetricsSink
	mqtt     *mqtt.PahoClient
	promAddr string
}

func newTelemetry(cfg *config.Config) (*telemetry, error) {
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	t := &telemetry{bus: events.NewBus(), sink: sink, promAddr: cfg.Metrics.PrometheusAddr}
	if cfg.MQTT.Enabled() {
		cli, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		t.mqtt = cli
		t.sink = coremetrics.NewMultiSink(sink, mqtt.NewDecisionPublisher(cli, cfg.MQTT.TopicPrefix))
	}
	return t, nil
}

func (t *telemetry) start(ctx context.Context, log logger.Logger) {
	metrics.StartEventCollector(ctx, t.bus, t.sink)
	if t.promAddr == "" {
		return
	}
	coremon.Go(func() {
		if err := metrics.StartPromServer(ctx, t.promAddr); err != nil {
			log.Errorf("prom server: %v", err)
		}
	})
}

func (t *telemetry) close() {
	t.bus.Close()
	if t.mqtt != nil {
		t.mqtt.Disconnect()
	}
}

// WebhookService serves the admission webhook.
type WebhookService struct {
	cfg     config.WebhookConfig
	handler http.Handler
	store   audit.Store
	tel     *telemetry
	log     logger.Logger
}

// NewWebhook builds the webhook from cfg. It does not contact the scheduling
// service until the first review arrives.
func NewWebhook(cfg *config.Config) (*WebhookService, error) {
	log := logger.New("webhook")
	tel, err := newTelemetry(cfg)
	if err != nil {
		return nil, err
	}
	store, err := audit.Open(cfg.Audit)
	if err != nil {
		tel.close()
		return nil, fmt.Errorf("audit store: %w", err)
	}
	client := scheduling.NewFromConfig(cfg.SchedulerClient)
	filter := policy.NewFilter(cfg.Policy, logger.New("policy"))
	h := webhook.NewHandler(filter, client, cfg.Webhook.DefaultDurationHours, cfg.Webhook.DeadlineHours,
		webhook.WithEventBus(tel.bus),
		webhook.WithAuditStore(store),
		webhook.WithLogger(log),
	)
	var logs http.Handler
	if cfg.Audit.Backend != "none" {
		logs = auditapi.NewLogHandler(store, cfg.Audit.Token)
	}
	timeout := time.Duration(cfg.Webhook.RequestTimeoutSeconds) * time.Second
	return &WebhookService{
		cfg:     cfg.Webhook,
		handler: webhook.NewRouter(h, timeout, logs),
		store:   store,
		tel:     tel,
		log:     log,
	}, nil
}

// Handler returns the HTTP handler of the service.
func (s *WebhookService) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *WebhookService) Run(ctx context.Context) error {
	s.tel.start(ctx, s.log)
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	s.log.Infof("webhook listening on %s (tls=%t)", s.cfg.Addr, s.cfg.TLSCertFile != "")
	return serve(ctx, srv, s.cfg.TLSCertFile, s.cfg.TLSKeyFile, s.log)
}

// Close releases the audit store and telemetry.
func (s *WebhookService) Close() error {
	s.tel.close()
	return s.store.Close()
}

// SchedulerService serves the scheduling API.
type SchedulerService struct {
	cfg      config.SchedulerConfig
	handler  http.Handler
	provider prediction.Provider
	tel      *telemetry
	log      logger.Logger
}

// NewScheduler builds the scheduling service from cfg. A provider that cannot
// be constructed is logged and reported through /health.
func NewScheduler(cfg *config.Config) (*SchedulerService, error) {
	log := logger.New("scheduler")
	tel, err := newTelemetry(cfg)
	if err != nil {
		return nil, err
	}
	var orch *forecast.Orchestrator
	provider, err := prediction.NewProvider(cfg.Provider)
	if err != nil {
		log.Errorf("forecast provider unavailable: %v", err)
		coremon.Capture("scheduler", err, map[string]string{"stage": "provider"})
	} else {
		orch = forecast.NewOrchestrator(provider, logger.New("forecast"), events.FetchPublisher{Bus: tel.bus})
	}
	h := schedule.NewHandler(orch, scheduler.NewOptimizer(), cfg.Scheduler.Defaults,
		schedule.WithEventBus(tel.bus),
		schedule.WithLogger(log),
	)
	timeout := time.Duration(cfg.Scheduler.RequestTimeoutSeconds) * time.Second
	return &SchedulerService{
		cfg:      cfg.Scheduler,
		handler:  schedule.NewRouter(h, timeout),
		provider: provider,
		tel:      tel,
		log:      log,
	}, nil
}

// Handler returns the HTTP handler of the service.
func (s *SchedulerService) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *SchedulerService) Run(ctx context.Context) error {
	s.tel.start(ctx, s.log)
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	s.log.Infof("scheduler listening on %s", s.cfg.Addr)
	return serve(ctx, srv, "", "", s.log)
}

// Close releases the forecast provider and telemetry resources.
func (s *SchedulerService) Close() error {
	s.tel.close()
	if s.provider == nil {
		return nil
	}
	if err := prediction.Close(s.provider); err != nil {
		return fmt.Errorf("close forecast provider: %w", err)
	}
	return nil
}

// serve runs srv until ctx is done or the listener fails.
func serve(ctx context.Context, srv *http.Server, certFile, keyFile string, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if certFile != "" {
			errCh <- srv.ListenAndServeTLS(certFile, keyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Infof("shutting down %s", srv.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
