package webhook

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts POST /mutate and GET /healthz. auditLogs, when non-nil, is
// served on GET /api/audit/logs. requestTimeout bounds every request.
func NewRouter(h *Handler, requestTimeout time.Duration, auditLogs http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Post("/mutate", h.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if auditLogs != nil {
		r.Method(http.MethodGet, "/api/audit/logs", auditLogs)
	}
	return r
}
