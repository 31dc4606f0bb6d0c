package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/projecthelena/hello-backend/internal/metrics"
)

// Healthz is the liveness probe. There is nothing to check beyond the process
// answering, so it never fails.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// NewOpsRouter serves the operational endpoints for the metrics listener. They
// are kept off the responder port, which only exposes /api/message.
func NewOpsRouter(ms *metrics.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Method(http.MethodGet, "/metrics", ms.Handler())

	return r
}
