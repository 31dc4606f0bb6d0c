package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/projecthelena/hello-backend/internal/config"
	"github.com/projecthelena/hello-backend/internal/metrics"
)

// Deps are the optional collaborators of the request chain. A nil field
// leaves the corresponding stage out.
type Deps struct {
	Logger  *log.Logger
	Metrics metrics.Recorder
	Limiter *IPRateLimiter
}

// Stage is one named step of the request chain, run before routing.
type Stage struct {
	Name    string
	Handler func(http.Handler) http.Handler
}

// Stages returns the request chain in the order it is applied.
func Stages(cfg *config.Config, deps Deps) []Stage {
	stages := []Stage{{"request-id", middleware.RequestID}}

	// Only trust X-Forwarded-For / X-Real-IP behind a known proxy, otherwise
	// clients could pick their own rate limit bucket.
	if cfg.TrustProxy {
		stages = append(stages, Stage{"real-ip", middleware.RealIP})
	}

	if cfg.LogRequests && deps.Logger != nil {
		stages = append(stages, Stage{"access-log", middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  deps.Logger,
			NoColor: true,
		})})
	}

	// Metrics wraps the recoverer so recovered panics are counted as 500s.
	if deps.Metrics != nil {
		stages = append(stages, Stage{"metrics", metrics.Middleware(deps.Metrics)})
	}

	stages = append(stages, Stage{"recoverer", middleware.Recoverer})

	// CORS runs ahead of the limiter so preflights are never throttled and
	// 429s still carry Access-Control-Allow-Origin.
	stages = append(stages, Stage{"cors", CORS()})

	if deps.Limiter != nil {
		stages = append(stages, Stage{"rate-limit", RateLimitMiddleware(deps.Limiter)})
	}

	return append(stages, Stage{"get-head", middleware.GetHead})
}

// NewRouter builds the responder: the stage chain followed by the single route.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()
	for _, s := range Stages(cfg, deps) {
		r.Use(s.Handler)
	}

	r.Get("/api/message", Message)

	return r
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
