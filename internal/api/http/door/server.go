package door

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/oshokin/doorbell/internal/domain/door"
	"github.com/oshokin/doorbell/internal/logger"
)

// Coordinator abstracts the door state machine the transport drives.
type Coordinator interface {
	Buzz(ctx context.Context)
	RequestOpen(ctx context.Context, caller domain.Caller)
	SetPartyMode(ctx context.Context, enabled bool, caller domain.Caller)
	LongPollOpen(ctx context.Context, timeout time.Duration) domain.PollResult
	Snapshot() domain.Snapshot
}

// Settings configures request handling.
type Settings struct {
	// AllowedCallers are the numbers whose replies are acted upon.
	AllowedCallers []string
	// DefaultPollTimeout is used when a long-poll passes no timeout.
	DefaultPollTimeout time.Duration
	// MaxPollTimeout caps the timeout a long-poll may request.
	MaxPollTimeout time.Duration
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewServer builds the router with the standard middleware stack.
func NewServer(coordinator Coordinator, settings Settings) *chi.Mux {
	routes := newRoutes(coordinator, settings)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/ring", routes.ring)
	r.Get("/longpoll_open", routes.longPollOpen)
	r.Get("/incoming_text", routes.incomingText)
	r.Post("/incoming_text", routes.incomingText)
	r.Get("/state", routes.state)
	r.Get("/healthz", routes.healthz)

	if settings.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", settings.Metrics)
	}

	return r
}

// LoggingMiddleware attaches a request-scoped logger to the context and
// logs every request once it is served.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithKV(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.DebugKV(ctx, "HTTP request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
