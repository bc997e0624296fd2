package door

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/twilio/twilio-go/twiml"

	domain "github.com/oshokin/doorbell/internal/domain/door"
	"github.com/oshokin/doorbell/internal/logger"
)

// StateResponse is the body of GET /state.
type StateResponse struct {
	State            string    `json:"state"`
	LastTransitionAt time.Time `json:"last_transition_at"`
}

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

var (
	// errInvalidTimeout is returned for timeouts that are not non-negative numbers.
	errInvalidTimeout = errors.New("timeout must be a non-negative number of seconds")
)

// routes holds the handlers and their dependencies.
type routes struct {
	coordinator Coordinator
	allowed     map[domain.Caller]struct{}
	settings    Settings
}

// newRoutes prepares the handlers.
func newRoutes(coordinator Coordinator, settings Settings) *routes {
	allowed := make(map[domain.Caller]struct{}, len(settings.AllowedCallers))
	for _, caller := range settings.AllowedCallers {
		allowed[domain.Caller(caller)] = struct{}{}
	}

	return &routes{
		coordinator: coordinator,
		allowed:     allowed,
		settings:    settings,
	}
}

// ring handles GET /ring from the embedded client.
func (rr *routes) ring(w http.ResponseWriter, r *http.Request) {
	rr.coordinator.Buzz(r.Context())

	writeText(w, "ok")
}

// longPollOpen handles GET /longpoll_open?timeout=<seconds>.
func (rr *routes) longPollOpen(w http.ResponseWriter, r *http.Request) {
	timeout, err := rr.pollTimeout(r.URL.Query().Get("timeout"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := rr.coordinator.LongPollOpen(r.Context(), timeout)

	writeText(w, string(result))
}

// incomingText handles the Twilio SMS webhook.
func (rr *routes) incomingText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, "malformed form", http.StatusBadRequest)
		return
	}

	var (
		ctx    = r.Context()
		caller = domain.Caller(r.FormValue("From"))
		body   = r.FormValue("Body")
	)

	logger.DebugKV(ctx, "Received text", "from", caller, "body", body)

	if _, ok := rr.allowed[caller]; !ok {
		logger.InfoKV(ctx, "Text was from an unknown number, ignoring", "from", caller)
	} else {
		switch reply := domain.ParseReply(body); reply {
		case domain.ReplyYes:
			rr.coordinator.RequestOpen(ctx, caller)
		case domain.ReplyParty:
			rr.coordinator.SetPartyMode(ctx, true, caller)
		case domain.ReplyRegular:
			rr.coordinator.SetPartyMode(ctx, false, caller)
		default:
			logger.InfoKV(ctx, "Text is not a command, ignoring", "from", caller)
		}
	}

	response, err := twiml.Messages(nil)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to render TwiML", "error", err)
		writeError(w, "failed to render response", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(response))
}

// state handles GET /state.
func (rr *routes) state(w http.ResponseWriter, _ *http.Request) {
	snapshot := rr.coordinator.Snapshot()

	writeJSON(w, StateResponse{
		State:            snapshot.State.String(),
		LastTransitionAt: snapshot.TransitionedAt.UTC(),
	})
}

// healthz handles GET /healthz.
func (*routes) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "ok")
}

// pollTimeout parses the timeout query parameter in seconds, applying the
// default when empty and the cap when too large.
func (rr *routes) pollTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return rr.clamp(rr.settings.DefaultPollTimeout), nil
	}

	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: %q", errInvalidTimeout, raw)
	}

	// Compare in seconds first so huge values cannot overflow the conversion.
	if limit := rr.settings.MaxPollTimeout; limit > 0 && seconds > limit.Seconds() {
		return limit, nil
	}

	return rr.clamp(time.Duration(seconds * float64(time.Second))), nil
}

// clamp caps d at the configured maximum.
func (rr *routes) clamp(d time.Duration) time.Duration {
	if limit := rr.settings.MaxPollTimeout; limit > 0 && d > limit {
		return limit
	}

	return d
}

// writeText writes a plain text body.
func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

// writeJSON writes v as a JSON body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with status.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
