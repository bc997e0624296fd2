package door

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/doorbell/internal/domain/door"
)

const (
	operator = "+15550001111"
	stranger = "+15550006666"
)

// call is one recorded coordinator invocation.
type call struct {
	method  string
	caller  domain.Caller
	enabled bool
	timeout time.Duration
}

// fakeCoordinator implements Coordinator for unit testing the transport.
type fakeCoordinator struct {
	// mu protects calls.
	mu sync.Mutex
	// calls lists the invocations in order.
	calls []call
	// pollResult is returned by LongPollOpen.
	pollResult domain.PollResult
	// snapshot is returned by Snapshot.
	snapshot domain.Snapshot
}

func (f *fakeCoordinator) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, c)
}

func (f *fakeCoordinator) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]call(nil), f.calls...)
}

func (f *fakeCoordinator) Buzz(context.Context) {
	f.record(call{method: "Buzz"})
}

func (f *fakeCoordinator) RequestOpen(_ context.Context, caller domain.Caller) {
	f.record(call{method: "RequestOpen", caller: caller})
}

func (f *fakeCoordinator) SetPartyMode(_ context.Context, enabled bool, caller domain.Caller) {
	f.record(call{method: "SetPartyMode", caller: caller, enabled: enabled})
}

func (f *fakeCoordinator) LongPollOpen(_ context.Context, timeout time.Duration) domain.PollResult {
	f.record(call{method: "LongPollOpen", timeout: timeout})

	if f.pollResult == "" {
		return domain.PollPunt
	}

	return f.pollResult
}

func (f *fakeCoordinator) Snapshot() domain.Snapshot {
	return f.snapshot
}

// newTestServer wires a router around a fake coordinator.
func newTestServer(coordinator *fakeCoordinator) http.Handler {
	return NewServer(coordinator, Settings{
		AllowedCallers:     []string{operator},
		DefaultPollTimeout: 60 * time.Second,
		MaxPollTimeout:     5 * time.Minute,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("doorbell_transitions_total 0\n"))
		}),
	})
}

// serve performs a request against handler.
func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

// TestRing buzzes the coordinator and answers ok.
func TestRing(t *testing.T) {
	t.Parallel()

	coordinator := new(fakeCoordinator)
	rec := serve(newTestServer(coordinator), httptest.NewRequest(http.MethodGet, "/ring", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.Equal(t, []call{{method: "Buzz"}}, coordinator.Calls())

	// Only GET is routed.
	rec = serve(newTestServer(coordinator), httptest.NewRequest(http.MethodPost, "/ring", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestLongPollOpen_Timeouts covers default, explicit, clamped and invalid timeouts.
func TestLongPollOpen_Timeouts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query   string
		status  int
		timeout time.Duration
	}{
		{"", http.StatusOK, 60 * time.Second},
		{"?timeout=1", http.StatusOK, time.Second},
		{"?timeout=1.5", http.StatusOK, 1500 * time.Millisecond},
		{"?timeout=0", http.StatusOK, 0},
		{"?timeout=3600", http.StatusOK, 5 * time.Minute},
		{"?timeout=1e300", http.StatusOK, 5 * time.Minute},
		{"?timeout=-1", http.StatusBadRequest, 0},
		{"?timeout=soon", http.StatusBadRequest, 0},
		{"?timeout=NaN", http.StatusBadRequest, 0},
		{"?timeout=Inf", http.StatusBadRequest, 0},
	}

	for _, c := range cases {
		coordinator := &fakeCoordinator{pollResult: domain.PollOpen}
		rec := serve(newTestServer(coordinator), httptest.NewRequest(http.MethodGet, "/longpoll_open"+c.query, nil))

		require.Equal(t, c.status, rec.Code, c.query)

		if c.status != http.StatusOK {
			require.Empty(t, coordinator.Calls(), c.query)
			require.Contains(t, rec.Body.String(), "timeout", c.query)

			continue
		}

		require.Equal(t, "open", rec.Body.String(), c.query)
		require.Equal(t, []call{{method: "LongPollOpen", timeout: c.timeout}}, coordinator.Calls(), c.query)
	}
}

// TestIncomingText routes allow-listed replies and ignores everything else.
func TestIncomingText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from string
		body string
		want []call
	}{
		{operator, "Y", []call{{method: "RequestOpen", caller: operator}}},
		{operator, " yes ", []call{{method: "RequestOpen", caller: operator}}},
		{operator, "Party", []call{{method: "SetPartyMode", caller: operator, enabled: true}}},
		{operator, "r", []call{{method: "SetPartyMode", caller: operator, enabled: false}}},
		{operator, "no", []call{{method: "SetPartyMode", caller: operator, enabled: false}}},
		{operator, "open sesame", nil},
		{stranger, "y", nil},
		{"", "y", nil},
	}

	for _, c := range cases {
		coordinator := new(fakeCoordinator)
		form := url.Values{"From": {c.from}, "Body": {c.body}}

		req := httptest.NewRequest(http.MethodPost, "/incoming_text", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := serve(newTestServer(coordinator), req)

		require.Equal(t, http.StatusOK, rec.Code, c.body)
		require.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
		require.Contains(t, rec.Body.String(), "Response")
		require.Equal(t, c.want, coordinator.Calls(), "%s from %s", c.body, c.from)
	}
}

// TestIncomingText_QueryString accepts the webhook as a GET request too.
func TestIncomingText_QueryString(t *testing.T) {
	t.Parallel()

	coordinator := new(fakeCoordinator)
	query := url.Values{"From": {operator}, "Body": {"p"}}.Encode()

	rec := serve(newTestServer(coordinator), httptest.NewRequest(http.MethodGet, "/incoming_text?"+query, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []call{{method: "SetPartyMode", caller: operator, enabled: true}}, coordinator.Calls())
}

// TestState reports the snapshot as JSON.
func TestState(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	coordinator := &fakeCoordinator{snapshot: domain.Snapshot{State: domain.PartyModeNeutral, TransitionedAt: at}}

	rec := serve(newTestServer(coordinator), httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "PARTY_MODE_NEUTRAL", got.State)
	require.True(t, at.Equal(got.LastTransitionAt))
}

// TestOperationalEndpoints checks health and metrics wiring.
func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	handler := newTestServer(new(fakeCoordinator))

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = serve(handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "doorbell_transitions_total")

	// Without a metrics handler the route does not exist.
	bare := NewServer(new(fakeCoordinator), Settings{})
	rec = serve(bare, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
