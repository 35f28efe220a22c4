package calculator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-keypad-calc/internal/history"
	"go-keypad-calc/internal/observability"
	"go-keypad-calc/internal/testutil"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memTape struct {
	entries []history.Entry
	err     error
}

func (m *memTape) Record(_ context.Context, e history.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memTape) List(_ context.Context, id string) ([]history.Entry, error) {
	out := []history.Entry{}
	for _, e := range m.entries {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memTape) DeleteSession(_ context.Context, id string) error {
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.SessionID != id {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func newTestRouter(t *testing.T, tape Tape) (http.Handler, *SessionStore) {
	t.Helper()
	if err := InitMetrics(); err != nil {
		t.Fatalf("initializing calculator metrics: %v", err)
	}

	store := NewSessionStore()
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(store, tape))
	return r, store
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	w := testutil.ExecuteRequest(httptest.NewRequest(http.MethodPost, "/calculator/sessions", nil), router)
	testutil.CheckResponseCode(t, http.StatusCreated, w.Code)

	var resp SessionResponse
	testutil.DecodeJSONBody(t, w.Body, &resp)
	if resp.ID == "" || resp.Screen != "" {
		t.Fatalf("unexpected create response %+v", resp)
	}
	return resp.ID
}

func pressKeys(t *testing.T, router http.Handler, id, keys string) KeysResponse {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/calculator/sessions/"+id+"/keys", KeysRequest{Keys: keys})
	w := testutil.ExecuteRequest(req, router)
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var resp KeysResponse
	testutil.DecodeJSONBody(t, w.Body, &resp)
	return resp
}

func TestEvaluateHandler(t *testing.T) {
	observability.Logger = zap.NewNop()
	router, store := newTestRouter(t, nil)

	tests := []struct {
		keys     string
		screen   string
		errored  bool
		rejected int
	}{
		{keys: "3+2=", screen: "5"},
		{keys: "2+", screen: "2+"},
		{keys: "-2=", screen: "-2"},
		{keys: "a", screen: ErrorScreen, errored: true, rejected: 1},
		{keys: "2++", screen: ErrorScreen, errored: true, rejected: 1},
		{keys: "ab", screen: ErrorScreen, errored: true, rejected: 2},
		{keys: "a7", screen: "7", rejected: 1},
	}

	for _, tc := range tests {
		t.Run(tc.keys, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/calculator/evaluate", KeysRequest{Keys: tc.keys})
			w := testutil.ExecuteRequest(req, router)
			testutil.CheckResponseCode(t, http.StatusOK, w.Code)

			var resp KeysResponse
			testutil.DecodeJSONBody(t, w.Body, &resp)

			if resp.Screen != tc.screen || resp.Errored != tc.errored || resp.Rejected != tc.rejected {
				t.Fatalf("expected screen=%q errored=%t rejected=%d, got %+v", tc.screen, tc.errored, tc.rejected, resp)
			}
			if resp.ID != "" {
				t.Fatalf("expected no session id, got %q", resp.ID)
			}
		})
	}

	if store.Len() != 0 {
		t.Fatalf("expected evaluate to leave no sessions, got %d", store.Len())
	}
}

func TestKeysHandlerRejectsBadBodies(t *testing.T) {
	observability.Logger = zap.NewNop()
	router, _ := newTestRouter(t, nil)
	id := createSession(t, router)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "malformed json", body: `{"keys":`, msg: "invalid request body"},
		{name: "empty keys", body: `{"keys":""}`, msg: "no keys provided"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/calculator/sessions/"+id+"/keys", strings.NewReader(tc.body))
			w := testutil.ExecuteRequest(req, router)
			testutil.CheckResponseCode(t, http.StatusBadRequest, w.Code)

			var body map[string]string
			testutil.DecodeJSONBody(t, w.Body, &body)
			if body["error"] != tc.msg {
				t.Fatalf("expected error %q, got %q", tc.msg, body["error"])
			}
		})
	}
}

func TestSessionKeysAccumulateAcrossRequests(t *testing.T) {
	observability.Logger = zap.NewNop()
	router, _ := newTestRouter(t, nil)
	id := createSession(t, router)

	if resp := pressKeys(t, router, id, "30"); resp.Screen != "30" {
		t.Fatalf("expected screen %q, got %q", "30", resp.Screen)
	}
	if resp := pressKeys(t, router, id, "+5"); resp.Screen != "30+5" {
		t.Fatalf("expected screen %q, got %q", "30+5", resp.Screen)
	}
	resp := pressKeys(t, router, id, "=")
	if resp.Screen != "35" || resp.ID != id {
		t.Fatalf("expected screen %q for %s, got %+v", "35", id, resp)
	}
}

func TestUnknownSessionReturnsNotFound(t *testing.T) {
	observability.Logger = zap.NewNop()
	router, _ := newTestRouter(t, nil)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/calculator/sessions/missing", nil),
		httptest.NewRequest(http.MethodDelete, "/calculator/sessions/missing", nil),
		httptest.NewRequest(http.MethodGet, "/calculator/sessions/missing/history", nil),
		testutil.NewJSONRequest(t, http.MethodPost, "/calculator/sessions/missing/keys", KeysRequest{Keys: "1"}),
	}

	for _, req := range requests {
		t.Run(req.Method+" "+req.URL.Path, func(t *testing.T) {
			w := testutil.ExecuteRequest(req, router)
			testutil.CheckResponseCode(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestEqualsIsRecordedOnTape(t *testing.T) {
	observability.Logger = zap.NewNop()
	tape := &memTape{}
	router, _ := newTestRouter(t, tape)
	id := createSession(t, router)

	pressKeys(t, router, id, "3+2=")
	pressKeys(t, router, id, "x=")
	pressKeys(t, router, id, "-4=")

	w := testutil.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/calculator/sessions/"+id+"/history", nil), router)
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	testutil.DecodeJSONBody(t, w.Body, &resp)

	want := []struct {
		expression string
		result     int64
	}{
		{expression: "3+2", result: 5},
		{expression: "", result: 0},
		// continues from the 0 left by "x="
		{expression: "0-4", result: -4},
	}
	if len(resp.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), resp.Entries)
	}
	for i, e := range want {
		if resp.Entries[i].Expression != e.expression || resp.Entries[i].Result != e.result {
			t.Fatalf("entry %d: expected %q=%d, got %+v", i, e.expression, e.result, resp.Entries[i])
		}
	}
}

func TestEvaluateDoesNotRecordOnTape(t *testing.T) {
	observability.Logger = zap.NewNop()
	tape := &memTape{}
	router, _ := newTestRouter(t, tape)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/calculator/evaluate", KeysRequest{Keys: "1+1="})
	testutil.CheckResponseCode(t, http.StatusOK, testutil.ExecuteRequest(req, router).Code)

	if len(tape.entries) != 0 {
		t.Fatalf("expected empty tape, got %+v", tape.entries)
	}
}

func TestTapeFailureDoesNotFailKeys(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	oldLogger := observability.Logger
	observability.Logger = zap.New(core)
	t.Cleanup(func() { observability.Logger = oldLogger })

	router, _ := newTestRouter(t, &memTape{err: errors.New("disk full")})
	id := createSession(t, router)

	if resp := pressKeys(t, router, id, "1+1="); resp.Screen != "2" {
		t.Fatalf("expected screen %q, got %q", "2", resp.Screen)
	}

	if n := logs.FilterMessage("recording result failed").Len(); n != 1 {
		t.Fatalf("expected 1 tape failure log, got %d", n)
	}
}

func TestRejectedKeyIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	oldLogger := observability.Logger
	observability.Logger = zap.New(core)
	t.Cleanup(func() { observability.Logger = oldLogger })

	router, _ := newTestRouter(t, nil)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/calculator/evaluate", KeysRequest{Keys: "2+-"})
	testutil.CheckResponseCode(t, http.StatusOK, testutil.ExecuteRequest(req, router).Code)

	entries := logs.FilterMessage("key rejected").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 rejected key log, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["error_kind"] != "consecutive_operator" {
		t.Fatalf("expected error_kind %q, got %#v", "consecutive_operator", fields["error_kind"])
	}
	if fields["key"] != "-" {
		t.Fatalf("expected key %q, got %#v", "-", fields["key"])
	}
}

func TestDeleteSessionDropsTape(t *testing.T) {
	observability.Logger = zap.NewNop()
	tape := &memTape{}
	router, store := newTestRouter(t, tape)
	id := createSession(t, router)

	pressKeys(t, router, id, "9=")

	w := testutil.ExecuteRequest(httptest.NewRequest(http.MethodDelete, "/calculator/sessions/"+id, nil), router)
	testutil.CheckResponseCode(t, http.StatusNoContent, w.Code)

	if store.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", store.Len())
	}
	if len(tape.entries) != 0 {
		t.Fatalf("expected tape to be dropped, got %+v", tape.entries)
	}
}

func TestResultNotRecordedForDeletedSession(t *testing.T) {
	observability.Logger = zap.NewNop()
	if err := InitMetrics(); err != nil {
		t.Fatalf("initializing calculator metrics: %v", err)
	}

	tape := &memTape{}
	store := NewSessionStore()
	h := NewHandler(store, tape)

	id, _ := store.Create()
	_, outcomes, err := store.Press(id, "4+4=")
	if err != nil {
		t.Fatalf("pressing: %v", err)
	}

	// The session goes away between the press and the tape write.
	if err := store.Delete(id); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	h.recordResult(context.Background(), zap.NewNop(), id, outcomes[len(outcomes)-1])

	if len(tape.entries) != 0 {
		t.Fatalf("expected no tape entries for a deleted session, got %+v", tape.entries)
	}
}

func TestKeysHandlerLimitsRequestSize(t *testing.T) {
	observability.Logger = zap.NewNop()
	router, store := newTestRouter(t, nil)
	id, _ := store.Create()

	tests := []struct {
		name   string
		target string
		keys   string
		status int
		msg    string
	}{
		{name: "body too large", target: "/calculator/evaluate", keys: strings.Repeat("1", MaxBodyBytes), status: http.StatusRequestEntityTooLarge, msg: "request body too large"},
		{name: "too many keys", target: "/calculator/evaluate", keys: strings.Repeat("1", MaxKeysPerRequest+1), status: http.StatusBadRequest, msg: "too many keys"},
		{name: "too many keys on session", target: "/calculator/sessions/" + id + "/keys", keys: strings.Repeat("+", MaxKeysPerRequest+1), status: http.StatusBadRequest, msg: "too many keys"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, tc.target, KeysRequest{Keys: tc.keys})
			w := testutil.ExecuteRequest(req, router)
			testutil.CheckResponseCode(t, tc.status, w.Code)

			var body map[string]string
			testutil.DecodeJSONBody(t, w.Body, &body)
			if body["error"] != tc.msg {
				t.Fatalf("expected error %q, got %q", tc.msg, body["error"])
			}
		})
	}

	calc, err := store.Get(id)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if calc.Screen() != "" {
		t.Fatalf("expected rejected request to leave the session untouched, got %q", calc.Screen())
	}
}

func TestKeysHandlerAcceptsKeysAtLimit(t *testing.T) {
	observability.Logger = zap.NewNop()
	router, _ := newTestRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/calculator/evaluate", KeysRequest{Keys: strings.Repeat("0", MaxKeysPerRequest)})
	w := testutil.ExecuteRequest(req, router)
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var resp KeysResponse
	testutil.DecodeJSONBody(t, w.Body, &resp)
	if len(resp.Screen) != MaxKeysPerRequest {
		t.Fatalf("expected %d zeros on screen, got %d characters", MaxKeysPerRequest, len(resp.Screen))
	}
}
