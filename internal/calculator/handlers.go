package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"go-keypad-calc/internal/handlers"
	"go-keypad-calc/internal/history"
	"go-keypad-calc/internal/observability"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// tracer is the calculator's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("calculator")

const (
	// MaxBodyBytes bounds the JSON body of the key endpoints.
	MaxBodyBytes = 16 << 10
	// MaxKeysPerRequest bounds how many keys one request may press.
	MaxKeysPerRequest = 1024
)

// Tape stores the results of evaluated expressions per session.
type Tape interface {
	Record(ctx context.Context, e history.Entry) error
	List(ctx context.Context, sessionID string) ([]history.Entry, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Handler serves the calculator endpoints.
type Handler struct {
	sessions *SessionStore
	tape     Tape
}

// NewHandler returns a handler over sessions. tape may be nil, in which case
// results are not recorded and every history is empty.
func NewHandler(sessions *SessionStore, tape Tape) *Handler {
	if tape == nil {
		tape = nopTape{}
	}
	return &Handler{sessions: sessions, tape: tape}
}

// ---------------------------------------------------------------------------
// Handlers — sessions
// ---------------------------------------------------------------------------

// CreateSession handles POST /calculator/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)

	id, calc := h.sessions.Create()
	sessionsCounter.Add(ctx, 1)

	logger.Info("session created",
		zap.String("session_id", id),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)

	handlers.WriteJSON(w, http.StatusCreated, SessionResponse{ID: id, Screen: calc.Screen()})
}

// GetSession handles GET /calculator/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	calc, err := h.sessions.Get(id)
	if err != nil {
		h.sessionError(ctx, w, "get_session", id, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, SessionResponse{ID: id, Screen: calc.Screen(), Errored: calc.Errored()})
}

// DeleteSession handles DELETE /calculator/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	id := chi.URLParam(r, "id")

	if err := h.sessions.Delete(id); err != nil {
		h.sessionError(ctx, w, "delete_session", id, err)
		return
	}
	sessionsCounter.Add(ctx, -1)

	if err := h.tape.DeleteSession(ctx, id); err != nil {
		errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "tape")))
		logger.Error("dropping session tape failed", zap.String("session_id", id), zap.Error(err))
	}

	logger.Info("session deleted", zap.String("session_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /calculator/sessions/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := h.sessions.Get(id); err != nil {
		h.sessionError(ctx, w, "history", id, err)
		return
	}

	entries, err := h.tape.List(ctx, id)
	if err != nil {
		span := trace.SpanFromContext(ctx)
		observability.RecordError(ctx, span, observability.LoggerWithTrace(ctx), errorCounter, "history", "history unavailable", err, http.StatusInternalServerError, w)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, HistoryResponse{ID: id, Entries: entries})
}

// ---------------------------------------------------------------------------
// Handlers — key presses
// ---------------------------------------------------------------------------

// PressKeys handles POST /calculator/sessions/{id}/keys
func (h *Handler) PressKeys(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.handleKeys(w, r, "keys", id, func(keys string) (Calculator, []KeyOutcome, error) {
		return h.sessions.Press(id, keys)
	})
}

// Evaluate handles POST /calculator/evaluate — presses the keys on a fresh
// calculator that is discarded afterwards.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	h.handleKeys(w, r, "evaluate", "", func(keys string) (Calculator, []KeyOutcome, error) {
		calc, outcomes := PressKeys(New(), keys)
		return calc, outcomes, nil
	})
}

// handleKeys is the shared implementation of the key endpoints: one span per
// request, one child span per key, metrics per key and a trace-correlated log.
func (h *Handler) handleKeys(w http.ResponseWriter, r *http.Request, opName, sessionID string, press func(string) (Calculator, []KeyOutcome, error)) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, fmt.Sprintf("calculator.%s", opName),
		trace.WithAttributes(
			attribute.String("calculator.operation", opName),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	if sessionID != "" {
		span.SetAttributes(attribute.String("calculator.session.id", sessionID))
	}

	var req KeysRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			observability.RecordError(ctx, span, logger, errorCounter, opName, "request body too large", err, http.StatusRequestEntityTooLarge, w)
			return
		}
		observability.RecordError(ctx, span, logger, errorCounter, opName, "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	if req.Keys == "" {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "no keys provided", errors.New("keys is empty"), http.StatusBadRequest, w)
		return
	}

	if n := utf8.RuneCountInString(req.Keys); n > MaxKeysPerRequest {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "too many keys",
			fmt.Errorf("%d keys, limit %d", n, MaxKeysPerRequest), http.StatusBadRequest, w)
		return
	}

	start := time.Now()
	calc, outcomes, err := press(req.Keys)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0 // ms

	if err != nil {
		h.sessionError(ctx, w, opName, sessionID, err)
		return
	}

	rejected := h.observeKeys(ctx, logger, sessionID, outcomes)

	keysHistogram.Record(ctx, elapsed, metric.WithAttributes(attribute.String("operation", opName)))

	span.SetAttributes(
		attribute.Int("calculator.keys.count", len(outcomes)),
		attribute.Int("calculator.keys.rejected", rejected),
		attribute.String("calculator.screen", calc.Screen()),
	)
	span.SetStatus(codes.Ok, "")

	logger.Info("keys applied",
		zap.String("operation", opName),
		zap.String("session_id", sessionID),
		zap.Int("keys", len(outcomes)),
		zap.Int("rejected", rejected),
		zap.String("screen", calc.Screen()),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	handlers.WriteJSON(w, http.StatusOK, KeysResponse{
		ID:       sessionID,
		Screen:   calc.Screen(),
		Errored:  calc.Errored(),
		Rejected: rejected,
	})
}

// observeKeys traces, counts and logs each key and records every '=' result
// on the tape when sessionID is set. It returns the number of rejected keys.
func (h *Handler) observeKeys(ctx context.Context, logger *zap.Logger, sessionID string, outcomes []KeyOutcome) int {
	rejected := 0

	for i, o := range outcomes {
		_, keySpan := tracer.Start(ctx, "calculator.press",
			trace.WithAttributes(
				attribute.Int("calculator.key.index", i),
				attribute.String("calculator.key", string(o.Key)),
				attribute.String("calculator.screen.before", o.Before.Screen()),
			),
		)

		if o.Err != nil {
			rejected++
			kind := ErrorKind(o.Err)

			keySpan.RecordError(o.Err)
			keySpan.SetStatus(codes.Error, o.Err.Error())
			keySpan.End()

			keysCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "rejected")))
			errorCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", "press"),
				attribute.String("error_kind", kind),
			))

			logger.Warn("key rejected",
				zap.Int("index", i),
				zap.String("key", string(o.Key)),
				zap.String("error_kind", kind),
				zap.Error(o.Err),
				zap.String("session_id", sessionID),
			)
			continue
		}

		keysCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", o.Token.Kind.String())))
		keySpan.SetAttributes(attribute.String("calculator.screen.after", o.After.Screen()))

		if o.Token.Kind == EqualsToken {
			h.recordResult(ctx, logger, sessionID, o)
		}

		keySpan.SetStatus(codes.Ok, "")
		keySpan.End()
	}

	return rejected
}

func (h *Handler) recordResult(ctx context.Context, logger *zap.Logger, sessionID string, o KeyOutcome) {
	result := Evaluate(o.After.Expression())

	expression := o.Before.Screen()
	if o.Before.Errored() {
		expression = ""
	}

	resultGauge.Record(ctx, result)

	logger.Info("expression evaluated",
		zap.String("expression", expression),
		zap.Int64("result", result),
		zap.String("session_id", sessionID),
	)

	if sessionID == "" {
		return
	}

	// DeleteSession drops the tape only after the session is gone, so writes
	// happen while the session is still held.
	err := h.sessions.IfExists(sessionID, func() error {
		return h.tape.Record(ctx, history.Entry{
			SessionID:  sessionID,
			Expression: expression,
			Result:     result,
		})
	})
	if errors.Is(err, ErrSessionNotFound) {
		logger.Debug("session deleted before result was recorded", zap.String("session_id", sessionID))
		return
	}
	if err != nil {
		errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "tape")))
		logger.Error("recording result failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (h *Handler) sessionError(ctx context.Context, w http.ResponseWriter, opName, id string, err error) {
	span := trace.SpanFromContext(ctx)
	logger := observability.LoggerWithTrace(ctx).With(zap.String("session_id", id))

	status := http.StatusInternalServerError
	msg := "session unavailable"
	if errors.Is(err, ErrSessionNotFound) {
		status = http.StatusNotFound
		msg = ErrSessionNotFound.Error()
	}

	observability.RecordError(ctx, span, logger, errorCounter, opName, msg, err, status, w)
}

type nopTape struct{}

func (nopTape) Record(context.Context, history.Entry) error { return nil }

func (nopTape) List(context.Context, string) ([]history.Entry, error) {
	return []history.Entry{}, nil
}

func (nopTape) DeleteSession(context.Context, string) error { return nil }
