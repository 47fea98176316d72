package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MEKXH/dropwatch/internal/metrics"
	"github.com/MEKXH/dropwatch/internal/webhook"
)

func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	source := mux.Vars(r)["source"]

	if h.deps.Ingress == nil || h.deps.Launcher == nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "webhook ingress is not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.WebhookRequests.WithLabelValues(source, "too_large").Inc()
			writeError(w, requestID, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		metrics.WebhookRequests.WithLabelValues(source, "bad_request").Inc()
		writeError(w, requestID, http.StatusBadRequest, "bad_request", "could not read request body")
		return
	}

	ev, err := h.deps.Ingress.Accept(r.Context(), webhook.Request{
		Source:    source,
		Timestamp: r.Header.Get(webhook.HeaderTimestamp),
		Signature: r.Header.Get(webhook.HeaderSignature),
		Body:      body,
		ClientIP:  clientIP(r),
	})
	if err != nil {
		result := rejectionLabel(err)
		metrics.WebhookRequests.WithLabelValues(source, result).Inc()
		if errors.Is(err, webhook.ErrValidation) {
			writeError(w, requestID, http.StatusBadRequest, result, err.Error())
			return
		}
		slog.Error("webhook processing failed", "request_id", requestID, "source", source, "error", err)
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	runID := h.deps.Launcher.Launch(r.Context(), ev)
	metrics.WebhookRequests.WithLabelValues(source, "accepted").Inc()
	slog.Info("purchase attempt launched", "request_id", requestID, "event_id", ev.EventID, "run_id", runID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "accepted",
		"event_id":   ev.EventID,
		"run_id":     runID,
		"request_id": requestID,
	})
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, webhook.ErrMissingHeaders):
		return "missing_headers"
	case errors.Is(err, webhook.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, webhook.ErrStaleTimestamp):
		return "stale_timestamp"
	case errors.Is(err, webhook.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, webhook.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, webhook.ErrDuplicateEvent):
		return "duplicate_event"
	case errors.Is(err, webhook.ErrUnsafeModeOverride):
		return "unsafe_mode_override"
	default:
		return "internal_error"
	}
}
