package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/MEKXH/dropwatch/internal/approval"
	"github.com/MEKXH/dropwatch/internal/metrics"
	"github.com/MEKXH/dropwatch/internal/ratelimit"
)

type action string

const (
	actionApprove action = "approve"
	actionReject  action = "reject"
)

// decide records a human decision. The handler never waits for the purchase task.
func (h *handlers) decide(act action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		runID := mux.Vars(r)["run_id"]
		reg := h.deps.Registry
		if reg == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval registry is not configured")
			return
		}

		if _, ok := reg.Get(runID); !ok {
			callbackResult(act, http.StatusNotFound)
			writeError(w, requestID, http.StatusNotFound, "not_found", "approval not found")
			return
		}

		var ok bool
		var status approval.Status
		if act == actionApprove {
			ok, status = reg.Approve(runID), approval.StatusApproved
		} else {
			ok, status = reg.Reject(runID), approval.StatusRejected
		}
		if !ok {
			msg := "approval already decided or expired"
			if rec, found := reg.Get(runID); found {
				msg = fmt.Sprintf("approval already %s", rec.Status)
			}
			callbackResult(act, http.StatusBadRequest)
			slog.Warn("approval callback refused", "request_id", requestID, "run_id", runID, "action", act)
			writeError(w, requestID, http.StatusBadRequest, "already_decided", msg)
			return
		}

		callbackResult(act, http.StatusOK)
		slog.Info("approval decided by callback", "request_id", requestID, "run_id", runID, "status", status)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"run_id": runID,
		})
	}
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r)
	runID := mux.Vars(r)["run_id"]
	if h.deps.Registry == nil {
		writeError(w, requestID, http.StatusInternalServerError, "internal_error", "approval registry is not configured")
		return
	}
	rec, ok := h.deps.Registry.Get(runID)
	if !ok {
		callbackResult("status", http.StatusNotFound)
		writeError(w, requestID, http.StatusNotFound, "not_found", "approval not found")
		return
	}
	callbackResult("status", http.StatusOK)
	writeJSON(w, http.StatusOK, rec)
}

func callbackResult(act action, status int) {
	metrics.ApprovalCallbacks.WithLabelValues(string(act), strconv.Itoa(status)).Inc()
}

// rateLimit refuses callers that exceed the limiter's window budget.
func rateLimit(l *ratelimit.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			res := l.Check(ip)
			if !res.Allowed {
				metrics.RateLimited.Inc()
				slog.Warn("approval request rate limited", "security_event", "rate_limited",
					"client_ip", ip, "path", r.URL.Path, "retry_after", res.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
				writeError(w, getRequestID(r), http.StatusTooManyRequests, "rate_limited",
					fmt.Sprintf("too many requests, retry after %d seconds", res.RetryAfterSeconds()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
