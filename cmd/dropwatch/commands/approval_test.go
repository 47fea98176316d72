package commands

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestApprovalApprove_PostsCallback(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"status":"approved","run_id":"evt-1-abcd1234"}`))
	}))
	defer srv.Close()
	writeTestConfig(t, nil)

	output, err := execute(t, nil, "approval", "approve", "evt-1-abcd1234", "--url", srv.URL)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if method != http.MethodPost || path != "/approval/evt-1-abcd1234/approve" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if !strings.Contains(output, "approved evt-1-abcd1234") {
		t.Fatalf("unexpected output: %s", output)
	}
}

func TestApprovalReject_AlreadyDecided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"already_decided","message":"approval already approved"}`))
	}))
	defer srv.Close()
	writeTestConfig(t, nil)

	_, err := execute(t, nil, "approval", "reject", "run-1", "--url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "already approved") {
		t.Fatalf("expected already decided error, got %v", err)
	}
}

func TestApprovalStatus_PrintsSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/approval/run-1/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{
  "run_id": "run-1",
  "status": "pending",
  "order_summary": {"total": "$42.18", "pickup_location": "Store #12"},
  "created_at": "2026-01-02T03:04:05Z",
  "expires_at": "2026-01-02T03:14:05Z"
}`))
	}))
	defer srv.Close()
	writeTestConfig(t, nil)

	output, err := execute(t, nil, "approval", "status", "run-1", "--url", srv.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Approval run-1", "pending", "$42.18", "Store #12"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestApprovalStatus_UnknownRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","message":"unknown run_id"}`))
	}))
	defer srv.Close()
	writeTestConfig(t, nil)

	if _, err := execute(t, nil, "approval", "status", "nope", "--url", srv.URL); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
