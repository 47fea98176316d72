// Package audit records purchase attempt traces as JSONL files.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	traceFileMode = 0600
	traceDirMode  = 0700
)

// Event types.
const (
	TypeRunStarted    = "run_started"
	TypeModeResolved  = "mode_resolved"
	TypeStep          = "step"
	TypeTransition    = "transition"
	TypeOutcome       = "outcome"
	TypeNotifyFailure = "notify_failure"
)

// Event is one trace record written as a single JSON line.
type Event struct {
	Time    time.Time         `json:"time"`
	Type    string            `json:"type"`
	RunID   string            `json:"run_id"`
	Step    string            `json:"step,omitempty"`
	From    string            `json:"from,omitempty"`
	To      string            `json:"to,omitempty"`
	Result  string            `json:"result,omitempty"`
	Detail  string            `json:"detail,omitempty"`
	Summary map[string]string `json:"order_summary,omitempty"`
}

// Writer appends trace events to <dir>/<run_id>.jsonl.
// A Writer with an empty dir discards everything.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: strings.TrimSpace(dir)}
}

// Enabled reports whether events are persisted.
func (w *Writer) Enabled() bool {
	return w != nil && w.dir != ""
}

// Path returns the trace file for runID.
func (w *Writer) Path(runID string) string {
	return filepath.Join(w.dir, traceName(runID)+".jsonl")
}

// Append writes one event as one JSONL line.
func (w *Writer) Append(event Event) error {
	if !w.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.RunID) == "" {
		return errors.New("trace event requires a run id")
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, traceDirMode); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}

	file, err := os.OpenFile(w.Path(event.RunID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, traceFileMode)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trace event: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append trace event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync trace file: %w", err)
	}
	return nil
}

// traceName keeps run IDs from escaping the trace directory.
func traceName(runID string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(runID) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
