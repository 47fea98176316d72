package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open trace file error: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan trace file error: %v", err)
	}
	return lines
}

func TestWriter_AppendEvent(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(dir)

	firstTime := time.Date(2026, 2, 15, 8, 0, 0, 0, time.UTC)
	secondTime := firstTime.Add(5 * time.Second)

	if err := writer.Append(Event{
		Time:  firstTime,
		Type:  TypeTransition,
		RunID: "evt-1-abcd1234",
		From:  "filling_payment",
		To:    "awaiting_approval",
	}); err != nil {
		t.Fatalf("Append first event error: %v", err)
	}
	if err := writer.Append(Event{
		Time:    secondTime,
		Type:    TypeOutcome,
		RunID:   "evt-1-abcd1234",
		Result:  "success",
		Summary: map[string]string{"total": "$40.11"},
	}); err != nil {
		t.Fatalf("Append second event error: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "evt-1-abcd1234.jsonl"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 jsonl lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line error: %v", err)
	}
	if !first.Time.Equal(firstTime) {
		t.Fatalf("expected first time %s, got %s", firstTime, first.Time)
	}
	if first.Type != TypeTransition || first.From != "filling_payment" || first.To != "awaiting_approval" {
		t.Fatalf("unexpected first event %+v", first)
	}

	var second Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second line error: %v", err)
	}
	if second.Result != "success" || second.Summary["total"] != "$40.11" {
		t.Fatalf("unexpected second event %+v", second)
	}
}

func TestWriter_DisabledDiscards(t *testing.T) {
	writer := NewWriter("")
	if writer.Enabled() {
		t.Fatal("expected writer without dir to be disabled")
	}
	if err := writer.Append(Event{Type: TypeOutcome, RunID: "r"}); err != nil {
		t.Fatalf("expected disabled append to succeed, got %v", err)
	}
}

func TestWriter_RequiresRunID(t *testing.T) {
	writer := NewWriter(t.TempDir())
	if err := writer.Append(Event{Type: TypeOutcome}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestWriter_RunIDCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(dir)
	if err := writer.Append(Event{Type: TypeStep, RunID: "../../etc/passwd"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if filepath.Dir(writer.Path("../../etc/passwd")) != dir {
		t.Fatalf("trace path escaped dir: %s", writer.Path("../../etc/passwd"))
	}
}

func TestWriter_AppendEvent_MkdirAllFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "traces")
	if err := os.WriteFile(blocker, []byte("not-a-dir"), 0644); err != nil {
		t.Fatalf("WriteFile blocker error: %v", err)
	}

	writer := NewWriter(blocker)
	if err := writer.Append(Event{Type: TypeStep, RunID: "r"}); err == nil {
		t.Fatal("expected append error when trace dir is a file")
	}
}

func TestWriter_AppendEvent_Concurrent(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(dir)

	const total = 20
	var wg sync.WaitGroup
	errCh := make(chan error, total)
	wg.Add(total)
	for i := 0; i < total; i++ {
		go func() {
			defer wg.Done()
			if err := writer.Append(Event{
				Time:   time.Date(2026, 2, 15, 9, 0, i, 0, time.UTC),
				Type:   TypeStep,
				RunID:  "run-1",
				Step:   fmt.Sprintf("step-%d", i),
				Result: "ok",
			}); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("append failed in concurrent path: %v", err)
	}

	if count := len(readLines(t, filepath.Join(dir, "run-1.jsonl"))); count != total {
		t.Fatalf("expected %d lines, got %d", total, count)
	}
}
