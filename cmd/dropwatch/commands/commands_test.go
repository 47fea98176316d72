package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/MEKXH/dropwatch/internal/config"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	_ = r.Close()

	return buf.String()
}

// writeTestConfig points HOME at a temp dir and writes a config there.
func writeTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)
	t.Chdir(tmpDir)

	cfg := config.DefaultConfig()
	cfg.Notify.Provider = "log"
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(tmpDir, "config.json")
	if err := config.SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	configPath = path
	t.Cleanup(func() { configPath = "" })
	return path
}

// execute runs the root command against the test config and returns stdout.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	path := configPath
	root := NewRootCmd()
	root.SetArgs(append([]string{"--config", path}, args...))
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetErr(io.Discard)
	var err error
	out := captureOutput(t, func() {
		err = root.Execute()
	})
	return stripANSI(out), err
}
