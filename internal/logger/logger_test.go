package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogger_WritesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")
	var stdout, stderr bytes.Buffer

	l, err := NewWithConsole(path, &stdout, &stderr)
	if err != nil {
		t.Fatalf("NewWithConsole failed: %v", err)
	}
	l.Info("started in %s", "/data")
	l.Warning("catalog unavailable")
	l.Error("capture failed at %s", "2022-04-18_09-05-07")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), data)
	}
	prefixes := []string{"INFO", "WARNING", "ERROR"}
	for i, p := range prefixes {
		if !strings.HasPrefix(lines[i], p) {
			t.Errorf("line %d = %q, expected prefix %s", i, lines[i], p)
		}
	}

	if !strings.Contains(stderr.String(), "capture failed") {
		t.Error("error line not mirrored to stderr")
	}
	if strings.Contains(stdout.String(), "capture failed") {
		t.Error("error line should not go to stdout")
	}
}

func TestLogger_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")

	for i := 0; i < 2; i++ {
		l, err := NewWithConsole(path, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		l.Info("run %d", i)
		l.Close()
	}

	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "run ") != 2 {
		t.Errorf("expected both runs in log, got %q", data)
	}
}
