package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_StderrText(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "debug", Stderr: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer closer.Close()
	log.WithField("action", "task.update").Debug("action ok")
	if !strings.Contains(buf.String(), "action=task.update") {
		t.Fatalf("expected text log line, got %q", buf.String())
	}
}

func TestNew_FileIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.log")
	log, closer, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug("hidden")
	log.WithField("code", "CONFLICT").Warn("stale move")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered at info level")
	}
	if !strings.Contains(out, `"code":"CONFLICT"`) {
		t.Fatalf("expected JSON fields, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel(""); err != nil || lvl != logrus.InfoLevel {
		t.Fatalf("empty level: %v %v", lvl, err)
	}
	if lvl, err := ParseLevel(" WARN "); err != nil || lvl != logrus.WarnLevel {
		t.Fatalf("warn level: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
