package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type textOnly struct{ s string }

func (t textOnly) Text() string { return t.s }

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, map[string]any{"ok": true}, "", false); err != nil {
		t.Fatalf("json: %v", err)
	}
	if strings.TrimSpace(buf.String()) != `{"ok":true}` {
		t.Fatalf("unexpected json %q", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, textOnly{"1. Buy milk"}, "text", false); err != nil {
		t.Fatalf("text: %v", err)
	}
	if buf.String() != "1. Buy milk\n" {
		t.Fatalf("unexpected text %q", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, json.RawMessage(`{"a":1}`), "json", true); err != nil {
		t.Fatalf("raw: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"a\": 1") {
		t.Fatalf("expected indented raw json, got %q", buf.String())
	}

	if err := Write(&buf, nil, "edn", false); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
