package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := Topics()
	want := map[string]bool{"actions": false, "autosave": false, "config": false, "ordering": false}
	for _, topic := range topics {
		if _, ok := want[topic]; ok {
			want[topic] = true
		}
	}
	for topic, seen := range want {
		if !seen {
			t.Fatalf("missing topic %q in %v", topic, topics)
		}
	}
}

func TestGet(t *testing.T) {
	body, ok := Get(" Ordering ")
	if !ok || !strings.Contains(body, "INVALID_ORDER") {
		t.Fatalf("expected ordering doc, got ok=%v", ok)
	}
	if _, ok := Get("nope"); ok {
		t.Fatalf("expected unknown topic to be missing")
	}
}
