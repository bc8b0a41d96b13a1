package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	t.Parallel()

	topics := Topics()
	want := []string{"grouping", "moves", "ordering"}
	if strings.Join(topics, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected topics: %v", topics)
	}
	for _, topic := range topics {
		body, ok := Get(topic)
		if !ok || !strings.HasPrefix(body, "# ") {
			t.Fatalf("topic %s: missing heading", topic)
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	if _, ok := Get(" Ordering "); !ok {
		t.Fatalf("expected case-insensitive match")
	}
	for _, topic := range []string{"", "nope", "../docs"} {
		if _, ok := Get(topic); ok {
			t.Fatalf("expected %q to be unknown", topic)
		}
	}
}
