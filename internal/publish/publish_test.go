package publish

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
)

func testView() grouping.View {
	due := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)
	one, two := 1, 2
	groups := []model.Group{
		{ID: "st-todo", Key: "st-todo", Name: "To Do", Dimension: "status", Ordinal: &one},
		{ID: "st-done", Key: "st-done", Name: "Done", Dimension: "status", Ordinal: &two},
		{Key: "", Name: "No status", Dimension: "status"},
	}
	items := []model.Item{
		{ID: "item-b", Title: "Second", StatusID: "st-todo", Order: 2000},
		{ID: "item-a", Title: "First_one", StatusID: "st-todo", AssigneeID: "mem-ann", Priority: model.PriorityHigh, Order: 1000, DueDate: &due},
		{ID: "item-x", Title: "Loose", Order: math.NaN()},
	}
	return grouping.Board(items, grouping.MustLookup(grouping.KindStatus), groups, grouping.ViewOptions{})
}

func TestRenderBoardMarkdown(t *testing.T) {
	t.Parallel()

	cat := &model.Catalog{Members: []model.Member{{ID: "mem-ann", Name: "Ann"}}}
	md := RenderBoardMarkdown(testView(), RenderOptions{Catalog: cat, ShowOrder: true})

	for _, want := range []string{
		"# Board by status",
		"3 items in 3 groups.",
		"## To Do (2)",
		"## Done (0)\n\n_No items._",
		"- **First\\_one** `item-a` · high · @Ann · due 2026-04-04 · order 1000",
		"order unset",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in:\n%s", want, md)
		}
	}
	if strings.Index(md, "item-a") > strings.Index(md, "item-b") {
		t.Fatalf("items should follow bucket order:\n%s", md)
	}
	if strings.Contains(md, "st-todo ·") {
		t.Fatalf("grouping field should not repeat on item lines:\n%s", md)
	}
}

func TestRenderTerminal(t *testing.T) {
	t.Parallel()

	out, err := RenderTerminal("# Board\n\n- one", 60, "notty")
	if err != nil {
		t.Fatalf("RenderTerminal: %v", err)
	}
	if !strings.Contains(out, "Board") || !strings.Contains(out, "one") {
		t.Fatalf("unexpected render: %q", out)
	}
	if _, err := RenderTerminal("# x", 60, "neon"); err == nil {
		t.Fatalf("expected unknown style error")
	}
	if out, _ := RenderTerminal("   ", 60, ""); out != "" {
		t.Fatalf("blank input renders nothing, got %q", out)
	}
}

func TestWriteBoard_RespectsOverwrite(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	res, err := WriteBoard(testView(), dir, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteBoard: %v", err)
	}
	if len(res.Written) != 1 || filepath.Base(res.Written[0]) != "status.md" {
		t.Fatalf("unexpected result: %+v", res)
	}
	b, err := os.ReadFile(res.Written[0])
	if err != nil || !strings.HasPrefix(string(b), "# Board by status") {
		t.Fatalf("unexpected file: %q %v", b, err)
	}

	if _, err := WriteBoard(testView(), dir, WriteOptions{}); err == nil {
		t.Fatalf("expected existing file to be kept without overwrite")
	}
	if _, err := WriteBoard(testView(), dir, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := WriteBoard(testView(), " ", WriteOptions{}); err == nil {
		t.Fatalf("expected missing dir error")
	}
}
