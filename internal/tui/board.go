package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
)

type selection struct {
	Col  int
	Item int
	// ItemID keeps focus on the same item across re-sorts and moves.
	ItemID string
}

func indexOfItemID(v grouping.View, itemID string) (int, int, bool) {
	if strings.TrimSpace(itemID) == "" {
		return 0, 0, false
	}
	return v.Locate(itemID)
}

func clampSelection(v grouping.View, sel selection) selection {
	if len(v.Buckets) == 0 {
		return selection{Col: 0, Item: -1}
	}
	if ci, ii, ok := indexOfItemID(v, sel.ItemID); ok {
		sel.Col, sel.Item = ci, ii
	} else {
		sel.ItemID = ""
	}
	sel.Col = min(max(sel.Col, 0), len(v.Buckets)-1)

	n := len(v.Buckets[sel.Col].Items)
	if n == 0 {
		sel.Item = -1
		return sel
	}
	sel.Item = min(max(sel.Item, 0), n-1)
	sel.ItemID = v.Buckets[sel.Col].Items[sel.Item].ID
	return sel
}

func selectedItem(v grouping.View, sel selection) (model.Item, bool) {
	sel = clampSelection(v, sel)
	if sel.Item < 0 || sel.Col >= len(v.Buckets) {
		return model.Item{}, false
	}
	return v.Buckets[sel.Col].Items[sel.Item], true
}

type renderState struct {
	sel selection
	// activeID is the item being dragged, hoverKey the group under it.
	activeID string
	hoverKey *string
	// colWidth fixes the column width; 0 fits every column on screen.
	colWidth int
	names    func(memberID string) string
}

const columnGap = 2

// columnWindow returns the first visible column and how many fit.
func columnWindow(n, selCol, width, colW int) (int, int) {
	fit := max((width+columnGap)/(colW+columnGap), 1)
	if fit >= n {
		return 0, n
	}
	start := 0
	if selCol >= fit {
		start = selCol - fit + 1
	}
	return start, fit
}

func renderBoard(v grouping.View, rs renderState, width, height int) string {
	width, height = max(width, 0), max(height, 0)
	n := len(v.Buckets)
	if n == 0 {
		return normalizePane(styleMuted().Render("(no groups)"), width, height)
	}
	sel := clampSelection(v, rs.sel)

	colW := rs.colWidth
	if colW <= 0 {
		colW = max((width-columnGap*(n-1))/n, 14)
	}
	start, count := columnWindow(n, sel.Col, width, colW)

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
	headerSelectedStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg)
	headerDropStyle := lipgloss.NewStyle().Bold(true).Foreground(colorAccentFg).Background(colorAccent)

	itemStyle := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	itemSelectedStyle := itemStyle.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	itemDraggedStyle := itemStyle.Background(colorDropBg)
	innerW := max(colW-2, 0)

	metaLines := func(it model.Item, selected bool) []string {
		var tokens []token
		seg := func(st lipgloss.Style, s string) {
			if selected {
				st = st.Background(colorSelectedBg)
			}
			tokens = append(tokens, newToken(st.Render(s)))
		}
		switch it.Priority {
		case model.PriorityUrgent:
			seg(lipgloss.NewStyle().Foreground(colorPriorityUrgent).Bold(true), "urgent")
		case model.PriorityHigh:
			seg(lipgloss.NewStyle().Foreground(colorPriorityHigh), "high")
		case model.PriorityMedium, model.PriorityLow:
			seg(styleMuted(), string(it.Priority))
		}
		if v.Dimension != grouping.KindAssignee && it.AssigneeID != "" {
			name := it.AssigneeID
			if rs.names != nil {
				name = rs.names(it.AssigneeID)
			}
			seg(lipgloss.NewStyle().Foreground(colorAssignee), "@"+name)
		}
		if it.DueDate != nil {
			seg(lipgloss.NewStyle().Foreground(colorDue), "due "+it.DueDate.UTC().Format("Jan 2"))
		}
		lines := wrapTokens(tokens, max(innerW-2, 1))
		for i := range lines {
			lines[i] = "  " + lines[i]
		}
		return lines
	}

	renderCard := func(it model.Item, selected bool) string {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = "(untitled)"
		}
		prefix := "  "
		dragged := it.ID == rs.activeID
		if dragged {
			prefix = "⇅ "
		}
		titleStyle := lipgloss.NewStyle().Bold(true)
		if selected {
			titleStyle = titleStyle.Foreground(colorSelectedFg).Background(colorSelectedBg)
		}
		var content []string
		for _, ln := range wrapWords(title, innerW, prefix, "  ") {
			content = append(content, titleStyle.Render(ln))
		}
		content = append(content, metaLines(it, selected)...)
		inner := normalizePane(strings.Join(content, "\n"), innerW, 0)
		switch {
		case selected:
			return itemSelectedStyle.Render(inner)
		case dragged:
			return itemDraggedStyle.Render(inner)
		}
		return itemStyle.Render(inner)
	}

	renderCol := func(colIdx int, b grouping.Bucket) string {
		head := truncateText(fmt.Sprintf("%s (%d)", b.Group.Name, len(b.Items)), colW)
		hs := headerStyle
		switch {
		case rs.hoverKey != nil && *rs.hoverKey == b.Group.Key:
			hs = headerDropStyle
		case colIdx == sel.Col:
			hs = headerSelectedStyle
		}
		lines := []string{hs.Width(colW).Render(head)}
		if len(b.Items) == 0 {
			lines = append(lines, styleMuted().Render("(empty)"))
			return normalizePane(strings.Join(lines, "\n"), colW, height)
		}
		lines = append(lines, "")
		for i, it := range b.Items {
			card := renderCard(it, colIdx == sel.Col && i == sel.Item)
			lines = append(lines, strings.Split(card, "\n")...)
			if i < len(b.Items)-1 {
				lines = append(lines, styleMuted().Render(" "+strings.Repeat("─", max(colW-2, 0))+" "))
			}
		}
		return normalizePane(strings.Join(lines, "\n"), colW, height)
	}

	gap := strings.Repeat(" ", columnGap)
	out := ""
	for i := start; i < start+count; i++ {
		col := renderCol(i, v.Buckets[i])
		if out == "" {
			out = col
			continue
		}
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, gap, col)
	}
	return normalizePane(out, width, height)
}
