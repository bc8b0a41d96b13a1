package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to be exactly width columns wide (ANSI-aware) and
// height lines tall, so columns line up under lipgloss.JoinHorizontal.
// height 0 keeps the line count.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}

	for i, ln := range lines {
		w := xansi.StringWidth(ln)
		if w > width {
			ln = truncateText(ln, width)
			w = xansi.StringWidth(ln)
		}
		if w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

// truncateText cuts s to width cells, marking the cut with an ellipsis.
func truncateText(s string, width int) string {
	switch {
	case width <= 0:
		return ""
	case xansi.StringWidth(s) <= width:
		return s
	case width == 1:
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Cut(s, 0, width-1) + "…"
}

// wrapWords wraps plain text to maxW cells. The first line starts with
// firstPrefix and continuation lines with contPrefix. Words wider than a line
// are hard-cut.
func wrapWords(s string, maxW int, firstPrefix, contPrefix string) []string {
	if maxW <= 0 {
		return []string{""}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{firstPrefix}
	}
	firstAvail := max(maxW-xansi.StringWidth(firstPrefix), 1)
	contAvail := max(maxW-xansi.StringWidth(contPrefix), 1)

	lines := make([]string, 0, 4)
	prefix, avail := firstPrefix, firstAvail
	cur, curW := "", 0
	flush := func() {
		lines = append(lines, prefix+cur)
		prefix, avail = contPrefix, contAvail
		cur, curW = "", 0
	}
	place := func(w string) {
		for xansi.StringWidth(w) > avail {
			lines = append(lines, prefix+xansi.Cut(w, 0, avail))
			w = xansi.Cut(w, avail, xansi.StringWidth(w))
			prefix, avail = contPrefix, contAvail
		}
		cur, curW = w, xansi.StringWidth(w)
	}

	for _, w := range strings.Fields(s) {
		wordW := xansi.StringWidth(w)
		if cur == "" {
			place(w)
			continue
		}
		if curW+1+wordW <= avail {
			cur += " " + w
			curW += 1 + wordW
			continue
		}
		flush()
		place(w)
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, prefix+cur)
	}
	return lines
}

type token struct {
	s string
	w int
}

func newToken(s string) token { return token{s: s, w: xansi.StringWidth(s)} }

// wrapTokens packs styled tokens into lines of at most maxW cells.
func wrapTokens(tokens []token, maxW int) []string {
	if maxW <= 0 || len(tokens) == 0 {
		return nil
	}
	var (
		lines []string
		cur   []string
		used  int
	)
	for _, tok := range tokens {
		next := tok.w
		if used > 0 {
			next++
		}
		if used+next <= maxW {
			cur = append(cur, tok.s)
			used += next
			continue
		}
		if len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
			cur, used = nil, 0
		}
		if tok.w > maxW {
			lines = append(lines, xansi.Cut(tok.s, 0, maxW))
			continue
		}
		cur = append(cur, tok.s)
		used = tok.w
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return lines
}
