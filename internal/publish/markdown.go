package publish

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
)

type RenderOptions struct {
	// Title overrides the "Board by <dimension>" heading.
	Title string
	// Catalog resolves member and status names on item lines. Optional.
	Catalog *model.Catalog
	// ShowOrder appends each item's order key.
	ShowOrder bool
}

// RenderBoardMarkdown renders a grouped view as a markdown document: one
// section per bucket, items in bucket order.
func RenderBoardMarkdown(v grouping.View, opt RenderOptions) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := strings.TrimSpace(opt.Title)
	if title == "" {
		title = "Board by " + string(v.Dimension)
	}
	writeLn("# " + title)
	writeLn("")
	writeLn(fmt.Sprintf("%d items in %d groups.", v.Count(), len(v.Buckets)))

	for _, b := range v.Buckets {
		writeLn("")
		name := strings.TrimSpace(b.Group.Name)
		if name == "" {
			name = b.Group.Key
		}
		writeLn(fmt.Sprintf("## %s (%d)", name, len(b.Items)))
		writeLn("")
		if len(b.Items) == 0 {
			writeLn("_No items._")
			continue
		}
		for _, it := range b.Items {
			writeLn(itemLine(it, v.Dimension, opt))
		}
	}
	return buf.String()
}

func itemLine(it model.Item, dim grouping.Kind, opt RenderOptions) string {
	title := strings.TrimSpace(it.Title)
	if title == "" {
		title = "(untitled)"
	}
	parts := []string{fmt.Sprintf("- **%s** `%s`", escape(title), it.ID)}

	// The grouping field is already the section heading.
	if dim != grouping.KindStatus && it.StatusID != "" {
		parts = append(parts, statusName(it.StatusID, opt.Catalog))
	}
	if dim != grouping.KindPriority && it.Priority != model.PriorityNone {
		parts = append(parts, string(it.Priority))
	}
	if dim != grouping.KindAssignee && it.AssigneeID != "" {
		parts = append(parts, "@"+memberName(it.AssigneeID, opt.Catalog))
	}
	if it.DueDate != nil {
		parts = append(parts, "due "+it.DueDate.UTC().Format("2006-01-02"))
	}
	if opt.ShowOrder {
		parts = append(parts, "order "+formatOrder(it.Order))
	}
	return strings.Join(parts, " · ")
}

func formatOrder(f float64) string {
	if math.IsNaN(f) {
		return "unset"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func statusName(id string, cat *model.Catalog) string {
	if cat != nil {
		if st, ok := cat.FindStatus(id); ok {
			return st.Name
		}
	}
	return id
}

func memberName(id string, cat *model.Catalog) string {
	if cat != nil {
		if m, ok := cat.FindMember(id); ok {
			return m.Name
		}
	}
	return id
}

var mdEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`)

func escape(s string) string { return mdEscaper.Replace(s) }

var (
	rendererMu sync.Mutex
	// Renderers are cached by style and wrap width; building one is not cheap.
	renderers = map[string]*glamour.TermRenderer{}
)

// RenderTerminal renders markdown for a terminal with a fixed glamour style
// ("dark", "light", "notty", ...). Auto style detection is avoided since it
// queries the terminal.
func RenderTerminal(md string, width int, style string) (string, error) {
	md = strings.TrimSpace(md)
	if md == "" {
		return "", nil
	}
	if width < 20 {
		width = 20
	}
	style = strings.TrimSpace(style)
	if style == "" {
		style = styles.DarkStyle
	}
	if _, ok := styles.DefaultStyles[style]; !ok {
		return "", fmt.Errorf("unknown markdown style: %s", style)
	}

	key := style + ":" + strconv.Itoa(width)
	rendererMu.Lock()
	r := renderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			rendererMu.Unlock()
			return "", err
		}
		renderers[key] = rr
		r = rr
	}
	rendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
