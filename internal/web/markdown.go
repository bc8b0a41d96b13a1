package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"taskboard/internal/publish"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	// Raw HTML passthrough stays disabled: no html.WithUnsafe().
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML("")
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}

var pageTemplate = template.Must(template.New("board").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
h2 { border-bottom: 1px solid #e5e7eb; padding-bottom: .25rem; }
code { color: #6b7280; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// boardPage renders the requested board as a read-only HTML page.
func (s *server) boardPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		view, _, _, err := s.boardView(c)
		if err != nil {
			return s.fail(c, err)
		}
		cat, err := s.backend.Catalog(c.Request().Context())
		if err != nil {
			return s.fail(c, err)
		}
		md := publish.RenderBoardMarkdown(view, publish.RenderOptions{Catalog: &cat})

		var b bytes.Buffer
		err = pageTemplate.Execute(&b, map[string]any{
			"Title": "Board by " + string(view.Dimension),
			"Body":  renderMarkdownHTML(md),
		})
		if err != nil {
			return s.fail(c, err)
		}
		return c.HTMLBlob(http.StatusOK, b.Bytes())
	}
}
