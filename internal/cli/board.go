package cli

import (
	"fmt"
	"strings"

	"taskboard/internal/publish"
	"taskboard/internal/store"

	"github.com/spf13/cobra"
)

func newBoardCmd(app *App) *cobra.Command {
	var output string
	var render bool
	var style string
	var width int
	var showOrder bool
	var dropTarget string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board grouped along one dimension",
		Example: strings.TrimSpace(`
# JSON (default)
taskboard board --dimension priority

# Markdown, rendered for the terminal
taskboard board --output md --render
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openBoard(ctx, cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			var target *string
			if cmd.Flags().Changed("drop-target") {
				target = &dropTarget
			}
			v := env.view(app.HideEmpty, target)

			switch strings.ToLower(strings.TrimSpace(output)) {
			case "", "json":
				return writeOut(cmd, app, map[string]any{
					"data": v,
					"meta": map[string]any{
						"count": v.Count(),
						"scope": env.scope,
					},
				})
			case "md", "markdown":
				cat, err := env.st.Catalog(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				md := publish.RenderBoardMarkdown(v, publish.RenderOptions{Catalog: &cat, ShowOrder: showOrder})
				if render {
					md, err = publish.RenderTerminal(md, width, style)
					if err != nil {
						return writeErr(cmd, err)
					}
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			default:
				return writeErr(cmd, fmt.Errorf("unknown --output %q (json|md)", output))
			}
		},
	}
	cmd.Flags().StringVar(&output, "output", "json", "Board output (json|md)")
	cmd.Flags().BoolVar(&render, "render", false, "Render Markdown for the terminal (with --output md)")
	cmd.Flags().StringVar(&style, "style", "", "Glamour style for --render (dark|light|notty|...)")
	cmd.Flags().IntVar(&width, "width", 100, "Wrap width for --render")
	cmd.Flags().BoolVar(&showOrder, "show-order", false, "Include order keys in Markdown output")
	cmd.Flags().StringVar(&dropTarget, "drop-target", "", "Keep this group visible with --hide-empty (\"\" is the No-X group)")
	return cmd
}

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and inspect items",
	}

	var limit int
	var cursor string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List items (paged)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			page, err := st.FetchItems(cmd.Context(), store.Filter{
				ProjectID: strings.TrimSpace(app.ProjectID),
				Limit:     limit,
				Cursor:    cursor,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			var hints []string
			if page.Next != "" {
				hints = append(hints, "taskboard items list --cursor "+page.Next)
			}
			if app.Format == "jsonl" {
				return writeOut(cmd, app, page.Items)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   page.Items,
				"meta":   map[string]any{"next": page.Next},
				"_hints": hints,
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", store.DefaultPageSize, "Page size")
	listCmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a previous page's next cursor")

	showCmd := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			it, err := st.FetchItem(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": it})
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}
