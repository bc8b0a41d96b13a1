package cli

import (
	"errors"
	"strings"

	"taskboard/internal/publish"

	"github.com/spf13/cobra"
)

func newPublishCmd(app *App) *cobra.Command {
	var toDir string
	var overwrite bool
	var showOrder bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Export derived Markdown artifacts (not canonical)",
	}

	boardCmd := &cobra.Command{
		Use:   "board",
		Short: "Publish the board of the current dimension as <dimension>.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			toDir = strings.TrimSpace(toDir)
			if toDir == "" {
				return writeErr(cmd, errors.New("missing --to"))
			}
			ctx := cmd.Context()
			env, err := openBoard(ctx, cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			cat, err := env.st.Catalog(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteBoard(env.view(app.HideEmpty, nil), toDir, publish.WriteOptions{
				Render:    publish.RenderOptions{Catalog: &cat, ShowOrder: showOrder},
				Overwrite: overwrite,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": res,
				"_hints": []string{
					"git status",
					"git add -A",
					"git commit -m \"Publish: " + string(env.dim.Kind()) + " board\"",
				},
			})
		},
	}

	cmd.PersistentFlags().StringVar(&toDir, "to", "", "Output directory")
	cmd.PersistentFlags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files")
	cmd.PersistentFlags().BoolVar(&showOrder, "show-order", false, "Include order keys")
	cmd.AddCommand(boardCmd)
	return cmd
}
