package cli

import (
	"strings"

	"taskboard/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create (or migrate) the board database",
		Example: strings.TrimSpace(`
# Create ~/.taskboard/taskboard.sqlite with sample data
taskboard init --seed

# Use a project-local database
taskboard --db ./board.sqlite init
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			seeded := false
			if seed {
				empty, err := st.Empty(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				if empty {
					if err := st.Seed(ctx); err != nil {
						return writeErr(cmd, err)
					}
					seeded = true
				}
			}

			// Remember the database when none is configured yet.
			configPath := ""
			if app.cfg != nil && app.cfg.DBPath == "" {
				app.cfg.DBPath = st.Path()
				if err := store.SaveConfig(app.cfg); err != nil {
					return writeErr(cmd, err)
				}
				configPath, _ = store.ConfigPath()
			}

			hints := []string{"taskboard board", "taskboard"}
			if seed && !seeded {
				hints = append([]string{"database already has data; --seed skipped"}, hints...)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dbPath":      st.Path(),
					"seeded":      seeded,
					"savedConfig": configPath,
				},
				"_hints": hints,
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Load sample statuses, members, projects and items into an empty database")
	return cmd
}
