package cli

import (
	"os"
	"os/signal"
	"syscall"

	"taskboard/internal/tui"

	"github.com/spf13/cobra"
)

type tuiFlags struct {
	noColor     bool
	columnWidth int
}

func newTUICmd(app *App) *cobra.Command {
	var f tuiFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive board (drag with space, arrows and esc)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app, f)
		},
	}
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colors")
	cmd.Flags().IntVar(&f.columnWidth, "column-width", 0, "Fixed column width in cells (0 fits the screen)")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, f tuiFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	if app.cfg != nil && app.cfg.TUI != nil {
		f.noColor = f.noColor || app.cfg.TUI.NoColor
		if f.columnWidth <= 0 {
			f.columnWidth = app.cfg.TUI.ColumnWidth
		}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		f.noColor = true
	}

	env, err := openBoard(ctx, cmd, app, envOptions{live: true})
	if err != nil {
		return writeErr(cmd, err)
	}
	defer env.Close()

	members, err := env.st.Members(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	return tui.Run(ctx, env.board, env.st, tui.Options{
		NoColor:     f.noColor,
		ColumnWidth: f.columnWidth,
		HideEmpty:   app.HideEmpty,
		Scope:       env.scope,
		Members:     members,
	})
}
