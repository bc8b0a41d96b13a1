package cli

import (
	"errors"
	"strings"

	"taskboard/internal/grouping"
	"taskboard/internal/store"

	"github.com/spf13/cobra"
)

func newGroupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List and reorder the groups of a dimension",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List groups in display order (\"No X\" last)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dim, err := app.dimension()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			groups, err := dim.ListGroups(cmd.Context(), st, scopeOf(app))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": groups,
				"meta": map[string]any{"dimension": dim.Kind(), "label": dim.Label()},
			})
		},
	}

	swapCmd := &cobra.Command{
		Use:   "swap <group-key> <group-key>",
		Short: "Swap the stored position of two groups",
		Example: strings.TrimSpace(`
taskboard groups swap st-todo st-doing
taskboard --dimension project groups swap prj-web prj-app
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openBoard(cmd.Context(), cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			groups, err := env.board.SwapGroups(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": groups,
				"meta": map[string]any{"dimension": env.dim.Kind()},
			})
		},
	}

	cmd.AddCommand(listCmd, swapCmd)
	return cmd
}

func newRebalanceCmd(app *App) *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "rebalance [group-key]",
		Short: "Re-space order keys in a group (or every group flagged as exhausted)",
		Example: strings.TrimSpace(`
# Work through groups flagged by moves
taskboard rebalance --pending

# Re-space one group of the current dimension
taskboard --dimension assignee rebalance mem-ann
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending == (len(args) == 1) {
				return writeErr(cmd, errors.New("pass exactly one of <group-key> or --pending"))
			}
			ctx := cmd.Context()
			env, err := openBoard(ctx, cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			type result struct {
				Dimension grouping.Kind `json:"dimension"`
				GroupKey  string        `json:"groupKey"`
				Rewritten int           `json:"rewritten"`
			}
			var reqs []store.RebalanceRequest
			if pending {
				reqs, err = env.st.PendingRebalances(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
			} else {
				reqs = []store.RebalanceRequest{{Dimension: env.dim.Kind(), GroupKey: args[0]}}
			}

			out := []result{}
			for _, req := range reqs {
				dim, groups, err := env.dimensionFor(ctx, string(req.Dimension))
				if err != nil {
					return writeErr(cmd, err)
				}
				env.board.SetDimension(dim, groups)
				n, err := env.board.RebalanceGroup(ctx, req.GroupKey)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := env.st.ClearRebalance(ctx, req.Dimension, req.GroupKey); err != nil {
					return writeErr(cmd, err)
				}
				out = append(out, result{Dimension: req.Dimension, GroupKey: req.GroupKey, Rewritten: n})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Rebalance every group recorded as needing it")
	return cmd
}
