package cli

import (
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/mutate"
	"taskboard/internal/reorder"

	"github.com/spf13/cobra"
)

type targetFlags struct {
	overItem  string
	overGroup string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.overItem, "over-item", "", "Drop onto this item (takes its slot)")
	cmd.Flags().StringVar(&f.overGroup, "over-group", "", "Drop onto this group (\"\" is the No-X group)")
}

func (f *targetFlags) target(cmd *cobra.Command) (reorder.Target, error) {
	item := cmd.Flags().Changed("over-item")
	group := cmd.Flags().Changed("over-group")
	switch {
	case item && group:
		return reorder.Target{}, errors.New("--over-item and --over-group are exclusive")
	case item:
		return reorder.OverItem(strings.TrimSpace(f.overItem)), nil
	case group:
		return reorder.OverGroup(strings.TrimSpace(f.overGroup)), nil
	}
	return reorder.Target{}, errors.New("missing drop target (--over-item or --over-group)")
}

func newPreviewCmd(app *App) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "preview <item-id>",
		Short: "Compute a move without writing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.target(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			env, err := openBoard(cmd.Context(), cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			mv, err := env.board.PreviewMove(strings.TrimSpace(args[0]), t)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": mv, "_hints": moveHints(args[0], mv)})
		},
	}
	tf.register(cmd)
	return cmd
}

func newMoveCmd(app *App) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "move <item-id>",
		Short: "Move an item onto another item or group and persist it",
		Example: strings.TrimSpace(`
# Reorder within a column
taskboard move item-crash --over-item item-login

# Reassign by dropping on a group
taskboard --dimension assignee move item-docs --over-group mem-ben

# Drop into the "Unassigned" group
taskboard --dimension assignee move item-login --over-group ""
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.target(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			env, err := openBoard(cmd.Context(), cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			mv, err := env.board.PreviewMove(strings.TrimSpace(args[0]), t)
			if err != nil {
				return writeErr(cmd, err)
			}
			it, err := env.board.CommitMove(cmd.Context(), mv)
			if err != nil {
				return writeErr(cmd, err)
			}
			var hints []string
			if mv.NeedsRebalance {
				hints = append(hints, "taskboard rebalance --pending")
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"move": mv, "item": it},
				"_hints": hints,
			})
		},
	}
	tf.register(cmd)
	return cmd
}

func moveHints(id string, mv reorder.Move) []string {
	if mv.NeedsRebalance {
		return []string{"order keys are exhausted here; commit then run: taskboard rebalance --pending"}
	}
	return []string{"taskboard move " + id + " (same flags) to persist"}
}

func newSetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <item-id> <field>=<value>...",
		Short: "Edit an item's grouping fields directly",
		Long: strings.TrimSpace(`
Edit an item's grouping fields in one write.

Fields: status, priority (urgent|high|medium|low), assignee, project, milestone.
An empty value clears the field; clearing the project also clears the milestone.
`),
		Example: strings.TrimSpace(`
taskboard set item-docs priority=urgent assignee=mem-ann

# Clear the milestone
taskboard set item-login milestone=
`),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := parseEdit(args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx := cmd.Context()
			env, err := openBoard(ctx, cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			id := strings.TrimSpace(args[0])
			it, ok := env.cache.Get(id)
			if !ok {
				return writeErr(cmd, mutate.NotFoundError{Kind: "item", ID: id})
			}
			cat, err := env.st.Catalog(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := mutate.ApplyEdit(it, e, cat, env.board.Now())
			if err != nil {
				return writeErr(cmd, err)
			}
			out, err := env.board.Edit(ctx, res)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": out, "meta": map[string]any{"changed": res.Changed}})
		},
	}
	return cmd
}

func parseEdit(pairs []string) (mutate.Edit, error) {
	var e mutate.Edit
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return mutate.Edit{}, fmt.Errorf("expected <field>=<value>, got %q", kv)
		}
		v = strings.TrimSpace(v)
		var dst **string
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "status":
			dst = &e.Status
		case "priority":
			dst = &e.Priority
		case "assignee":
			dst = &e.Assignee
		case "project":
			dst = &e.Project
		case "milestone":
			dst = &e.Milestone
		default:
			return mutate.Edit{}, fmt.Errorf("unknown field %q (status|priority|assignee|project|milestone)", k)
		}
		if *dst != nil {
			return mutate.Edit{}, fmt.Errorf("field %q given twice", k)
		}
		*dst = &v
	}
	return e, nil
}
