package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"taskboard/internal/format"
	"taskboard/internal/store"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type App struct {
	DBPath     string
	Dimension  string
	ProjectID  string
	HideEmpty  bool
	RedisURL   string
	LogLevel   string
	PrettyJSON bool
	Format     string

	cfg *store.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Task board ordering and grouping (CLI + TUI + HTTP)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive board
  taskboard

  # Create a database with sample data
  taskboard init --seed

  # Show the board grouped by assignee
  taskboard board --dimension assignee

  # Drop item-crash above item-login
  taskboard move item-crash --over-item item-login
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app, tuiFlags{})
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.DBPath, "db", envOr("TASKBOARD_DB", ""), "Path to the SQLite database (default: ~/.taskboard/taskboard.sqlite)")
	cmd.PersistentFlags().StringVar(&app.Dimension, "dimension", envOr("TASKBOARD_DIMENSION", ""), "Grouping dimension (status|assignee|priority|project|milestone|none)")
	cmd.PersistentFlags().StringVar(&app.ProjectID, "project", envOr("TASKBOARD_PROJECT", ""), "Scope the board to one project id")
	cmd.PersistentFlags().BoolVar(&app.HideEmpty, "hide-empty", envBool("TASKBOARD_HIDE_EMPTY"), "Hide groups without items")
	cmd.PersistentFlags().StringVar(&app.RedisURL, "redis-url", envOr("TASKBOARD_REDIS_URL", ""), "Mirror the item cache through Redis (redis://host:port/db)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("TASKBOARD_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TASKBOARD_FORMAT", "json"), "Output format (json|jsonl)")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newPreviewCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newSetCmd(app))
	cmd.AddCommand(newGroupsCmd(app))
	cmd.AddCommand(newRebalanceCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// setup merges ~/.taskboard/config.json under the flags and configures
// logging. Precedence: flag, then TASKBOARD_* env, then config, then default.
func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, fmt.Errorf("load config: %w", err))
	}
	app.cfg = cfg

	if strings.TrimSpace(app.DBPath) == "" {
		app.DBPath = cfg.DBPath
	}
	if strings.TrimSpace(app.DBPath) == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return writeErr(cmd, err)
		}
		app.DBPath = p
	}
	if app.Dimension == "" {
		app.Dimension = cfg.Dimension
	}
	if app.ProjectID == "" {
		app.ProjectID = cfg.ProjectID
	}
	if !cmd.Flags().Changed("hide-empty") && os.Getenv("TASKBOARD_HIDE_EMPTY") == "" {
		app.HideEmpty = cfg.HideEmpty
	}
	if app.RedisURL == "" {
		app.RedisURL = cfg.RedisURL
	}
	if app.LogLevel == "" {
		app.LogLevel = cfg.LogLevel
	}
	return configureLogging(cmd, app.LogLevel)
}

// configureLogging sends logs to stderr so stdout stays machine-readable.
// DEBUG=1 forces debug level.
func configureLogging(cmd *cobra.Command, level string) error {
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	lvl := log.WarnLevel
	if s := strings.TrimSpace(level); s != "" {
		parsed, err := log.ParseLevel(s)
		if err != nil {
			return writeErr(cmd, fmt.Errorf("invalid --log-level: %w", err))
		}
		lvl = parsed
	}
	if debug, _ := strconv.ParseBool(os.Getenv("DEBUG")); debug {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
	return nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string) bool {
	b, _ := strconv.ParseBool(os.Getenv(k))
	return b
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
