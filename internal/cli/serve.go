package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskboard/internal/web"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP (JSON API)",
		Long: strings.TrimSpace(`
Serve the board over a local HTTP JSON API.

Routes:
  GET   /healthz
  GET   /board                 (read-only HTML)
  GET   /api/board?dimension=&hideEmpty=&dropTarget=&project=
  GET   /api/items/:id
  POST  /api/moves/preview
  POST  /api/moves
  PATCH /api/items/:id
  POST  /api/groups/swap
`),
		Example: strings.TrimSpace(`
taskboard serve --addr 127.0.0.1:3336

# Share the item cache with other processes
taskboard --redis-url redis://localhost:6379/0 serve
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listenAddr := strings.TrimSpace(addr)
			if !cmd.Flags().Changed("addr") && app.cfg != nil && app.cfg.Listen != "" {
				listenAddr = app.cfg.Listen
			}
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}

			env, err := openBoard(ctx, cmd, app, envOptions{live: true})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer env.Close()

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Use(middleware.Recover())
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{"*"},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
			web.Register(e, env.board, env.st, web.ServerConfig{Scope: env.scope, ReadOnly: readOnly}, log.WithField("component", "web"))

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"dbPath":    env.st.Path(),
					"dimension": env.dim.Kind(),
					"readOnly":  readOnly,
					"mirror":    env.mirror != nil,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": []string{"curl " + url + "api/board"},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "taskboard serving %s (db=%s)\n", url, env.st.Path())

			srv := &http.Server{Handler: e, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return writeErr(cmd, err)
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3336", "Bind address (host:port or :port)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Serve only the read routes")
	return cmd
}
