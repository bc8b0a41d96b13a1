package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/reorder"
	"taskboard/internal/store"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// boardEnv is one command's view of the board: the SQLite store, the item
// cache loaded from it and the orchestrator driving moves.
type boardEnv struct {
	st     *store.Store
	cache  *cache.Store
	board  *reorder.Orchestrator
	dim    grouping.Dimension
	groups []model.Group
	scope  model.Scope
	mirror *cache.RedisMirror

	closers []func()
}

type envOptions struct {
	// live keeps the process running (serve, tui): the mirror is attached
	// before the initial load so the Redis hash is seeded, and remote
	// changes are applied until ctx is done.
	live bool
}

func (e *boardEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func openStore(ctx context.Context, app *App) (*store.Store, error) {
	return store.Open(ctx, app.DBPath)
}

func scopeOf(app *App) model.Scope {
	return model.Scope{ProjectID: strings.TrimSpace(app.ProjectID)}
}

func (app *App) dimension() (grouping.Dimension, error) {
	kind, err := grouping.ParseKind(app.Dimension)
	if err != nil {
		return nil, err
	}
	return grouping.Lookup(kind)
}

func (app *App) retry() reorder.RetryPolicy {
	p := reorder.DefaultRetry
	if app.cfg != nil && app.cfg.RetryAttempts > 0 {
		p.Attempts = app.cfg.RetryAttempts
	}
	if app.cfg != nil && app.cfg.RetryBackoffMs > 0 {
		p.Backoff = time.Duration(app.cfg.RetryBackoffMs) * time.Millisecond
	}
	return p
}

func openBoard(ctx context.Context, cmd *cobra.Command, app *App, opts envOptions) (*boardEnv, error) {
	dim, err := app.dimension()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, app)
	if err != nil {
		return nil, err
	}
	env := &boardEnv{
		st:    st,
		cache: cache.New(),
		dim:   dim,
		scope: scopeOf(app),
	}
	env.closers = append(env.closers, func() { _ = st.Close() })

	if app.RedisURL != "" {
		m, err := connectMirror(ctx, app.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis mirror unavailable; continuing without it")
		} else {
			env.mirror = m.mirror
			env.closers = append(env.closers, func() { _ = m.rc.Close() })
		}
	}
	if env.mirror != nil && opts.live {
		env.closers = append(env.closers, env.mirror.Attach(env.cache))
	}

	items, err := st.FetchAll(ctx, store.Filter{ProjectID: env.scope.ProjectID})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.cache.Refresh(items)

	if env.mirror != nil && !opts.live {
		env.closers = append(env.closers, env.mirror.Attach(env.cache))
	}
	if env.mirror != nil && opts.live {
		lctx, cancel := context.WithCancel(ctx)
		go func() {
			if err := env.mirror.Listen(lctx, env.cache, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("redis mirror listener stopped")
			}
		}()
		env.closers = append(env.closers, cancel)
	}

	env.groups, err = dim.ListGroups(ctx, st, env.scope)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.board = reorder.New(reorder.Config{
		Cache:       env.cache,
		Persister:   st,
		Items:       st,
		Ordinals:    st,
		Rebalance:   st,
		GroupSource: st,
		Scope:       env.scope,
		Dimension:   dim,
		Groups:      env.groups,
		Retry:       app.retry(),
		Log:         log.WithFields(log.Fields{"component": "reorder", "cmd": cmd.Name()}),
	})
	return env, nil
}

type redisConn struct {
	rc     *redis.Client
	mirror *cache.RedisMirror
}

func connectMirror(ctx context.Context, url string) (redisConn, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return redisConn{}, fmt.Errorf("parse redis url: %w", err)
	}
	rc := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		_ = rc.Close()
		return redisConn{}, fmt.Errorf("ping redis: %w", err)
	}
	return redisConn{rc: rc, mirror: cache.NewRedisMirror(rc, "", "")}, nil
}

// view builds the board from the cache, keeping the requested drop target
// visible when empty groups are hidden.
func (e *boardEnv) view(hideEmpty bool, dropTarget *string) grouping.View {
	return e.board.View(grouping.ViewOptions{HideEmpty: hideEmpty, DropTarget: dropTarget})
}

// dimensionFor resolves a dimension other than the env's current one,
// listing its groups in the env's scope.
func (e *boardEnv) dimensionFor(ctx context.Context, name string) (grouping.Dimension, []model.Group, error) {
	if strings.TrimSpace(name) == "" {
		return e.dim, e.groups, nil
	}
	kind, err := grouping.ParseKind(name)
	if err != nil {
		return nil, nil, err
	}
	dim, err := grouping.Lookup(kind)
	if err != nil {
		return nil, nil, err
	}
	if dim.Kind() == e.dim.Kind() {
		return e.dim, e.groups, nil
	}
	groups, err := dim.ListGroups(ctx, e.st, e.scope)
	if err != nil {
		return nil, nil, err
	}
	return dim, groups, nil
}
