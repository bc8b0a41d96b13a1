package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/reorder"
)

// Backend is what the HTTP surface needs from the store beyond the
// orchestrator's own collaborators.
type Backend interface {
	grouping.GroupSource
	Catalog(ctx context.Context) (model.Catalog, error)
	Ping(ctx context.Context) error
}

type ServerConfig struct {
	// Scope is the default board scope when a request names no project.
	Scope    model.Scope
	ReadOnly bool
}

type server struct {
	cfg     ServerConfig
	board   *reorder.Orchestrator
	backend Backend
	log     *log.Entry
}

// Register wires the board API onto e.
func Register(e *echo.Echo, board *reorder.Orchestrator, backend Backend, cfg ServerConfig, logger *log.Entry) {
	if logger == nil {
		logger = log.WithField("component", "web")
	}
	s := &server{cfg: cfg, board: board, backend: backend, log: logger}

	e.GET("/healthz", s.healthz())
	e.GET("/board", s.boardPage())
	e.GET("/api/board", s.getBoard())
	e.GET("/api/items/:id", s.getItem())
	e.POST("/api/moves/preview", s.previewMove())
	if cfg.ReadOnly {
		return
	}
	e.POST("/api/moves", s.commitMove())
	e.PATCH("/api/items/:id", s.editItem())
	e.POST("/api/groups/swap", s.swapGroups())
}

func (s *server) healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.backend.Ping(c.Request().Context()); err != nil {
			return s.fail(c, mutate.TransientError{Op: "health check", Err: err})
		}
		return c.NoContent(http.StatusOK)
	}
}

type boardResponse struct {
	Dimension grouping.Kind `json:"dimension"`
	Buckets   []bucketJSON  `json:"buckets"`
	Count     int           `json:"count"`
	Groups    []model.Group `json:"groups"`
	Scope     model.Scope   `json:"scope"`
}

type bucketJSON struct {
	Group model.Group  `json:"group"`
	Items []model.Item `json:"items"`
}

// dimensionFor resolves the request's dimension and its groups. An empty
// name means the board's current dimension.
func (s *server) dimensionFor(ctx context.Context, name string, scope model.Scope) (grouping.Dimension, []model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		dim, groups := s.board.Dimension()
		if scope == s.cfg.Scope {
			return dim, groups, nil
		}
		name = string(dim.Kind())
	}
	kind, err := grouping.ParseKind(name)
	if err != nil {
		return nil, nil, mutate.ValidationError{Reason: "unknown dimension", Err: err}
	}
	dim := grouping.MustLookup(kind)
	groups, err := dim.ListGroups(ctx, s.backend, scope)
	if err != nil {
		return nil, nil, err
	}
	return dim, groups, nil
}

func (s *server) scopeOf(c echo.Context) model.Scope {
	scope := s.cfg.Scope
	if p, ok := c.QueryParams()["project"]; ok {
		scope.ProjectID = strings.TrimSpace(p[0])
	}
	return scope
}

// boardView builds the board a request asks for from the cache.
func (s *server) boardView(c echo.Context) (grouping.View, []model.Group, model.Scope, error) {
	ctx := c.Request().Context()
	scope := s.scopeOf(c)
	dim, groups, err := s.dimensionFor(ctx, c.QueryParam("dimension"), scope)
	if err != nil {
		return grouping.View{}, nil, scope, err
	}
	opts := grouping.ViewOptions{}
	if v := c.QueryParam("hideEmpty"); v != "" {
		hide, err := strconv.ParseBool(v)
		if err != nil {
			return grouping.View{}, nil, scope, mutate.ValidationError{Reason: "invalid hideEmpty", Err: err}
		}
		opts.HideEmpty = hide
	}
	if v, ok := c.QueryParams()["dropTarget"]; ok {
		key := v[0]
		opts.DropTarget = &key
	}

	items := s.board.Cache().Items()
	if scope.ProjectID != "" {
		items = inProject(items, scope.ProjectID)
	}
	return grouping.Board(items, dim, groups, opts), groups, scope, nil
}

func (s *server) getBoard() echo.HandlerFunc {
	return func(c echo.Context) error {
		view, groups, scope, err := s.boardView(c)
		if err != nil {
			return s.fail(c, err)
		}
		resp := boardResponse{Dimension: view.Dimension, Count: view.Count(), Groups: groups, Scope: scope}
		for _, b := range view.Buckets {
			resp.Buckets = append(resp.Buckets, bucketJSON{Group: b.Group, Items: b.Items})
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func inProject(items []model.Item, projectID string) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.ProjectID == projectID {
			out = append(out, it)
		}
	}
	return out
}

func (s *server) getItem() echo.HandlerFunc {
	return func(c echo.Context) error {
		it, ok := s.board.Cache().Get(c.Param("id"))
		if !ok {
			return s.fail(c, mutate.NotFoundError{Kind: "item", ID: c.Param("id")})
		}
		return c.JSON(http.StatusOK, it)
	}
}

type moveRequest struct {
	Dimension string `json:"dimension"`
	Project   string `json:"project"`
	ActiveID  string `json:"activeId"`

	// Exactly one of OverItem and OverGroup is set. OverGroup may be ""
	// for the "No X" bucket.
	OverItem  string  `json:"overItem"`
	OverGroup *string `json:"overGroup"`
}

func (r moveRequest) target() (reorder.Target, error) {
	switch {
	case r.OverItem != "" && r.OverGroup != nil:
		return reorder.Target{}, mutate.ValidationError{Reason: "overItem and overGroup are exclusive"}
	case r.OverItem != "":
		return reorder.OverItem(r.OverItem), nil
	case r.OverGroup != nil:
		return reorder.OverGroup(*r.OverGroup), nil
	}
	return reorder.Target{}, mutate.ValidationError{Reason: "no drop target"}
}

func (s *server) preview(c echo.Context) (reorder.Move, error) {
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return reorder.Move{}, mutate.ValidationError{Reason: "invalid request body", Err: err}
	}
	if strings.TrimSpace(req.ActiveID) == "" {
		return reorder.Move{}, mutate.ValidationError{Reason: "activeId is required"}
	}
	t, err := req.target()
	if err != nil {
		return reorder.Move{}, err
	}
	scope := s.cfg.Scope
	if req.Project != "" {
		scope.ProjectID = req.Project
	}
	dim, groups, err := s.dimensionFor(c.Request().Context(), req.Dimension, scope)
	if err != nil {
		return reorder.Move{}, err
	}
	return s.board.PreviewIn(dim, groups, req.ActiveID, t)
}

func (s *server) previewMove() echo.HandlerFunc {
	return func(c echo.Context) error {
		mv, err := s.preview(c)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, mv)
	}
}

type commitResponse struct {
	Move reorder.Move `json:"move"`
	Item model.Item   `json:"item"`
}

func (s *server) commitMove() echo.HandlerFunc {
	return func(c echo.Context) error {
		mv, err := s.preview(c)
		if err != nil {
			return s.fail(c, err)
		}
		it, err := s.board.CommitMove(c.Request().Context(), mv)
		if err != nil {
			return s.fail(c, err)
		}
		s.log.WithFields(log.Fields{"item": it.ID, "group": mv.To.Key, "dimension": mv.Dimension}).Info("move committed")
		return c.JSON(http.StatusOK, commitResponse{Move: mv, Item: it})
	}
}

func (s *server) editItem() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req mutate.Edit
		if err := c.Bind(&req); err != nil {
			return s.fail(c, mutate.ValidationError{Reason: "invalid request body", Err: err})
		}
		if req.Empty() {
			return s.fail(c, mutate.ValidationError{Reason: "no fields to edit"})
		}
		it, ok := s.board.Cache().Get(c.Param("id"))
		if !ok {
			return s.fail(c, mutate.NotFoundError{Kind: "item", ID: c.Param("id")})
		}
		cat, err := s.backend.Catalog(ctx)
		if err != nil {
			return s.fail(c, err)
		}
		res, err := mutate.ApplyEdit(it, req, cat, s.board.Now())
		if err != nil {
			return s.fail(c, err)
		}
		out, err := s.board.Edit(ctx, res)
		if err != nil {
			return s.fail(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

type swapRequest struct {
	Dimension string `json:"dimension"`
	A         string `json:"a"`
	B         string `json:"b"`
}

func (s *server) swapGroups() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		var req swapRequest
		if err := c.Bind(&req); err != nil {
			return s.fail(c, mutate.ValidationError{Reason: "invalid request body", Err: err})
		}
		dim, groups, err := s.dimensionFor(ctx, req.Dimension, s.cfg.Scope)
		if err != nil {
			return s.fail(c, err)
		}
		a, okA := findGroup(groups, req.A)
		b, okB := findGroup(groups, req.B)
		if !okA || !okB {
			missing := req.A
			if okA {
				missing = req.B
			}
			return s.fail(c, mutate.ValidationError{Reason: "unknown group", Err: mutate.NotFoundError{Kind: "group", ID: missing}})
		}
		if err := s.board.SwapOrdinals(ctx, dim.Kind(), a, b); err != nil {
			return s.fail(c, err)
		}
		fresh, err := dim.ListGroups(ctx, s.backend, s.cfg.Scope)
		if err != nil {
			return s.fail(c, err)
		}
		if cur, _ := s.board.Dimension(); cur.Kind() == dim.Kind() {
			s.board.SetDimension(dim, fresh)
		}
		return c.JSON(http.StatusOK, fresh)
	}
}

func findGroup(groups []model.Group, key string) (model.Group, bool) {
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return model.Group{}, false
}

// fail maps domain errors onto status codes.
func (s *server) fail(c echo.Context, err error) error {
	var nf mutate.NotFoundError
	status := http.StatusInternalServerError
	switch {
	case mutate.IsValidation(err):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case mutate.IsConflict(err):
		status = http.StatusConflict
	case mutate.IsTransient(err):
		status = http.StatusServiceUnavailable
	case errors.Is(err, reorder.ErrNoOrdinalWriter):
		status = http.StatusNotImplemented
	}
	entry := s.log.WithError(err).WithField("path", c.Path())
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
