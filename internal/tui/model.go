package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/cache"
	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/reorder"
)

type Options struct {
	NoColor     bool
	ColumnWidth int
	HideEmpty   bool
	Scope       model.Scope
	// Members names assignees on cards. Optional.
	Members []model.Member
}

// Messages produced by commands.
type (
	persistedMsg struct {
		move reorder.Move
		item model.Item
		err  error
	}
	groupsLoadedMsg struct {
		dim    grouping.Dimension
		groups []model.Group
		err    error
	}
	groupsSwappedMsg struct {
		key string
		err error
	}
	rebalancedMsg struct {
		key string
		n   int
		err error
	}
	cacheChangedMsg struct{}
)

// Model is the interactive board.
type Model struct {
	ctx     context.Context
	board   *reorder.Orchestrator
	src     grouping.GroupSource
	opts    Options
	keys    keyMap
	help    help.Model
	changes chan struct{}

	view      grouping.View
	sel       selection
	drag      *reorder.Session
	hideEmpty bool
	names     map[string]string

	status string
	err    error
	// inflight counts persists and group writes not yet settled.
	inflight int

	width  int
	height int
}

// New builds the board model. The returned cancel func stops cache
// notifications and must be called once the program exits.
func New(ctx context.Context, board *reorder.Orchestrator, src grouping.GroupSource, opts Options) (Model, func()) {
	m := Model{
		ctx:       ctx,
		board:     board,
		src:       src,
		opts:      opts,
		keys:      defaultKeyMap(),
		help:      help.New(),
		changes:   make(chan struct{}, 1),
		hideEmpty: opts.HideEmpty,
		names:     map[string]string{},
		width:     80,
		height:    24,
	}
	for _, mem := range opts.Members {
		m.names[mem.ID] = mem.Name
	}
	changes := m.changes
	cancel := board.Cache().Subscribe(func(cache.Change) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.rebuild()
	return m, cancel
}

func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

// waitForChange turns cache notifications into messages, coalescing bursts.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return cacheChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) rebuild() {
	dim, _ := m.board.Dimension()
	opts := grouping.ViewOptions{HideEmpty: m.hideEmpty}
	if m.drag != nil {
		opts.DropTarget = m.drag.DropTargetKey(m.board.Cache().Items(), dim)
	}
	v := m.board.View(opts)
	if m.opts.Scope.ProjectID != "" {
		v = scoped(v, m.opts.Scope.ProjectID)
	}
	m.view = v
	m.sel = clampSelection(m.view, m.sel)
}

// scoped drops items outside one project, keeping every group.
func scoped(v grouping.View, projectID string) grouping.View {
	out := grouping.View{Dimension: v.Dimension, Buckets: make([]grouping.Bucket, 0, len(v.Buckets))}
	for _, b := range v.Buckets {
		nb := grouping.Bucket{Group: b.Group}
		for _, it := range b.Items {
			if it.ProjectID == projectID {
				nb.Items = append(nb.Items, it)
			}
		}
		out.Buckets = append(out.Buckets, nb)
	}
	return out
}

// hover points the drag at whatever the cursor is on: the item under it, or
// the column itself when the column is empty. The dragged item itself is no
// target.
func (m *Model) hover() {
	if m.drag == nil || len(m.view.Buckets) == 0 {
		return
	}
	it, ok := selectedItem(m.view, m.sel)
	switch {
	case !ok:
		t := reorder.OverGroup(m.view.Buckets[m.sel.Col].Group.Key)
		_ = m.drag.Over(&t)
	case it.ID == m.drag.ActiveID():
		_ = m.drag.Over(nil)
	default:
		t := reorder.OverItem(it.ID)
		_ = m.drag.Over(&t)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case cacheChangedMsg:
		m.rebuild()
		return m, m.waitForChange()

	case persistedMsg:
		m.inflight--
		if msg.err != nil {
			m.err = fmt.Errorf("move of %s rolled back: %w", msg.move.Patch.ID, msg.err)
		} else {
			m.err = nil
			m.status = fmt.Sprintf("moved %q to %s", msg.item.Title, msg.move.To.Name)
		}
		m.rebuild()
		return m, nil

	case groupsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.board.SetDimension(msg.dim, msg.groups)
		m.err = nil
		m.status = "grouped by " + strings.ToLower(msg.dim.Label())
		m.rebuild()
		return m, nil

	case groupsSwappedMsg:
		m.inflight--
		if msg.err != nil {
			m.err = fmt.Errorf("column move failed: %w", msg.err)
		} else {
			m.err = nil
		}
		m.rebuild()
		m.focusGroup(msg.key)
		return m, nil

	case rebalancedMsg:
		m.inflight--
		if msg.err != nil {
			m.err = fmt.Errorf("re-spacing failed: %w", msg.err)
		} else {
			m.err = nil
			m.status = fmt.Sprintf("re-spaced %d items", msg.n)
		}
		m.rebuild()
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) focusGroup(key string) {
	for i, b := range m.view.Buckets {
		if b.Group.Key == key {
			m.sel = clampSelection(m.view, selection{Col: i, Item: 0})
			return
		}
	}
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.drag != nil {
			m.board.Cancel(m.drag)
			m.drag = nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(0, -1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(0, 1)
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(1, 0)

	case key.Matches(msg, m.keys.Grab):
		if m.drag == nil {
			return m.pickUp()
		}
		return m.drop()

	case key.Matches(msg, m.keys.Cancel):
		if m.drag != nil {
			m.board.Cancel(m.drag)
			m.drag = nil
			m.status = "drag cancelled"
			m.rebuild()
		}

	case key.Matches(msg, m.keys.Dimension):
		if m.drag != nil {
			return m, nil
		}
		dim, _ := m.board.Dimension()
		return m, m.loadGroups(nextKind(dim.Kind()))

	case key.Matches(msg, m.keys.Reload):
		dim, _ := m.board.Dimension()
		return m, m.loadGroups(dim.Kind())

	case key.Matches(msg, m.keys.HideEmpty):
		m.hideEmpty = !m.hideEmpty
		m.rebuild()

	case key.Matches(msg, m.keys.SwapLeft):
		return m.swapColumn(-1)
	case key.Matches(msg, m.keys.SwapRight):
		return m.swapColumn(1)

	case key.Matches(msg, m.keys.Rebalance):
		if m.drag != nil || len(m.view.Buckets) == 0 {
			return m, nil
		}
		groupKey := m.view.Buckets[m.sel.Col].Group.Key
		m.inflight++
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			n, err := board.RebalanceGroup(ctx, groupKey)
			return rebalancedMsg{key: groupKey, n: n, err: err}
		}
	}
	return m, nil
}

func (m *Model) moveCursor(dCol, dItem int) {
	if len(m.view.Buckets) == 0 {
		return
	}
	sel := m.sel
	if dCol != 0 {
		sel.Col = min(max(sel.Col+dCol, 0), len(m.view.Buckets)-1)
		// Keep the row when changing columns.
		sel.ItemID = ""
	}
	if dItem != 0 {
		sel.Item += dItem
		sel.ItemID = ""
	}
	n := len(m.view.Buckets[sel.Col].Items)
	if n > 0 {
		sel.Item = min(max(sel.Item, 0), n-1)
		sel.ItemID = m.view.Buckets[sel.Col].Items[sel.Item].ID
	}
	m.sel = clampSelection(m.view, sel)
	if m.drag != nil {
		m.hover()
		m.rebuild()
	}
}

func (m Model) pickUp() (tea.Model, tea.Cmd) {
	it, ok := selectedItem(m.view, m.sel)
	if !ok {
		return m, nil
	}
	s, err := m.board.Begin(it.ID)
	if err != nil {
		m.err = err
		return m, nil
	}
	m.drag = s
	m.err = nil
	m.status = fmt.Sprintf("moving %q", it.Title)
	m.hover()
	m.rebuild()
	return m, nil
}

// drop applies the move to the cache at once and persists it off the UI
// goroutine.
func (m Model) drop() (tea.Model, tea.Cmd) {
	s := m.drag
	m.drag = nil
	pd, err := m.board.Drop(s)
	if err != nil {
		if errors.Is(err, reorder.ErrNoTarget) {
			m.status = "nothing to drop on"
		} else {
			m.err = err
		}
		m.rebuild()
		return m, nil
	}
	m.sel.ItemID = pd.Move.Patch.ID
	m.rebuild()
	if !pd.Applied() {
		_, _ = m.board.Settle(m.ctx, pd)
		m.status = "item already there"
		return m, nil
	}
	m.inflight++
	board, ctx := m.board, m.ctx
	return m, func() tea.Msg {
		it, err := board.Settle(ctx, pd)
		return persistedMsg{move: pd.Move, item: it, err: err}
	}
}

func (m Model) swapColumn(dir int) (tea.Model, tea.Cmd) {
	if m.drag != nil || len(m.view.Buckets) < 2 {
		return m, nil
	}
	i, j := m.sel.Col, m.sel.Col+dir
	if j < 0 || j >= len(m.view.Buckets) {
		return m, nil
	}
	a, b := m.view.Buckets[i].Group, m.view.Buckets[j].Group
	if a.Synthetic() || b.Synthetic() {
		m.status = "this column has a fixed position"
		return m, nil
	}
	m.inflight++
	board, ctx := m.board, m.ctx
	cmd := func() tea.Msg {
		_, err := board.SwapGroups(ctx, a.Key, b.Key)
		return groupsSwappedMsg{key: a.Key, err: err}
	}
	return m, cmd
}

func (m Model) loadGroups(kind grouping.Kind) tea.Cmd {
	src, ctx, scope := m.src, m.ctx, m.opts.Scope
	return func() tea.Msg {
		dim, err := grouping.Lookup(kind)
		if err != nil {
			return groupsLoadedMsg{err: err}
		}
		groups, err := dim.ListGroups(ctx, src, scope)
		return groupsLoadedMsg{dim: dim, groups: groups, err: err}
	}
}

func nextKind(k grouping.Kind) grouping.Kind {
	kinds := grouping.Kinds()
	for i, kk := range kinds {
		if kk == k {
			return kinds[(i+1)%len(kinds)]
		}
	}
	return kinds[0]
}

func (m Model) View() string {
	dim, _ := m.board.Dimension()
	title := lipgloss.NewStyle().Bold(true).Render("Board") + styleMuted().Render(" · grouped by "+strings.ToLower(dim.Label()))
	if m.hideEmpty {
		title += styleMuted().Render(" · empty groups hidden")
	}
	if m.inflight > 0 {
		title += styleMuted().Render(" · saving…")
	}

	var footer string
	switch {
	case m.err != nil:
		footer = lipgloss.NewStyle().Foreground(colorError).Render(m.err.Error())
	case m.status != "":
		footer = styleMuted().Render(m.status)
	}
	helpView := m.help.View(m.keys)

	bodyH := m.height - 2 - lipgloss.Height(helpView)
	names := func(id string) string {
		if n, ok := m.names[id]; ok {
			return n
		}
		return id
	}
	body := renderBoard(m.view, renderState{
		sel:      m.sel,
		activeID: m.drag.ActiveID(),
		hoverKey: m.hoverKey(),
		colWidth: m.opts.ColumnWidth,
		names:    names,
	}, m.width, max(bodyH, 3))

	return strings.Join([]string{normalizePane(title, m.width, 1), body, normalizePane(footer, m.width, 1), helpView}, "\n")
}

func (m Model) hoverKey() *string {
	if m.drag == nil {
		return nil
	}
	dim, _ := m.board.Dimension()
	return m.drag.DropTargetKey(m.board.Cache().Items(), dim)
}
