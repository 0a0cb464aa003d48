package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/arbor/internal/datasource"
	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
	"github.com/vanderheijden86/arbor/pkg/watcher"
)

// FileChangedMsg is sent when the source file changes on disk
type FileChangedMsg struct{}

// applyMsg carries a resolved lazy load into the event loop.
type applyMsg struct {
	fn func()
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// dispatcher moves lazy continuations from loader goroutines onto the
// bubbletea event loop. Sends never block the caller; after Close they are
// dropped.
type dispatcher struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		ch:   make(chan func(), 64),
		done: make(chan struct{}),
	}
}

// Dispatch queues fn for the event loop.
func (d *dispatcher) Dispatch(fn func()) {
	select {
	case d.ch <- fn:
	case <-d.done:
	default:
		go func() {
			select {
			case d.ch <- fn:
			case <-d.done:
			}
		}()
	}
}

// Close stops delivery.
func (d *dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
}

// wait returns a command that delivers the next queued continuation.
func (d *dispatcher) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-d.ch:
			return applyMsg{fn: fn}
		case <-d.done:
			return nil
		}
	}
}

// sessionEvents collects session notifications between two updates.
// Callbacks run on the event loop goroutine, so no locking is needed.
type sessionEvents struct {
	changed  bool
	toggled  bool
	searched bool
}

// Options configures NewModel.
type Options struct {
	Source   *datasource.Loaded
	Config   config.Config
	Key      tree.KeyFunc
	Watcher  *watcher.Watcher // nil disables live reload
	StateDir string           // "" disables expand-state persistence
	Write    bool             // persist edits back to a file source
	Renderer *lipgloss.Renderer
}

// Model is the bubbletea model: a tree pane over a session, an optional
// detail pane, a search prompt and an edit modal.
type Model struct {
	source   *datasource.Loaded
	cfg      config.Config
	key      tree.KeyFunc
	watcher  *watcher.Watcher
	stateDir string
	write    bool

	session  *tree.Session
	dispatch *dispatcher
	events   *sessionEvents
	state    *TreeState

	theme  Theme
	tree   TreeModel
	detail DetailModel

	searchInput textinput.Model
	searching   bool

	showEditModal bool
	editModal     EditModal

	showDetails bool
	showHelp    bool
	splitRatio  float64
	width       int
	height      int

	statusMsg     string
	statusIsError bool
}

// NewModel builds the model and starts the session over the source roots.
func NewModel(opts Options) Model {
	r := opts.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	theme := DefaultTheme(r)
	cfg := opts.Config

	m := Model{
		source:      opts.Source,
		cfg:         cfg,
		key:         opts.Key,
		watcher:     opts.Watcher,
		stateDir:    opts.StateDir,
		write:       opts.Write,
		dispatch:    newDispatcher(),
		events:      &sessionEvents{},
		theme:       theme,
		showDetails: cfg.UI.DetailPane,
		splitRatio:  cfg.UI.SplitRatio,
		width:       80,
		height:      24,
	}
	if m.key == nil {
		m.key = tree.KeyFuncByName(cfg.Tree.Key)
	}
	if m.splitRatio <= 0 {
		m.splitRatio = 0.6
	}

	roots := opts.Source.Roots
	if cfg.UI.PersistState && m.stateDir != "" {
		m.state = LoadTreeState(m.stateDir)
		roots = m.state.Apply(m.stateKey(), roots, m.key)
	}

	var method tree.SearchMethod
	if !cfg.Tree.CaseSensitive {
		method = tree.FoldSearchMethod
	}
	events := m.events
	m.session = tree.NewSession(roots, tree.Options{
		Key:                       m.key,
		SearchMethod:              method,
		SearchFocusOffset:         tree.NoFocus,
		OnlyExpandSearchedNodes:   cfg.Tree.OnlyExpandSearched,
		LoadCollapsedLazyChildren: cfg.Tree.PreloadCollapsed,
		OnChange:                  func([]*model.Node) { events.changed = true },
		OnSearchFinish:            func([]tree.Match) { events.searched = true },
		OnVisibilityToggle:        func(tree.VisibilityChange) { events.toggled = true },
		Dispatch:                  m.dispatch.Dispatch,
	})

	m.tree = NewTreeModel(m.session, theme)
	m.tree.SetTitle(opts.Source.Title)
	m.tree.SetShowSubtitles(cfg.UI.ShowSubtitles)
	m.detail = NewDetailModel(theme)

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search"
	ti.CharLimit = 200
	m.searchInput = ti

	m.resize()
	return m
}

// Session exposes the underlying session.
func (m Model) Session() *tree.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.dispatch.wait()}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The edit modal sees every message type: huh drives field navigation
	// with its own messages.
	if m.showEditModal {
		var cmd tea.Cmd
		m.editModal, cmd = m.editModal.Update(msg)
		cmds = append(cmds, cmd)
		if m.editModal.IsCancelRequested() {
			m.showEditModal = false
		} else if m.editModal.IsSaveRequested() {
			m.showEditModal = false
			m.commitEdit()
		}
		if _, ok := msg.(applyMsg); !ok {
			m.afterSession()
			return m, tea.Batch(cmds...)
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case applyMsg:
		msg.fn()
		cmds = append(cmds, m.dispatch.wait())

	case FileChangedMsg:
		m.reload()
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}

	case tea.KeyMsg:
		if m.searching {
			cmds = append(cmds, m.handleSearchKey(msg))
			break
		}
		cmd, quit := m.handleKey(msg)
		if quit {
			m.shutdown()
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)
	}

	m.afterSession()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		return nil
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.session.SetSearchQuery("")
		m.session.SetSearchFocusOffset(tree.NoFocus)
		return nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if q := m.searchInput.Value(); q != m.session.SearchQuery() {
		m.session.SetSearchQuery(q)
		if q == "" {
			m.session.SetSearchFocusOffset(tree.NoFocus)
		} else {
			m.session.SetSearchFocusOffset(0)
		}
	}
	return cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.showHelp {
		m.showHelp = false
		return nil, false
	}
	m.statusMsg = ""
	m.statusIsError = false

	switch msg.String() {
	case "q", "ctrl+c":
		return nil, true
	case "?":
		m.showHelp = true
	case "j", "down":
		m.tree.MoveDown()
	case "k", "up":
		m.tree.MoveUp()
	case "ctrl+d", "pgdown":
		m.tree.PageDown()
	case "ctrl+u", "pgup":
		m.tree.PageUp()
	case "g", "home":
		m.tree.JumpToTop()
	case "G", "end":
		m.tree.JumpToBottom()
	case "enter", " ":
		if row, ok := m.tree.SelectedRow(); ok && row.Node.CanHaveChildren() {
			m.reportErr(m.session.ToggleExpanded(row.Path))
		}
	case "l", "right":
		m.expandOrMoveToChild()
	case "h", "left":
		m.collapseOrJumpToParent()
	case "E":
		m.session.SetExpandedForAll(true)
		m.events.toggled = true
	case "C":
		m.session.SetExpandedForAll(false)
		m.events.toggled = true
	case "/":
		m.searching = true
		m.searchInput.SetValue(m.session.SearchQuery())
		m.searchInput.CursorEnd()
		return m.searchInput.Focus(), false
	case "n":
		m.stepMatch(1)
	case "N":
		m.stepMatch(-1)
	case "tab":
		m.showDetails = !m.showDetails
		m.resize()
	case "J":
		m.detail.ScrollDown(3)
	case "K":
		m.detail.ScrollUp(3)
	case "s":
		m.tree.SetShowSubtitles(!m.tree.ShowSubtitles())
	case "y":
		m.copyPath()
	case "e":
		if row, ok := m.tree.SelectedRow(); ok && !datasource.IsPlaceholder(row.Node) {
			return m.openEditModal(NewEditModal(row.Node, row.Path)), false
		}
	case "a":
		if row, ok := m.tree.SelectedRow(); ok {
			return m.openEditModal(NewCreateModal(row.Path)), false
		}
	case "A":
		return m.openEditModal(NewCreateModal(nil)), false
	case "d":
		m.deleteSelected()
	}
	return nil, false
}

func (m *Model) expandOrMoveToChild() {
	row, ok := m.tree.SelectedRow()
	if !ok || !row.Node.CanHaveChildren() {
		return
	}
	if row.Node.Expanded {
		if row.Node.HasChildren() {
			m.tree.MoveDown()
		}
		return
	}
	m.reportErr(m.session.ToggleExpanded(row.Path))
}

func (m *Model) collapseOrJumpToParent() {
	row, ok := m.tree.SelectedRow()
	if !ok {
		return
	}
	if row.Node.CanHaveChildren() && row.Node.Expanded {
		m.reportErr(m.session.ToggleExpanded(row.Path))
		return
	}
	m.tree.JumpToParent()
}

// stepMatch moves the search focus by delta, wrapping around.
func (m *Model) stepMatch(delta int) {
	n := len(m.session.Matches())
	if n == 0 {
		m.setStatus("No matches", false)
		return
	}
	cur := m.session.SearchFocusOffset()
	if cur < 0 {
		// First step lands on the first match going forward, the last going back.
		cur = 0
		if delta > 0 {
			cur = -1
		}
	}
	next := ((cur+delta)%n + n) % n
	m.session.SetSearchFocusOffset(next)
	m.events.searched = true
}

func (m *Model) copyPath() {
	row, ok := m.tree.SelectedRow()
	if !ok {
		m.setStatus("❌ No node selected", true)
		return
	}
	text := row.Path.String()
	if row.Node.ID != "" && m.cfg.Tree.Key != "id" {
		text = row.Node.ID
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.setStatus(fmt.Sprintf("❌ Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("📋 Copied %s to clipboard", text), false)
}

func (m *Model) openEditModal(modal EditModal) tea.Cmd {
	modal.SetWidth(m.detailWidth())
	m.editModal = modal
	m.showEditModal = true
	return m.editModal.Init()
}

func (m *Model) commitEdit() {
	if m.editModal.IsCreateMode() {
		path, err := m.session.AddNodeUnderParent(m.editModal.Path(), m.editModal.NewNode(), tree.AddOptions{ExpandParent: true})
		if err != nil {
			m.reportErr(err)
			return
		}
		m.afterSession()
		m.tree.SelectPath(path)
		m.setStatus("Added node", false)
	} else {
		if err := m.session.ChangeNodeAtPath(m.editModal.Path(), m.editModal.Apply); err != nil {
			m.reportErr(err)
			return
		}
		m.setStatus("Updated node", false)
	}
	m.persistEdits()
}

func (m *Model) deleteSelected() {
	row, ok := m.tree.SelectedRow()
	if !ok {
		return
	}
	if err := m.session.RemoveNodeAtPath(row.Path); err != nil {
		m.reportErr(err)
		return
	}
	m.setStatus(fmt.Sprintf("Removed %q", truncate(row.Node.Title, 40)), false)
	m.persistEdits()
}

// persistEdits writes the tree back to the source when --write is set.
func (m *Model) persistEdits() {
	if !m.write {
		return
	}
	if err := m.source.Save(m.session.Tree()); err != nil {
		m.setStatus(fmt.Sprintf("Save failed: %v", err), true)
		return
	}
	if m.watcher != nil {
		m.watcher.Sync()
	}
}

// reload re-reads the source after a change on disk, keeping the expand
// state of nodes that still exist.
func (m *Model) reload() {
	src, err := datasource.Detect(m.source.Source.Path)
	if err != nil {
		m.setStatus(fmt.Sprintf("Reload error: %v", err), true)
		return
	}
	loaded, err := datasource.OpenSource(context.Background(), src, datasource.OpenOptions{})
	if err != nil {
		m.setStatus(fmt.Sprintf("Reload error: %v", err), true)
		return
	}

	current := m.session.Tree()
	carried := DefaultTreeState()
	carried.Record("", current, m.key)
	roots := carried.Apply("", loaded.Roots, m.key)
	diff := datasource.DiffTrees(current, roots)

	selected, hadSelection := m.tree.SelectedRow()
	old := m.source
	m.source = loaded
	m.session.SetTree(roots)
	m.tree.Clamp()
	if err := old.Close(); err != nil {
		debug.Log("closing previous source: %v", err)
	}
	m.afterSession()
	if hadSelection {
		m.tree.SelectPath(selected.Path)
	}
	m.setStatus("Reloaded: "+diff.Summary(), false)
}

// afterSession reacts to the notifications collected since the last call.
func (m *Model) afterSession() {
	ev := m.events
	if ev.changed || ev.toggled || ev.searched {
		m.tree.Clamp()
	}
	if ev.searched {
		if idx, ok := m.session.SearchFocusTreeIndex(); ok {
			m.tree.SetCursor(idx)
		}
	}
	if ev.toggled {
		m.saveState()
	}
	ev.changed, ev.toggled, ev.searched = false, false, false

	if m.showDetails {
		if row, ok := m.tree.SelectedRow(); ok {
			m.detail.SetRow(row)
		} else {
			m.detail.Clear()
		}
	}
}

// saveState persists expand state. Errors are logged but do not interrupt
// the user.
func (m *Model) saveState() {
	if m.state == nil {
		return
	}
	m.state.Record(m.stateKey(), m.session.Tree(), m.key)
	if err := m.state.Save(m.stateDir); err != nil {
		log.Printf("warning: failed to write tree state: %v", err)
	}
}

func (m Model) stateKey() string {
	return m.source.Source.Path + "#" + keyName(m.cfg.Tree.Key)
}

func keyName(k string) string {
	if k == "" {
		return "index"
	}
	return k
}

func (m *Model) shutdown() {
	m.saveState()
	m.dispatch.Close()
}

func (m *Model) reportErr(err error) {
	if err != nil {
		m.setStatus(err.Error(), true)
	}
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
}

// --- layout ----------------------------------------------------------------

func (m Model) bodyHeight() int {
	h := m.height - 1 // footer
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) treeWidth() int {
	if !m.showDetails && !m.showEditModal {
		return m.width
	}
	w := int(float64(m.width) * m.splitRatio)
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) detailWidth() int {
	w := m.width - m.treeWidth() - 2
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) resize() {
	m.tree.SetSize(m.treeWidth(), m.bodyHeight())
	m.detail.SetSize(m.detailWidth(), m.bodyHeight()-2)
	m.searchInput.Width = m.width - 4
}

func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	left := m.tree.View()
	body := left
	switch {
	case m.showEditModal:
		panel := PanelStyle(m.theme, true).Width(m.detailWidth()).Height(m.bodyHeight() - 2)
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, panel.Render(m.editModal.View()))
	case m.showDetails:
		panel := PanelStyle(m.theme, false).Width(m.detailWidth()).Height(m.bodyHeight() - 2)
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, panel.Render(m.detail.View()))
	}

	body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body)
	return body + "\n" + m.renderFooter()
}

// PanelStyle is the bordered style of the right-hand pane.
func PanelStyle(theme Theme, focused bool) lipgloss.Style {
	border := theme.Border
	if focused {
		border = theme.Primary
	}
	return theme.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}

func (m Model) renderFooter() string {
	if m.searching {
		return m.searchInput.View()
	}

	var parts []string
	if q := m.session.SearchQuery(); q != "" {
		n := len(m.session.Matches())
		focus := m.session.SearchFocusOffset()
		if n > 0 && focus >= 0 {
			parts = append(parts, fmt.Sprintf("/%s %d/%d", q, focus+1, n))
		} else {
			parts = append(parts, fmt.Sprintf("/%s %d matches", q, n))
		}
	}
	if m.statusMsg != "" {
		style := m.theme.MutedText
		if m.statusIsError {
			style = m.theme.WarningText
		}
		parts = append(parts, style.Render(m.statusMsg))
	} else {
		parts = append(parts, m.theme.MutedText.Render("? help  / search  enter toggle  tab details  q quit"))
	}
	return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).Render(strings.Join(parts, "  │  "))
}

var helpLines = [][2]string{
	{"j/k ↑/↓", "move"},
	{"ctrl+d/ctrl+u", "half page down/up"},
	{"g/G", "top/bottom"},
	{"enter/space", "toggle expand"},
	{"l/h →/←", "expand or child / collapse or parent"},
	{"E/C", "expand/collapse all"},
	{"/", "search (esc clears)"},
	{"n/N", "next/previous match"},
	{"tab", "toggle detail pane"},
	{"J/K", "scroll detail pane"},
	{"s", "toggle subtitles"},
	{"y", "copy id or path"},
	{"e", "edit node"},
	{"a/A", "add child / add root"},
	{"d", "delete node"},
	{"q", "quit"},
}

func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.Header.Render("Keys"))
	sb.WriteString("\n\n")
	for _, l := range helpLines {
		sb.WriteString("  ")
		sb.WriteString(m.theme.MatchText.Render(padRight(l[0], 16)))
		sb.WriteString(l[1])
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.theme.MutedText.Render("  press any key to close"))
	return sb.String()
}
