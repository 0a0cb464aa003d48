package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/arbor/internal/datasource"
	"github.com/vanderheijden86/arbor/pkg/config"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/testutil"
)

func memSource(roots []*model.Node) *datasource.Loaded {
	return &datasource.Loaded{
		Source: datasource.DataSource{Type: datasource.SourceTypeJSON, Path: "mem.json"},
		Title:  "test",
		Roots:  roots,
	}
}

func newTestModel(t *testing.T, src *datasource.Loaded, mutate func(*Options)) Model {
	t.Helper()
	opts := Options{
		Source:   src,
		Config:   config.DefaultConfig(),
		Renderer: lipgloss.NewRenderer(nil),
	}
	if mutate != nil {
		mutate(&opts)
	}
	m := NewModel(opts)
	t.Cleanup(m.dispatch.Close)
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		updated, _ := m.Update(keyMsg(k))
		m = updated.(Model)
	}
	return m
}

func selectedTitle(m Model) string {
	row, ok := m.tree.SelectedRow()
	if !ok {
		return ""
	}
	return row.Node.Title
}

func TestModelToggleAndNavigate(t *testing.T) {
	roots := []*model.Node{
		testutil.Branch("a", false, testutil.Leaf("b"), testutil.Leaf("c")),
		testutil.Leaf("d"),
	}
	m := newTestModel(t, memSource(roots), nil)

	if m.session.RowCount() != 2 {
		t.Fatalf("expected 2 rows, got %d", m.session.RowCount())
	}
	m = press(t, m, "enter")
	if m.session.RowCount() != 4 {
		t.Fatalf("expected 4 rows after expand, got %d", m.session.RowCount())
	}
	m = press(t, m, "j")
	if selectedTitle(m) != "b" {
		t.Errorf("expected b, got %s", selectedTitle(m))
	}
	m = press(t, m, "h")
	if selectedTitle(m) != "a" {
		t.Errorf("expected jump to parent a, got %s", selectedTitle(m))
	}
	m = press(t, m, "h")
	if m.session.RowCount() != 2 {
		t.Errorf("expected collapse, got %d rows", m.session.RowCount())
	}
	m = press(t, m, "l")
	if m.session.RowCount() != 4 || selectedTitle(m) != "a" {
		t.Errorf("expected expand in place, got %d rows at %s", m.session.RowCount(), selectedTitle(m))
	}
	m = press(t, m, "l")
	if selectedTitle(m) != "b" {
		t.Errorf("expected move to first child, got %s", selectedTitle(m))
	}
	m = press(t, m, "G")
	if selectedTitle(m) != "d" {
		t.Errorf("expected last row, got %s", selectedTitle(m))
	}
	m = press(t, m, "C")
	if m.session.RowCount() != 2 || selectedTitle(m) != "d" {
		t.Errorf("expected collapse all with cursor clamped, got %d rows at %s", m.session.RowCount(), selectedTitle(m))
	}
}

func TestModelSearchFlow(t *testing.T) {
	roots := []*model.Node{
		testutil.Branch("fruits", false, testutil.Leaf("Banana"), testutil.Leaf("mango")),
		testutil.Leaf("bandana"),
	}
	m := newTestModel(t, memSource(roots), nil)

	m = press(t, m, "/", "a", "n")
	if !m.searching {
		t.Fatal("expected search prompt to be active")
	}
	if got := len(m.session.Matches()); got != 3 {
		t.Fatalf("expected 3 case-insensitive matches, got %d", got)
	}
	if selectedTitle(m) != "Banana" {
		t.Errorf("expected cursor on first match, got %s", selectedTitle(m))
	}

	m = press(t, m, "enter")
	if m.searching {
		t.Error("expected enter to close the prompt")
	}
	if out := stripANSI(m.View()); !strings.Contains(out, "/an 1/3") {
		t.Errorf("expected match counter in footer, got:\n%s", out)
	}

	m = press(t, m, "n")
	if selectedTitle(m) != "mango" {
		t.Errorf("expected mango, got %s", selectedTitle(m))
	}
	m = press(t, m, "N", "N")
	if selectedTitle(m) != "bandana" {
		t.Errorf("expected wrap to last match, got %s", selectedTitle(m))
	}

	m = press(t, m, "/", "esc")
	if m.session.SearchQuery() != "" || len(m.session.Matches()) != 0 {
		t.Errorf("expected search cleared, got %q with %d matches", m.session.SearchQuery(), len(m.session.Matches()))
	}
	m = press(t, m, "n")
	if m.statusMsg != "No matches" {
		t.Errorf("expected no-match status, got %q", m.statusMsg)
	}
}

func TestModelLazyLoadThroughEventLoop(t *testing.T) {
	roots := []*model.Node{
		{ID: "lazy", Title: "lazy", Load: testutil.ImmediateLoader([]*model.Node{testutil.Leaf("child")})},
	}
	m := newTestModel(t, memSource(roots), nil)

	m = press(t, m, "enter")
	if m.session.RowCount() != 1 {
		t.Fatalf("expected children to wait for the event loop, got %d rows", m.session.RowCount())
	}
	if out := stripANSI(m.View()); !strings.Contains(out, "◌ lazy") {
		t.Errorf("expected loading indicator, got:\n%s", out)
	}

	msg := m.dispatch.wait()()
	if _, ok := msg.(applyMsg); !ok {
		t.Fatalf("expected applyMsg, got %T", msg)
	}
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if cmd == nil {
		t.Error("expected the model to keep waiting for continuations")
	}
	if m.session.RowCount() != 2 {
		t.Errorf("expected loaded child to be visible, got %d rows", m.session.RowCount())
	}
}

func TestModelEditAndCreate(t *testing.T) {
	roots := []*model.Node{testutil.Branch("a", false, testutil.Leaf("b"))}
	m := newTestModel(t, memSource(roots), nil)

	edit := NewEditModal(roots[0], model.Path{"0"})
	edit.values.Title = "  renamed "
	edit.values.Subtitle = "sub"
	m.editModal = edit
	m.commitEdit()
	if got := m.session.Tree()[0]; got.Title != "renamed" || got.Subtitle != "sub" {
		t.Errorf("expected edited node, got %q/%q", got.Title, got.Subtitle)
	}

	create := NewCreateModal(model.Path{"0"})
	create.values.Title = "new"
	m.editModal = create
	m.commitEdit()
	root := m.session.Tree()[0]
	if !root.Expanded || len(root.Children) != 2 || root.Children[1].Title != "new" {
		t.Fatalf("expected new child appended to an expanded parent, got %+v", root)
	}
	if selectedTitle(m) != "new" {
		t.Errorf("expected new node selected, got %s", selectedTitle(m))
	}
	if m.statusMsg != "Added node" {
		t.Errorf("expected status, got %q", m.statusMsg)
	}
}

func TestModelEscClosesEditModal(t *testing.T) {
	m := newTestModel(t, memSource([]*model.Node{testutil.Leaf("a")}), nil)
	m = press(t, m, "e")
	if !m.showEditModal {
		t.Fatal("expected edit modal to open")
	}
	m = press(t, m, "esc")
	if m.showEditModal {
		t.Error("expected esc to close the modal")
	}
	if m.session.Tree()[0].Title != "a" {
		t.Error("expected tree untouched after cancel")
	}
}

func TestModelDeleteWritesBack(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTreeFile(t, dir, "tree.json", []*model.Node{
		testutil.Leaf("first"),
		testutil.Leaf("second"),
	})
	src, err := datasource.Open(context.Background(), path, datasource.OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	m := newTestModel(t, src, func(o *Options) { o.Write = true })

	m = press(t, m, "d")
	if !strings.HasPrefix(m.statusMsg, "Removed") {
		t.Errorf("expected removal status, got %q", m.statusMsg)
	}

	reopened, err := datasource.Open(context.Background(), path, datasource.OpenOptions{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	testutil.AssertTitles(t, reopened.Roots, "second")
}

func TestModelDeleteWithoutWriteLeavesFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTreeFile(t, dir, "tree.json", []*model.Node{testutil.Leaf("only")})
	before, _ := os.ReadFile(path)
	src, err := datasource.Open(context.Background(), path, datasource.OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	m := newTestModel(t, src, nil)
	m = press(t, m, "d")
	if m.session.RowCount() != 0 {
		t.Errorf("expected empty tree, got %d rows", m.session.RowCount())
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("expected file untouched without write mode")
	}
}

func TestModelReloadKeepsExpandState(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTreeFile(t, dir, "tree.json", []*model.Node{
		testutil.Branch("a", false, testutil.Leaf("b")),
	})
	src, err := datasource.Open(context.Background(), path, datasource.OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	m := newTestModel(t, src, nil)
	m = press(t, m, "enter")

	testutil.WriteTreeFile(t, dir, "tree.json", []*model.Node{
		testutil.Branch("a", false, testutil.Leaf("b"), testutil.Leaf("c")),
	})
	updated, _ := m.Update(FileChangedMsg{})
	m = updated.(Model)

	if m.session.RowCount() != 3 {
		t.Errorf("expected expanded a with 2 children, got %d rows", m.session.RowCount())
	}
	if !strings.HasPrefix(m.statusMsg, "Reloaded: +1") {
		t.Errorf("expected reload summary, got %q", m.statusMsg)
	}
	if selectedTitle(m) != "a" {
		t.Errorf("expected selection kept, got %s", selectedTitle(m))
	}
}

func TestModelPersistsExpandState(t *testing.T) {
	stateDir := t.TempDir()
	newRoots := func() []*model.Node {
		return []*model.Node{testutil.Branch("a", false, testutil.Leaf("b"))}
	}
	withState := func(o *Options) { o.StateDir = stateDir }

	m := newTestModel(t, memSource(newRoots()), withState)
	m = press(t, m, "enter")
	if _, err := os.Stat(filepath.Join(stateDir, treeStateFileName)); err != nil {
		t.Fatalf("expected state file after toggle: %v", err)
	}

	again := newTestModel(t, memSource(newRoots()), withState)
	if again.session.RowCount() != 2 {
		t.Errorf("expected restored expansion, got %d rows", again.session.RowCount())
	}

	cfg := config.DefaultConfig()
	cfg.UI.PersistState = false
	off := newTestModel(t, memSource(newRoots()), func(o *Options) {
		o.StateDir = stateDir
		o.Config = cfg
	})
	if off.session.RowCount() != 1 {
		t.Errorf("expected state ignored when persistence is off, got %d rows", off.session.RowCount())
	}
}

func TestModelDetailPane(t *testing.T) {
	roots := []*model.Node{{ID: "n1", Title: "note", Payload: "body text"}}
	m := newTestModel(t, memSource(roots), nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = updated.(Model)

	m = press(t, m, "tab")
	if !m.showDetails {
		t.Fatal("expected detail pane")
	}
	if m.detail.node != roots[0] {
		t.Error("expected selected node rendered in detail pane")
	}
	if out := stripANSI(m.View()); !strings.Contains(out, "body text") {
		t.Errorf("expected payload in view, got:\n%s", out)
	}
}

func TestModelHelpAndQuit(t *testing.T) {
	m := newTestModel(t, memSource([]*model.Node{testutil.Leaf("a")}), nil)

	m = press(t, m, "?")
	if out := stripANSI(m.View()); !strings.Contains(out, "Keys") {
		t.Errorf("expected help screen, got:\n%s", out)
	}
	m = press(t, m, "j")
	if m.showHelp {
		t.Error("expected any key to close help")
	}

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	select {
	case <-m.dispatch.done:
	default:
		t.Error("expected dispatcher closed on quit")
	}
}

func TestDispatcherOverflowAndClose(t *testing.T) {
	d := newDispatcher()
	count := 0
	for i := 0; i < 70; i++ {
		d.Dispatch(func() { count++ })
	}
	for i := 0; i < 70; i++ {
		msg := d.wait()()
		am, ok := msg.(applyMsg)
		if !ok {
			t.Fatalf("expected applyMsg %d, got %T", i, msg)
		}
		am.fn()
	}
	if count != 70 {
		t.Errorf("expected 70 continuations, got %d", count)
	}

	d.Close()
	d.Close()
	if msg := d.wait()(); msg != nil {
		t.Errorf("expected nil after close, got %T", msg)
	}
}
