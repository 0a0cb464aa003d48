// tree.go - windowed row view over a tree session
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/arbor/internal/datasource"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// RowSource is what the view needs from a session: a row count and random
// access by index. Row heights are uniform, so nothing else is required to
// lay out the window.
type RowSource interface {
	RowCount() int
	RowAt(i int) (tree.Row, bool)
}

// searchMarks decorates rows that matched the current search.
type searchMarks interface {
	IsSearchMatch(path model.Path) bool
	IsSearchFocus(path model.Path) bool
}

// TreeModel renders the visible rows of a session and tracks the cursor.
// Only rows inside the viewport are fetched and rendered.
type TreeModel struct {
	source         RowSource
	theme          Theme
	cursor         int // index into the visible rows
	viewportOffset int // index of the first rendered row
	width          int
	height         int
	showSubtitles  bool
	title          string
}

// NewTreeModel creates a view over source.
func NewTreeModel(source RowSource, theme Theme) TreeModel {
	return TreeModel{
		source:        source,
		theme:         theme,
		showSubtitles: true,
	}
}

// SetSize sets the available width and height (in rows, header included).
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// SetTitle sets the header text.
func (t *TreeModel) SetTitle(title string) {
	t.title = title
}

// SetShowSubtitles toggles subtitle rendering.
func (t *TreeModel) SetShowSubtitles(show bool) {
	t.showSubtitles = show
}

// ShowSubtitles reports whether subtitles are rendered.
func (t *TreeModel) ShowSubtitles() bool {
	return t.showSubtitles
}

// Cursor returns the selected row index.
func (t *TreeModel) Cursor() int {
	return t.cursor
}

// SelectedRow returns the row under the cursor.
func (t *TreeModel) SelectedRow() (tree.Row, bool) {
	return t.source.RowAt(t.cursor)
}

// MoveDown moves the cursor one row down.
func (t *TreeModel) MoveDown() {
	t.SetCursor(t.cursor + 1)
}

// MoveUp moves the cursor one row up.
func (t *TreeModel) MoveUp() {
	t.SetCursor(t.cursor - 1)
}

// PageDown moves the cursor down by half a viewport.
func (t *TreeModel) PageDown() {
	t.SetCursor(t.cursor + t.halfPage())
}

// PageUp moves the cursor up by half a viewport.
func (t *TreeModel) PageUp() {
	t.SetCursor(t.cursor - t.halfPage())
}

func (t *TreeModel) halfPage() int {
	n := t.effectiveVisibleCount() / 2
	if n < 1 {
		n = 5
	}
	return n
}

// JumpToTop selects the first row.
func (t *TreeModel) JumpToTop() {
	t.SetCursor(0)
}

// JumpToBottom selects the last row.
func (t *TreeModel) JumpToBottom() {
	t.SetCursor(t.source.RowCount() - 1)
}

// SetCursor selects row i, clamped to the visible rows, and scrolls it into
// view.
func (t *TreeModel) SetCursor(i int) {
	n := t.source.RowCount()
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	t.cursor = i
	t.ensureCursorVisible()
}

// Clamp keeps the cursor valid after the row count changed.
func (t *TreeModel) Clamp() {
	t.SetCursor(t.cursor)
}

// JumpToParent selects the parent of the selected row. The parent is the
// nearest row above with a shorter path.
func (t *TreeModel) JumpToParent() {
	row, ok := t.SelectedRow()
	if !ok || row.Parent == nil {
		return
	}
	want := len(row.Path) - 1
	for i := t.cursor - 1; i >= 0; i-- {
		r, ok := t.source.RowAt(i)
		if ok && len(r.Path) == want {
			t.SetCursor(i)
			return
		}
	}
}

// SelectPath moves the cursor to the row with the given path. Returns false
// if no visible row has it.
func (t *TreeModel) SelectPath(path model.Path) bool {
	n := t.source.RowCount()
	for i := 0; i < n; i++ {
		if r, ok := t.source.RowAt(i); ok && r.Path.Equal(path) {
			t.SetCursor(i)
			return true
		}
	}
	return false
}

// effectiveVisibleCount is the number of row lines, leaving room for the
// header and the position indicator.
func (t *TreeModel) effectiveVisibleCount() int {
	n := t.height - 1
	if t.source.RowCount() > n {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (t *TreeModel) ensureCursorVisible() {
	visible := t.effectiveVisibleCount()
	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	} else if t.cursor >= t.viewportOffset+visible {
		t.viewportOffset = t.cursor - visible + 1
	}
	if t.viewportOffset < 0 {
		t.viewportOffset = 0
	}
}

// visibleRange returns the [start, end) rows inside the viewport.
func (t *TreeModel) visibleRange() (start, end int) {
	total := t.source.RowCount()
	if total == 0 {
		return 0, 0
	}
	visible := t.effectiveVisibleCount()
	start = t.viewportOffset
	if start < 0 {
		start = 0
	}
	end = start + visible
	if end > total {
		end = total
		start = end - visible
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

// View renders the header, the rows inside the viewport and, when the rows
// do not fit, a position indicator.
func (t *TreeModel) View() string {
	defer metrics.Timer(metrics.UIRender)()

	total := t.source.RowCount()
	if total == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	sb.WriteString(t.RenderHeader())
	sb.WriteString("\n")

	marks, _ := t.source.(searchMarks)
	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		row, ok := t.source.RowAt(i)
		if !ok {
			break
		}
		sb.WriteString(t.renderRow(row, i == t.cursor, marks))
		sb.WriteString("\n")
	}

	if total > t.effectiveVisibleCount() && t.height > 0 {
		sb.WriteString(t.renderPositionIndicator(start, end, total))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderHeader returns the title bar.
func (t *TreeModel) RenderHeader() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	title := t.title
	if title == "" {
		title = "arbor"
	}
	return t.theme.Header.Width(width).Render(truncate(title, width-2))
}

func (t *TreeModel) renderPositionIndicator(start, end, total int) string {
	return t.theme.MutedText.Render(fmt.Sprintf(" %d-%d of %d", start+1, end, total))
}

func (t *TreeModel) renderEmptyState() string {
	var sb strings.Builder
	sb.WriteString(t.RenderHeader())
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("  Nothing to display."))
	return sb.String()
}

// renderRow renders one row: [branch prefix] [indicator] [title] [subtitle].
func (t *TreeModel) renderRow(row tree.Row, selected bool, marks searchMarks) string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	// Selected rows carry a one-cell left border; leave one more to avoid
	// wrapping on the terminal edge.
	avail := width - 2

	n := row.Node
	prefix := treePrefix(row.LowerSiblingCounts)
	indicator := expandIndicator(n)
	used := lipgloss.Width(prefix) + lipgloss.Width(indicator) + 1

	title := truncate(singleLine(n.Title), avail-used)
	titleStyle := t.theme.Base
	switch {
	case datasource.IsPlaceholder(n):
		titleStyle = t.theme.WarningText
	case marks != nil && marks.IsSearchFocus(row.Path):
		titleStyle = t.theme.FocusText
	case marks != nil && marks.IsSearchMatch(row.Path):
		titleStyle = t.theme.MatchText
	}
	used += lipgloss.Width(title)

	var sb strings.Builder
	sb.WriteString(t.theme.Prefix.Render(prefix))
	sb.WriteString(t.theme.Indicator.Render(indicator))
	sb.WriteString(" ")
	sb.WriteString(titleStyle.Render(title))

	if t.showSubtitles && n.Subtitle != "" && avail-used > 4 {
		sub := truncate(singleLine(n.Subtitle), avail-used-2)
		sb.WriteString("  ")
		sb.WriteString(t.theme.MutedText.Render(sub))
	}

	line := sb.String()
	if selected {
		return t.theme.Selected.Width(width - 1).MaxWidth(width).Render(line)
	}
	return " " + line
}
