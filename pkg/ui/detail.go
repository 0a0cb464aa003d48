package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// DetailModel shows the selected node's title, path and payload rendered
// as markdown in a scrollable pane.
type DetailModel struct {
	viewport   viewport.Model
	mdRenderer *glamour.TermRenderer
	theme      Theme
	width      int
	node       *model.Node // node currently rendered
}

// NewDetailModel creates an empty detail pane.
func NewDetailModel(theme Theme) DetailModel {
	return DetailModel{
		viewport: viewport.New(40, 20),
		theme:    theme,
	}
}

// SetSize resizes the pane. The markdown renderer is rebuilt for the new
// wrap width on the next render.
func (d *DetailModel) SetSize(width, height int) {
	if width != d.width {
		d.mdRenderer = nil
		d.node = nil
	}
	d.width = width
	d.viewport.Width = width
	d.viewport.Height = height
}

// SetRow renders row's node unless it is already shown.
func (d *DetailModel) SetRow(row tree.Row) {
	if row.Node == nil || row.Node == d.node {
		return
	}
	d.node = row.Node
	d.viewport.SetContent(d.render(NodeMarkdown(row)))
	d.viewport.GotoTop()
}

// Clear empties the pane.
func (d *DetailModel) Clear() {
	d.node = nil
	d.viewport.SetContent("")
}

// ScrollDown scrolls the pane by n lines.
func (d *DetailModel) ScrollDown(n int) {
	d.viewport.LineDown(n)
}

// ScrollUp scrolls the pane by n lines.
func (d *DetailModel) ScrollUp(n int) {
	d.viewport.LineUp(n)
}

func (d *DetailModel) View() string {
	return d.viewport.View()
}

func (d *DetailModel) render(md string) string {
	if d.mdRenderer == nil {
		wrap := d.width - 4
		if wrap < 20 {
			wrap = 20
		}
		d.mdRenderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
	}
	if d.mdRenderer != nil {
		if out, err := d.mdRenderer.Render(md); err == nil {
			// Strip trailing whitespace/newlines that glamour adds
			return strings.TrimRight(out, " \n")
		}
	}
	return md
}

// NodeMarkdown describes a row as markdown: heading, subtitle, path and
// child summary, then the payload. String payloads are used verbatim;
// anything else is shown as indented JSON.
func NodeMarkdown(row tree.Row) string {
	n := row.Node
	var sb strings.Builder

	title := n.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&sb, "# %s\n\n", singleLine(title))
	if n.Subtitle != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", singleLine(n.Subtitle))
	}
	fmt.Fprintf(&sb, "- **Path:** `%s`\n", row.Path.String())
	if n.ID != "" {
		fmt.Fprintf(&sb, "- **ID:** `%s`\n", n.ID)
	}
	switch {
	case n.IsLazy():
		sb.WriteString("- **Children:** not loaded\n")
	case n.HasChildren():
		fmt.Fprintf(&sb, "- **Children:** %d (%d descendants)\n",
			len(n.Children), tree.DescendantCount(n, false))
	}

	switch p := n.Payload.(type) {
	case nil:
	case string:
		if p != "" {
			sb.WriteString("\n")
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	default:
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			fmt.Fprintf(&sb, "\n%v\n", p)
			break
		}
		sb.WriteString("\n```json\n")
		sb.Write(data)
		sb.WriteString("\n```\n")
	}
	return sb.String()
}
