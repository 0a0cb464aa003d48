package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/arbor/internal/datasource"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
// Uses go-runewidth to handle wide characters correctly.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}

	targetWidth := maxWidth - suffixWidth
	return runewidth.Truncate(s, targetWidth, "") + suffix
}

// padRight pads s with spaces on the right to the given cell width.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// truncate truncates s to maxWidth cells with an ellipsis.
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// singleLine collapses line breaks so a label occupies one row.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n\t") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

// treePrefix draws the branch characters for a row. lsc[d] is the number of
// siblings below the ancestor at depth d; the last entry is the row itself.
// Roots get no prefix.
func treePrefix(lsc []int) string {
	if len(lsc) <= 1 {
		return ""
	}
	var sb strings.Builder
	last := len(lsc) - 1
	for _, below := range lsc[1:last] {
		if below > 0 {
			sb.WriteString("│   ")
		} else {
			sb.WriteString("    ")
		}
	}
	if lsc[last] > 0 {
		sb.WriteString("├── ")
	} else {
		sb.WriteString("└── ")
	}
	return sb.String()
}

// expandIndicator returns the expand/collapse marker for a node.
func expandIndicator(n *model.Node) string {
	switch {
	case datasource.IsPlaceholder(n):
		return "!"
	case !n.CanHaveChildren():
		return "•"
	case n.IsLazy() && n.Expanded:
		return "◌" // loading
	case n.Expanded:
		return "▾"
	default:
		return "▸"
	}
}
