package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// sanitizeMarkdownText keeps a label on one line and escapes characters
// that would start emphasis or links.
func sanitizeMarkdownText(text string) string {
	replacer := strings.NewReplacer(
		"\n", " ",
		"\r", "",
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
		"`", "'",
	)
	result := replacer.Replace(text)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)
}

// writeMarkdown renders rows as a nested bullet list. Collapsed parents are
// marked with a trailing "(+)", search matches are bold and the focused
// match is also marked with an arrow.
func writeMarkdown(w io.Writer, opts Options) error {
	bw := bufio.NewWriter(w)
	hl := highlights(opts)

	if opts.Title != "" {
		fmt.Fprintf(bw, "# %s\n\n", sanitizeMarkdownText(opts.Title))
	}
	if opts.DataHash != "" {
		fmt.Fprintf(bw, "<!-- data_hash: %s, rows: %d -->\n\n", opts.DataHash, len(opts.Rows))
	}

	for _, r := range opts.Rows {
		label := sanitizeMarkdownText(r.Node.Title)
		if label == "" {
			label = "(untitled)"
		}
		focused, matched := hl[r.TreeIndex]
		if matched {
			label = "**" + label + "**"
		}
		line := strings.Repeat("  ", r.Depth()) + "- " + label
		if opts.ShowSubtitles && r.Node.Subtitle != "" {
			line += ": _" + sanitizeMarkdownText(r.Node.Subtitle) + "_"
		}
		if r.Node.CanHaveChildren() && !r.Node.Expanded {
			line += " (+)"
		}
		if focused {
			line += " ←"
		}
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
