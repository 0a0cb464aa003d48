// Package export renders the visible rows of a tree to static files:
// SVG and PNG snapshots with connector scaffolding, and Markdown outlines.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Format is an output format.
type Format string

const (
	FormatSVG      Format = "svg"
	FormatPNG      Format = "png"
	FormatMarkdown Format = "md"
)

// Options controls an export.
type Options struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format Format
	Title  string // Rendered in the summary block / as the document heading

	// Rows are the rows to render, usually the visible rows of a session.
	Rows []tree.Row
	// Matches and Focus highlight search results. Focus is a tree index
	// (tree.NoTreeIndex for none).
	Matches []tree.Match
	Focus   int

	ShowSubtitles bool
	DataHash      string
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return FormatSVG, nil
	case ".png":
		return FormatPNG, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want .svg, .png or .md)", filepath.Ext(path))
}

// Export writes opts.Rows to opts.Path.
func Export(opts Options) error {
	defer metrics.Timer(metrics.Export)()

	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format := Format(strings.ToLower(strings.TrimPrefix(string(opts.Format), ".")))
	if format == "" {
		f, err := FormatForPath(opts.Path)
		if err != nil {
			return err
		}
		format = f
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if format == FormatPNG {
		return renderPNG(opts.Path, buildLayout(opts))
	}

	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	if err := Write(f, format, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write renders to w.
func Write(w io.Writer, format Format, opts Options) error {
	switch format {
	case FormatSVG:
		return renderSVG(w, buildLayout(opts))
	case FormatPNG:
		return encodePNG(w, buildLayout(opts))
	case FormatMarkdown:
		return writeMarkdown(w, opts)
	default:
		return fmt.Errorf("unsupported format %q (want svg, png or md)", format)
	}
}

// highlights maps tree indices of matches to whether they are focused.
func highlights(opts Options) map[int]bool {
	m := make(map[int]bool, len(opts.Matches))
	for _, match := range opts.Matches {
		if match.Visible() {
			m[match.TreeIndex] = match.TreeIndex == opts.Focus
		}
	}
	return m
}
