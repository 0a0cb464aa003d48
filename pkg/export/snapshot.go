package export

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// --- layout computation ----------------------------------------------------

const (
	rowHeight = 24.0
	indentW   = 22.0
	margin    = 20.0
	headerH   = 70.0
	charW     = 7.0 // basicfont.Face7x13 advance
	toggleW   = 16.0
	maxLabel  = 80
	minWidth  = 420
)

type segment struct {
	X1, Y1, X2, Y2 float64
}

type layoutRow struct {
	Label     string
	Subtitle  string
	X, Y      float64 // label origin (left, row top)
	Toggle    string  // "+", "-" or "" for leaves
	Match     bool
	Focus     bool
	Connector []segment
}

type summaryInfo struct {
	Title      string
	DataHash   string
	RowCount   int
	MatchCount int
}

type layoutResult struct {
	Rows    []layoutRow
	Width   int
	Height  int
	Summary summaryInfo
}

func buildLayout(opts Options) layoutResult {
	hl := highlights(opts)
	out := layoutResult{
		Rows: make([]layoutRow, 0, len(opts.Rows)),
		Summary: summaryInfo{
			Title:      opts.Title,
			DataHash:   opts.DataHash,
			RowCount:   len(opts.Rows),
			MatchCount: len(opts.Matches),
		},
	}
	if out.Summary.Title == "" {
		out.Summary.Title = "arbor snapshot"
	}

	width := float64(minWidth)
	for i, r := range opts.Rows {
		top := headerH + float64(i)*rowHeight
		level := len(r.Path)
		lr := layoutRow{
			Label:     truncate(r.Node.Title, maxLabel),
			X:         margin + float64(level)*indentW,
			Y:         top,
			Connector: scaffold(r.LowerSiblingCounts, top, i == 0),
		}
		if opts.ShowSubtitles {
			lr.Subtitle = truncate(r.Node.Subtitle, maxLabel/2)
		}
		if r.Node.CanHaveChildren() {
			lr.Toggle = "+"
			if r.Node.Expanded {
				lr.Toggle = "-"
			}
		}
		lr.Focus, lr.Match = hl[r.TreeIndex]

		textW := charW * float64(len([]rune(lr.Label)))
		if lr.Subtitle != "" {
			textW += charW * float64(len([]rune(lr.Subtitle))+2)
		}
		width = math.Max(width, lr.X+toggleW+textW+margin)
		out.Rows = append(out.Rows, lr)
	}

	out.Width = int(math.Ceil(width))
	out.Height = int(headerH + float64(len(opts.Rows))*rowHeight + margin)
	return out
}

// scaffold computes the connector lines for one row from its lower sibling
// counts. Column c belongs to the ancestor at depth c; a vertical line runs
// through it while that ancestor has siblings below. The last column joins
// the node itself.
func scaffold(lsc []int, top float64, first bool) []segment {
	var segs []segment
	mid := top + rowHeight/2
	bottom := top + rowHeight
	last := len(lsc) - 1
	for c, count := range lsc {
		x := margin + float64(c)*indentW + indentW/2
		if c < last {
			if count > 0 {
				segs = append(segs, segment{x, top, x, bottom})
			}
			continue
		}
		segs = append(segs, segment{x, mid, x + indentW/2, mid})
		if !(first && c == 0) {
			segs = append(segs, segment{x, top, x, mid})
		}
		if count > 0 {
			segs = append(segs, segment{x, mid, x, bottom})
		}
	}
	return segs
}

// --- palette ---------------------------------------------------------------

var (
	colorBackdrop = color.RGBA{R: 0xfa, G: 0xfb, B: 0xfc, A: 0xff}
	colorHeaderBG = color.RGBA{R: 0xe8, G: 0xee, B: 0xf4, A: 0xff}
	colorText     = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	colorSubtle   = color.RGBA{R: 0x6b, G: 0x72, B: 0x80, A: 0xff}
	colorEdge     = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	colorMatch    = color.RGBA{R: 0xfe, G: 0xf3, B: 0xc7, A: 0xff}
	colorFocus    = color.RGBA{R: 0xfd, G: 0xe6, B: 0x8a, A: 0xff}
	colorStroke   = color.RGBA{R: 0x4b, G: 0x55, B: 0x63, A: 0xff}
)

// --- PNG -------------------------------------------------------------------

func drawPNG(layout layoutResult) *gg.Context {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(8, 8, float64(layout.Width)-16, headerH-16, 8)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	drawSummaryBlock(dc, layout)

	dc.SetColor(colorEdge)
	dc.SetLineWidth(1)
	for _, r := range layout.Rows {
		for _, s := range r.Connector {
			dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
			dc.Stroke()
		}
	}

	for _, r := range layout.Rows {
		drawRow(dc, r)
	}
	return dc
}

func renderPNG(path string, layout layoutResult) error {
	return drawPNG(layout).SavePNG(path)
}

func encodePNG(w io.Writer, layout layoutResult) error {
	return png.Encode(w, drawPNG(layout).Image())
}

func drawRow(dc *gg.Context, r layoutRow) {
	mid := r.Y + rowHeight/2
	x := r.X
	if r.Toggle != "" {
		dc.SetColor(colorBackdrop)
		dc.DrawRectangle(x+1, mid-5, 10, 10)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1)
		dc.DrawRectangle(x+1, mid-5, 10, 10)
		dc.Stroke()
		dc.DrawStringAnchored(r.Toggle, x+6, mid, 0.5, 0.35)
	}
	x += toggleW

	textW := charW * float64(len([]rune(r.Label)))
	if r.Match {
		dc.SetColor(colorMatch)
		if r.Focus {
			dc.SetColor(colorFocus)
		}
		dc.DrawRoundedRectangle(x-3, r.Y+3, textW+6, rowHeight-6, 4)
		dc.Fill()
	}
	dc.SetColor(colorText)
	dc.DrawStringAnchored(r.Label, x, mid, 0, 0.35)
	if r.Subtitle != "" {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(r.Subtitle, x+textW+2*charW, mid, 0, 0.35)
	}
}

func drawSummaryBlock(dc *gg.Context, layout layoutResult) {
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 20, 26, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(summaryLine(layout.Summary), 20, 46, 0, 0.5)
}

func summaryLine(s summaryInfo) string {
	line := fmt.Sprintf("rows: %d  matches: %d", s.RowCount, s.MatchCount)
	if s.DataHash != "" {
		line += "  data_hash: " + s.DataHash
	}
	return line
}

// --- SVG -------------------------------------------------------------------

func renderSVG(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(8, 8, layout.Width-16, int(headerH-16), 8, 8, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(20, 30, layout.Summary.Title, fmt.Sprintf("fill:%s;font-size:15px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(20, 50, summaryLine(layout.Summary), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	edgeStyle := fmt.Sprintf("stroke:%s;stroke-width:1", css(colorEdge))
	for _, r := range layout.Rows {
		for _, s := range r.Connector {
			canvas.Line(int(s.X1), int(s.Y1), int(s.X2), int(s.Y2), edgeStyle)
		}
	}

	for _, r := range layout.Rows {
		x := int(r.X)
		mid := int(r.Y + rowHeight/2)
		if r.Toggle != "" {
			canvas.Rect(x+1, mid-5, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorBackdrop), css(colorStroke)))
			canvas.Text(x+6, mid+4, r.Toggle, fmt.Sprintf("fill:%s;font-size:10px;font-family:monospace;text-anchor:middle", css(colorStroke)))
		}
		x += int(toggleW)
		textW := int(charW * float64(len([]rune(r.Label))))
		if r.Match {
			fill := colorMatch
			if r.Focus {
				fill = colorFocus
			}
			canvas.Roundrect(x-3, int(r.Y)+3, textW+6, int(rowHeight)-6, 4, 4, fmt.Sprintf("fill:%s", css(fill)))
		}
		canvas.Text(x, mid+4, r.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
		if r.Subtitle != "" {
			canvas.Text(x+textW+int(2*charW), mid+4, r.Subtitle, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		}
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
