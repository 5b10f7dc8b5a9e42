package renderer

import (
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// fontPoints fills a 24 dot cell with a 72 dpi canvas
const fontPoints = 20

// monospaceFonts are tried in order; the gg default face is used when none load
var monospaceFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationMono-Regular.ttf",
	"/usr/share/fonts/TTF/DejaVuSansMono.ttf",
	"/System/Library/Fonts/Supplemental/Courier New.ttf",
	"/Library/Fonts/Courier New.ttf",
	"C:\\Windows\\Fonts\\consola.ttf",
	"C:\\Windows\\Fonts\\cour.ttf",
}

func loadFont() font.Face {
	for _, path := range monospaceFonts {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if face, err := gg.LoadFontFace(path, fontPoints); err == nil {
			return face
		}
	}
	return nil
}

// renderText lays text out in fixed 12x24 cells and wraps at the paper's
// column count. GS ! with a zero-based size scales height only.
func (r *Renderer) renderText(text string, opts escpos.TextOptions) error {
	size := opts.FontSize
	if size < 1 {
		size = 1
	}
	if size > 8 {
		size = 8
	}

	cols := r.width / cellWidth
	for _, line := range wrapText(text, cols) {
		img := r.renderLine(line, opts)
		if size > 1 {
			img = imaging.Resize(img, img.Bounds().Dx(), cellHeight*size, imaging.NearestNeighbor)
		}
		r.drawBlock(img, opts.Align)
	}

	return nil
}

func (r *Renderer) renderLine(line string, opts escpos.TextOptions) image.Image {
	runes := []rune(line)
	width := len(runes) * cellWidth
	if width == 0 {
		// an empty line still feeds
		return imaging.New(1, cellHeight, color.White)
	}

	fg, bg := color.Color(color.Black), color.Color(color.White)
	if opts.Invert {
		fg, bg = bg, fg
	}

	dc := gg.NewContext(width, cellHeight)
	dc.SetColor(bg)
	dc.Clear()
	if r.face != nil {
		dc.SetFontFace(r.face)
	}
	dc.SetColor(fg)

	for i, ch := range runes {
		cx := float64(i*cellWidth) + cellWidth/2
		dc.DrawStringAnchored(string(ch), cx, cellHeight/2, 0.5, 0.5)
		if opts.Bold {
			dc.DrawStringAnchored(string(ch), cx+1, cellHeight/2, 0.5, 0.5)
		}
	}

	if opts.Underline {
		dc.SetLineWidth(1)
		dc.DrawLine(0, cellHeight-1.5, float64(width), cellHeight-1.5)
		dc.Stroke()
	}

	return dc.Image()
}

// wrapText splits on newlines and breaks long lines every cols runes
func wrapText(text string, cols int) []string {
	if cols < 1 {
		cols = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		runes := []rune(strings.TrimRight(para, "\r"))
		if len(runes) == 0 {
			lines = append(lines, "")
			continue
		}
		for len(runes) > cols {
			lines = append(lines, string(runes[:cols]))
			runes = runes[cols:]
		}
		lines = append(lines, string(runes))
	}
	return lines
}
