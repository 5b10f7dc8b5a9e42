// Package renderer draws a preview of what a thermal printer will output
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// Font A on most 203 dpi heads is 12x24 dots
const (
	cellWidth  = 12
	cellHeight = 24
)

// Renderer draws receipt items onto a canvas one paper dot per pixel
type Renderer struct {
	width  int // Paper width in dots
	height int // Current canvas height
	ctx    *gg.Context
	y      float64 // Current Y position
	face   font.Face // nil uses the gg default face
}

// New creates a renderer for a paper width such as "80mm"
func New(paperWidth string) (*Renderer, error) {
	width, ok := receiptformat.PaperDots(paperWidth)
	if !ok {
		return nil, fmt.Errorf("unsupported paper width: %s", paperWidth)
	}

	// Start with reasonable initial height, will grow as needed
	initialHeight := 1000

	return &Renderer{
		width:  width,
		height: initialHeight,
		ctx:    newCanvas(width, initialHeight),
		face:   loadFont(),
	}, nil
}

func newCanvas(width, height int) *gg.Context {
	ctx := gg.NewContext(width, height)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)
	return ctx
}

// Width returns the paper width in dots
func (r *Renderer) Width() int {
	return r.width
}

// Render draws every item and the trailer, then crops to the content
func (r *Renderer) Render(spec escpos.ReceiptSpec) (image.Image, error) {
	for i, item := range spec.Items {
		if err := r.renderItem(item); err != nil {
			return nil, fmt.Errorf("failed to render item %d: %w", i, err)
		}
	}

	if spec.FeedLines > 0 {
		r.renderRaw(escpos.FeedCommand(spec.FeedLines))
	}
	if spec.CutPaper {
		r.renderRaw(escpos.CutCommand(escpos.CutFull))
	}

	return r.cropToContent(), nil
}

// RenderPNG renders spec at the given paper width and writes it as PNG
func RenderPNG(w io.Writer, spec escpos.ReceiptSpec, paperWidth string) error {
	r, err := New(paperWidth)
	if err != nil {
		return err
	}

	img, err := r.Render(spec)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func (r *Renderer) renderItem(item escpos.Item) error {
	switch it := item.(type) {
	case escpos.TextItem:
		return r.renderText(it.Text, it.Options)
	case escpos.ImageItem:
		return r.renderImage(it.Image, it.Options)
	case escpos.BarcodeItem:
		return r.renderBarcode(it)
	case escpos.QRCodeItem:
		return r.renderQRCode(it)
	case escpos.RawItem:
		r.renderRaw(it.Data)
	case *escpos.TextItem:
		if it != nil {
			return r.renderItem(*it)
		}
	case *escpos.ImageItem:
		if it != nil {
			return r.renderItem(*it)
		}
	case *escpos.BarcodeItem:
		if it != nil {
			return r.renderItem(*it)
		}
	case *escpos.QRCodeItem:
		if it != nil {
			return r.renderItem(*it)
		}
	case *escpos.RawItem:
		if it != nil {
			return r.renderItem(*it)
		}
	}
	// unknown items print nothing
	return nil
}

func (r *Renderer) cropToContent() image.Image {
	finalHeight := int(r.y) + cellHeight
	if finalHeight > r.height {
		finalHeight = r.height
	}

	img := r.ctx.Image()
	return img.(interface {
		SubImage(r image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, r.width, finalHeight))
}

func (r *Renderer) ensureHeight(neededHeight int) {
	if int(r.y)+neededHeight <= r.height {
		return
	}

	newHeight := r.height * 2
	if newHeight < int(r.y)+neededHeight {
		newHeight = int(r.y) + neededHeight + 1000
	}

	newCtx := newCanvas(r.width, newHeight)
	newCtx.DrawImage(r.ctx.Image(), 0, 0)

	r.ctx = newCtx
	r.height = newHeight
}

// alignX returns the left edge of a block of width w
func (r *Renderer) alignX(align escpos.Alignment, w int) int {
	switch align {
	case escpos.AlignCenter:
		return (r.width - w) / 2
	case escpos.AlignRight:
		return r.width - w
	default:
		return 0
	}
}

// drawBlock places img at the current line and advances past it
func (r *Renderer) drawBlock(img image.Image, align escpos.Alignment) {
	h := img.Bounds().Dy()
	r.ensureHeight(h)
	x := r.alignX(align, img.Bounds().Dx())
	if x < 0 {
		x = 0
	}
	r.ctx.DrawImage(img, x, int(r.y))
	r.y += float64(h)
}

func (r *Renderer) feed(lines int) {
	r.ensureHeight(lines * cellHeight)
	r.y += float64(lines * cellHeight)
}

// cutLine draws a dashed line where the knife cuts
func (r *Renderer) cutLine() {
	r.ensureHeight(cellHeight)

	y := r.y + cellHeight/2
	dashLength := 10.0
	gapLength := 5.0

	r.ctx.SetColor(color.Black)
	r.ctx.SetLineWidth(1)
	r.ctx.SetDash(dashLength, gapLength)
	r.ctx.DrawLine(0, y, float64(r.width), y)
	r.ctx.Stroke()
	r.ctx.SetDash()

	r.y += cellHeight
}
