package renderer

import (
	"fmt"
	"image"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// renderImage runs the printer's own rasterizer so the preview shows the
// dots that will be burned.
func (r *Renderer) renderImage(img image.Image, opts escpos.ImageOptions) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("%w: nil or empty image", escpos.ErrInvalidImage)
	}

	r.drawBlock(escpos.Rasterize(img, opts), opts.Align)
	r.lineFeed()

	return nil
}

// lineFeed advances one text line, as the LF after a raster or symbol does
func (r *Renderer) lineFeed() {
	r.feed(1)
}
