package renderer

import (
	"fmt"
	"image"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/codabar"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/code93"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/twooffive"
	"github.com/skip2/go-qrcode"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

func (r *Renderer) renderBarcode(item escpos.BarcodeItem) error {
	opts := item.Options
	module := clamp(opts.Width, 1, 6)
	height := clamp(opts.Height, 1, 255)

	bc, err := encodeBarcode(item.Data, item.Symbology)
	if err != nil {
		// the printer rejects what it cannot encode; show the data instead
		r.renderText(fmt.Sprintf("[%s: %s]", item.Symbology, item.Data), escpos.TextOptions{Align: opts.Align})
		return nil
	}

	width := bc.Bounds().Dx() * module
	if width > r.width && bc.Bounds().Dx() <= r.width {
		width = r.width
	}
	scaled, err := barcode.Scale(bc, width, height)
	if err != nil {
		return fmt.Errorf("failed to scale barcode: %w", err)
	}

	r.drawBlock(scaled, opts.Align)
	if opts.PrintText {
		r.renderText(item.Data, escpos.TextOptions{Align: opts.Align})
	}
	r.lineFeed()

	return nil
}

func encodeBarcode(data string, sym escpos.Symbology) (barcode.Barcode, error) {
	switch sym {
	case escpos.UPCA:
		// UPC-A is EAN-13 with a leading zero
		return ean.Encode("0" + data)
	case escpos.EAN13, escpos.JAN13, escpos.EAN8, escpos.JAN8:
		return ean.Encode(data)
	case escpos.Code39:
		return code39.Encode(strings.Trim(data, "*"), false, false)
	case escpos.Code93:
		return code93.Encode(data, true, false)
	case escpos.ITF:
		return twooffive.Encode(data, true)
	case escpos.Codabar:
		if data == "" || !strings.ContainsAny(data[:1], "ABCDabcd") {
			data = "A" + data + "A"
		}
		return codabar.Encode(strings.ToUpper(data))
	default:
		return code128.Encode(stripCodeSet(data))
	}
}

// stripCodeSet removes a leading "{A", "{B" or "{C" code set selector
func stripCodeSet(data string) string {
	if len(data) >= 2 && data[0] == '{' && strings.ContainsRune("ABC", rune(data[1])) {
		return data[2:]
	}
	return data
}

func (r *Renderer) renderQRCode(item escpos.QRCodeItem) error {
	if item.Data == "" {
		return nil
	}

	levels := []qrcode.RecoveryLevel{qrcode.Low, qrcode.Medium, qrcode.High, qrcode.Highest}
	level := levels[clamp(item.Options.ErrorCorrection, 0, 3)]

	qr, err := qrcode.New(item.Data, level)
	if err != nil {
		return fmt.Errorf("failed to build QR code: %w", err)
	}
	qr.DisableBorder = true

	r.drawBlock(moduleImage(qr.Bitmap(), clamp(item.Options.Size, 1, 8)), item.Options.Align)
	r.lineFeed()

	return nil
}

// moduleImage draws each QR module as a size x size block of dots
func moduleImage(bitmap [][]bool, size int) *image.Paletted {
	n := len(bitmap)
	img := image.NewPaletted(image.Rect(0, 0, n*size, n*size), escpos.Monochrome)

	// palette index 1 is white
	for i := range img.Pix {
		img.Pix[i] = 1
	}
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			for dy := 0; dy < size; dy++ {
				for dx := 0; dx < size; dx++ {
					img.SetColorIndex(x*size+dx, y*size+dy, 0)
				}
			}
		}
	}
	return img
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
