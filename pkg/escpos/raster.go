package escpos

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidImage is returned for nil or zero-sized images
	ErrInvalidImage = errors.New("invalid image")
	// ErrPayloadTooLarge is returned when data does not fit a length field
	ErrPayloadTooLarge = errors.New("payload too large for command length field")
)

// DefaultImageWidth is the printable width of a 58mm head at 203 dpi
const DefaultImageWidth = 384

// GS v 0 carries xL xH and yL yH
const (
	maxRasterRows       = 0xFFFF
	maxRasterWidthBytes = 0xFFFF
)

// ImageOptions controls scaling and monochrome conversion
type ImageOptions struct {
	Width         int // target width in dots, <= 0 uses DefaultImageWidth
	Dithering     bool
	Threshold     int // 0..255, used when Dithering is false
	Align         Alignment
	Ditherer      Ditherer // nil uses FloydSteinberg
	MaxBandHeight int      // rows per GS v 0 command, <= 0 uses the 16-bit limit
}

// DefaultImageOptions returns 384 dots, Floyd-Steinberg, threshold 128, centered.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Width:     DefaultImageWidth,
		Dithering: true,
		Threshold: 128,
		Align:     AlignCenter,
		Ditherer:  FloydSteinberg,
	}
}

// EncodeImage scales img to the target width, reduces it to one bit per dot
// and frames it as GS v 0 raster bands.
func EncodeImage(img image.Image, opts ImageOptions) ([]byte, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}

	mono := Rasterize(img, opts)
	bitmap, widthBytes := PackBitmap(mono)
	if widthBytes > maxRasterWidthBytes {
		return nil, fmt.Errorf("%w: raster row is %d bytes, limit %d", ErrPayloadTooLarge, widthBytes, maxRasterWidthBytes)
	}

	e := NewEncoder()
	e.Initialize()
	e.SetAlignment(opts.Align)
	e.WriteRaster(bitmap, widthBytes, mono.Bounds().Dy(), opts.MaxBandHeight)
	e.LineFeed()

	return e.Bytes(), nil
}

// Rasterize flattens img onto white, resizes it to the target width keeping
// the aspect ratio, and applies the configured ditherer or threshold.
func Rasterize(img image.Image, opts ImageOptions) *image.Paletted {
	width := opts.Width
	if width <= 0 {
		width = DefaultImageWidth
	}

	b := img.Bounds()
	flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)
	if flat.Bounds().Dx() != width {
		flat = imaging.Resize(flat, width, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(flat)

	return selectDitherer(opts).Dither(gray)
}

func selectDitherer(opts ImageOptions) Ditherer {
	if !opts.Dithering {
		return Threshold(uint8(clamp(opts.Threshold, 0, 255)))
	}
	if opts.Ditherer != nil {
		return opts.Ditherer
	}
	return FloydSteinberg
}

// PackBitmap packs eight dots per byte, MSB first, row-major. A dot is set
// when its palette colour is closer to black than to white.
func PackBitmap(img *image.Paletted) ([]byte, int) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	widthBytes := (width + 7) / 8
	bitmap := make([]byte, widthBytes*height)

	dark := make([]bool, len(img.Palette))
	for i, c := range img.Palette {
		dark[i] = color.GrayModel.Convert(c).(color.Gray).Y < 128
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := int(img.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			if idx < len(dark) && dark[idx] {
				bitmap[y*widthBytes+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}

	return bitmap, widthBytes
}

func checkImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: no image data", ErrInvalidImage)
	}
	b, ok := imageBounds(img)
	if !ok {
		return fmt.Errorf("%w: no image data", ErrInvalidImage)
	}
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, b.Dx(), b.Dy())
	}
	return nil
}

// imageBounds reports false for a typed nil image, whose Bounds panics.
func imageBounds(img image.Image) (b image.Rectangle, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return img.Bounds(), true
}
