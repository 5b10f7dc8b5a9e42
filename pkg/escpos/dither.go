package escpos

import (
	"image"
	"image/color"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// Ditherer reduces an image to black and white dots. Raster framing only
// looks at the luminance of each palette entry, so any two-colour palette
// works.
type Ditherer interface {
	Dither(img image.Image) *image.Paletted
}

// DitherFunc adapts a function to the Ditherer interface
type DitherFunc func(img image.Image) *image.Paletted

func (f DitherFunc) Dither(img image.Image) *image.Paletted {
	return f(img)
}

// Monochrome is the palette every built-in ditherer produces
var Monochrome = color.Palette{color.Black, color.White}

// Threshold marks a dot black when its luminance is below level.
func Threshold(level uint8) Ditherer {
	return DitherFunc(func(img image.Image) *image.Paletted {
		b := img.Bounds()
		dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), Monochrome)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				if g.Y >= level {
					dst.SetColorIndex(x, y, 1)
				}
			}
		}
		return dst
	})
}

// FloydSteinberg diffuses quantisation error to the right and below.
var FloydSteinberg Ditherer = DitherFunc(func(img image.Image) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), Monochrome)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
})

// Bayer applies an 8x8 ordered dither. It keeps flat areas stable, which
// suits logos.
var Bayer Ditherer = ditherWith(func(d *dither.Ditherer) {
	d.Mapper = dither.Bayer(8, 8, 1.0)
})

// Atkinson diffuses three quarters of the error, giving lighter midtones than
// Floyd-Steinberg.
var Atkinson Ditherer = ditherWith(func(d *dither.Ditherer) {
	d.Matrix = dither.Atkinson
})

func ditherWith(configure func(d *dither.Ditherer)) Ditherer {
	return DitherFunc(func(img image.Image) *image.Paletted {
		d := dither.NewDitherer([]color.Color{color.Black, color.White})
		configure(d)
		if out := d.DitherPaletted(img); out != nil {
			return out
		}
		return Threshold(128).Dither(img)
	})
}

// ParseDitherer looks up a built-in ditherer by name.
func ParseDitherer(name string) (Ditherer, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "floyd-steinberg", "floydsteinberg", "floyd_steinberg", "fs":
		return FloydSteinberg, true
	case "bayer", "ordered":
		return Bayer, true
	case "atkinson":
		return Atkinson, true
	default:
		return nil, false
	}
}
