package escpos

import (
	"fmt"
	"strings"
)

// Symbology is a 1D barcode standard understood by GS k.
type Symbology int

const (
	SymbologyUnknown Symbology = iota
	UPCA
	UPCE
	EAN13
	JAN13
	EAN8
	JAN8
	Code39
	ITF
	Codabar
	Code93
	Code128
)

var symbologyNames = map[Symbology]string{
	UPCA:    "upc_a",
	UPCE:    "upc_e",
	EAN13:   "ean13",
	JAN13:   "jan13",
	EAN8:    "ean8",
	JAN8:    "jan8",
	Code39:  "code39",
	ITF:     "itf",
	Codabar: "codabar",
	Code93:  "code93",
	Code128: "code128",
}

var symbologyNormalizer = strings.NewReplacer("_", "", "-", "", " ", "")

// ParseSymbology maps a wire name such as "ean13" or "UPC-A" to a Symbology.
// Names without a GS k code, including the GS1 family, become Code128.
func ParseSymbology(name string) Symbology {
	n := symbologyNormalizer.Replace(strings.ToLower(strings.TrimSpace(name)))
	for sym, known := range symbologyNames {
		if symbologyNormalizer.Replace(known) == n {
			return sym
		}
	}
	return Code128
}

func (s Symbology) String() string {
	if name, ok := symbologyNames[s]; ok {
		return name
	}
	return "code128"
}

// Code returns the GS k function A type number. Unknown values use CODE128.
func (s Symbology) Code() byte {
	switch s {
	case UPCA:
		return 0
	case UPCE:
		return 1
	case EAN13, JAN13:
		return 2
	case EAN8, JAN8:
		return 3
	case Code39:
		return 4
	case ITF:
		return 5
	case Codabar:
		return 6
	case Code93:
		return 7
	default:
		return 8
	}
}

// BarcodeOptions controls bar geometry and the human readable line
type BarcodeOptions struct {
	Width     int // module width 1..6
	Height    int // dots 1..255
	PrintText bool
	Align     Alignment
}

// DefaultBarcodeOptions returns width 2, height 100, text below, centered.
func DefaultBarcodeOptions() BarcodeOptions {
	return BarcodeOptions{
		Width:     2,
		Height:    100,
		PrintText: true,
		Align:     AlignCenter,
	}
}

const maxBarcodeData = 255

// EncodeBarcode builds the GS k command with a one byte length prefix.
// Per-symbology content rules are left to the printer.
func EncodeBarcode(data string, sym Symbology, opts BarcodeOptions) ([]byte, error) {
	payload := StringToBytes(data)
	if len(payload) > maxBarcodeData {
		return nil, fmt.Errorf("%w: barcode data is %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxBarcodeData)
	}

	textPosition := byte(0)
	if opts.PrintText {
		textPosition = 2
	}

	e := NewEncoder()
	e.Initialize()
	e.SetAlignment(opts.Align)
	e.Write([]byte{GS, 'H', textPosition})
	e.Write([]byte{GS, 'w', byte(clamp(opts.Width, 1, 6))})
	e.Write([]byte{GS, 'h', byte(clamp(opts.Height, 1, 255))})
	e.Write([]byte{GS, 'k', sym.Code(), byte(len(payload))})
	e.Write(payload)
	e.LineFeed()

	return e.Bytes(), nil
}
