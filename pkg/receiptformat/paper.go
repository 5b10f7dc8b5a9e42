package receiptformat

// Paper geometry at 203 dpi with the 12x24 font
var paperSizes = map[string]struct{ dots, columns int }{
	"58mm":  {384, 32},
	"80mm":  {576, 48},
	"112mm": {832, 69},
}

// DefaultPaperWidth is used when a receipt does not name one
const DefaultPaperWidth = "58mm"

// PaperDots returns the printable width in dots.
func PaperDots(width string) (int, bool) {
	p, ok := paperSizes[width]
	return p.dots, ok
}

// PaperColumns returns how many normal-size characters fit on a line.
func PaperColumns(width string) (int, bool) {
	p, ok := paperSizes[width]
	return p.columns, ok
}
