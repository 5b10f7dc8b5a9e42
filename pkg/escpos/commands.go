// Package escpos encodes print requests into ESC/POS command bytes.
//
// Every encoder is a pure function of its arguments. Each single-item
// encoding starts with ESC @ so items can be sent on their own or joined
// into one receipt by Compose.
package escpos

import "strings"

// ESC/POS control bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	DLE byte = 0x10
	LF  byte = 0x0A
)

// Alignment selects the ESC a justification.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// ParseAlignment maps "left", "center" and "right" to an Alignment.
// Anything else is AlignLeft.
func ParseAlignment(s string) Alignment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center", "centre":
		return AlignCenter
	case "right":
		return AlignRight
	default:
		return AlignLeft
	}
}

func (a Alignment) String() string {
	switch a.normalize() {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

func (a Alignment) normalize() Alignment {
	switch a {
	case AlignCenter, AlignRight:
		return a
	default:
		return AlignLeft
	}
}

// CutKind selects the GS V cut mode.
type CutKind int

const (
	CutFull CutKind = iota
	CutPartial
)

// ParseCutKind maps "partial" to CutPartial and everything else to CutFull.
func ParseCutKind(s string) CutKind {
	if strings.EqualFold(strings.TrimSpace(s), "partial") {
		return CutPartial
	}
	return CutFull
}

func (k CutKind) String() string {
	if k == CutPartial {
		return "partial"
	}
	return "full"
}

// Feed lines emitted ahead of every cut so the last printed line clears the blade.
const cutFeedLines = 3

// FeedCommand returns ESC d n with n clamped to 1..255.
func FeedCommand(lines int) []byte {
	return []byte{ESC, 'd', byte(clamp(lines, 1, 255))}
}

// CutCommand feeds three lines and cuts the paper.
func CutCommand(kind CutKind) []byte {
	mode := byte(0x00)
	if kind == CutPartial {
		mode = 0x01
	}
	return []byte{ESC, 'd', cutFeedLines, GS, 'V', mode}
}

// CashDrawerPulse returns ESC p on pin 2 with a 50ms on / 500ms off pulse.
func CashDrawerPulse() []byte {
	return []byte{ESC, 'p', 0x00, 0x19, 0xFA}
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
