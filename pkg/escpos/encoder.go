package escpos

import (
	"bytes"
)

// Encoder accumulates ESC/POS commands in call order.
type Encoder struct {
	buffer *bytes.Buffer
}

// NewEncoder creates an empty encoder
func NewEncoder() *Encoder {
	return &Encoder{
		buffer: new(bytes.Buffer),
	}
}

// Initialize writes ESC @, which resets every printer setting.
func (e *Encoder) Initialize() {
	e.buffer.WriteByte(ESC)
	e.buffer.WriteByte('@')
}

// SetAlignment writes ESC a n
func (e *Encoder) SetAlignment(align Alignment) {
	e.buffer.WriteByte(ESC)
	e.buffer.WriteByte('a')
	e.buffer.WriteByte(byte(align.normalize()))
}

// SetTextSize writes GS ! with size clamped to 1..8 and sent zero-based.
func (e *Encoder) SetTextSize(size int) {
	e.buffer.WriteByte(GS)
	e.buffer.WriteByte('!')
	e.buffer.WriteByte(byte(clamp(size, 1, 8) - 1))
}

// SetBold writes ESC E
func (e *Encoder) SetBold(enabled bool) {
	e.writeToggle(ESC, 'E', enabled)
}

// SetUnderline writes ESC -
func (e *Encoder) SetUnderline(enabled bool) {
	e.writeToggle(ESC, '-', enabled)
}

// SetInvert writes GS B (white on black).
func (e *Encoder) SetInvert(enabled bool) {
	e.writeToggle(GS, 'B', enabled)
}

// SelectCodePage writes ESC t n. Pages without a printer table are ignored.
func (e *Encoder) SelectCodePage(cp CodePage) {
	table, ok := cp.table()
	if !ok {
		return
	}
	e.buffer.WriteByte(ESC)
	e.buffer.WriteByte('t')
	e.buffer.WriteByte(table)
}

// WriteText writes text using the one-byte-per-character projection.
func (e *Encoder) WriteText(text string) {
	e.buffer.Write(StringToBytes(text))
}

// Write appends raw bytes. It never fails.
func (e *Encoder) Write(p []byte) (int, error) {
	return e.buffer.Write(p)
}

// LineFeed writes LF
func (e *Encoder) LineFeed() {
	e.buffer.WriteByte(LF)
}

// Feed writes ESC d n
func (e *Encoder) Feed(lines int) {
	e.buffer.Write(FeedCommand(lines))
}

// Cut feeds three lines and cuts
func (e *Encoder) Cut(kind CutKind) {
	e.buffer.Write(CutCommand(kind))
}

// WriteRaster writes a packed bitmap as GS v 0 commands of at most
// bandHeight rows each.
func (e *Encoder) WriteRaster(bitmap []byte, widthBytes, height, bandHeight int) {
	if bandHeight <= 0 || bandHeight > maxRasterRows {
		bandHeight = maxRasterRows
	}

	for top := 0; top < height; top += bandHeight {
		rows := min(bandHeight, height-top)

		e.buffer.Write([]byte{
			GS, 'v', '0', 0x00,
			byte(widthBytes), byte(widthBytes >> 8),
			byte(rows), byte(rows >> 8),
		})
		e.buffer.Write(bitmap[top*widthBytes : (top+rows)*widthBytes])
	}
}

// Bytes returns a copy of the generated commands
func (e *Encoder) Bytes() []byte {
	return bytes.Clone(e.buffer.Bytes())
}

// Len reports the number of buffered bytes
func (e *Encoder) Len() int {
	return e.buffer.Len()
}

// Reset clears the buffer
func (e *Encoder) Reset() {
	e.buffer.Reset()
}

func (e *Encoder) writeToggle(prefix, cmd byte, enabled bool) {
	e.buffer.WriteByte(prefix)
	e.buffer.WriteByte(cmd)
	if enabled {
		e.buffer.WriteByte(1)
	} else {
		e.buffer.WriteByte(0)
	}
}
