package renderer

import "github.com/thereceipt/escpos-engine/pkg/escpos"

// renderRaw interprets the paper movement in raw bytes. Everything else is
// invisible in a preview.
func (r *Renderer) renderRaw(data []byte) {
	for i := 0; i < len(data); {
		switch {
		case data[i] == escpos.LF:
			r.lineFeed()
			i++
		case data[i] == escpos.ESC && i+2 < len(data) && data[i+1] == 'd':
			r.feed(int(data[i+2]))
			i += 3
		case data[i] == escpos.ESC && i+4 < len(data) && data[i+1] == 'p':
			i += 5
		case data[i] == escpos.GS && i+2 < len(data) && data[i+1] == 'V':
			// function B feeds before cutting
			if data[i+2] >= 65 && i+3 < len(data) {
				r.feed(int(data[i+3]))
				i++
			}
			r.cutLine()
			i += 3
		default:
			i++
		}
	}
}
