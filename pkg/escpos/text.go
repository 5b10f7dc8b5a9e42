package escpos

// TextOptions styles a line of text
type TextOptions struct {
	Align     Alignment
	FontSize  int // 1..8
	Bold      bool
	Underline bool
	Italic    bool // no ESC/POS command; accepted and ignored
	Invert    bool
	CodePage  CodePage
}

// EncodeText builds a self-resetting text command. Off states are always
// written so the output never depends on earlier commands.
func EncodeText(text string, opts TextOptions) []byte {
	e := NewEncoder()
	e.Initialize()
	writeTextBody(e, text, opts)
	return e.Bytes()
}

func writeTextBody(e *Encoder, text string, opts TextOptions) {
	e.SetAlignment(opts.Align)
	e.SetTextSize(opts.FontSize)
	e.SetBold(opts.Bold)
	e.SetUnderline(opts.Underline)
	e.SetInvert(opts.Invert)
	writeTextPayload(e, text, opts.CodePage)
}

func writeTextPayload(e *Encoder, text string, cp CodePage) {
	if _, ok := cp.table(); ok {
		e.SelectCodePage(cp)
		e.Write(EncodeString(cp, text))
	} else {
		e.WriteText(text)
	}
	e.LineFeed()
}
