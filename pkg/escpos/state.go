package escpos

// FormatterState mirrors the styling a printer holds between commands.
// It is not safe for concurrent use; keep one per receipt.
type FormatterState struct {
	known     bool
	align     Alignment
	size      int
	bold      bool
	underline bool
	invert    bool
	codePage  CodePage
}

// NewFormatterState returns a state that knows nothing about the printer,
// so the first text item initializes it.
func NewFormatterState() *FormatterState {
	return &FormatterState{}
}

// Reset forgets the printer state
func (s *FormatterState) Reset() {
	*s = FormatterState{}
}

// afterInitialize records ESC @ followed by ESC a.
func (s *FormatterState) afterInitialize(align Alignment) {
	*s = FormatterState{known: true, align: align.normalize(), size: 1}
}

// EncodeText writes only the settings that differ from the tracked state.
// With an unknown state the output equals EncodeText.
func (s *FormatterState) EncodeText(text string, opts TextOptions) []byte {
	e := NewEncoder()
	align := opts.Align.normalize()
	size := clamp(opts.FontSize, 1, 8)

	if !s.known {
		e.Initialize()
		writeTextBody(e, text, opts)
	} else {
		if align != s.align {
			e.SetAlignment(align)
		}
		if size != s.size {
			e.SetTextSize(size)
		}
		if opts.Bold != s.bold {
			e.SetBold(opts.Bold)
		}
		if opts.Underline != s.underline {
			e.SetUnderline(opts.Underline)
		}
		if opts.Invert != s.invert {
			e.SetInvert(opts.Invert)
		}
		if opts.CodePage != s.codePage {
			e.SelectCodePage(opts.CodePage)
		}
		if _, ok := opts.CodePage.table(); ok {
			e.Write(EncodeString(opts.CodePage, text))
		} else {
			e.WriteText(text)
		}
		e.LineFeed()
	}

	*s = FormatterState{
		known:     true,
		align:     align,
		size:      size,
		bold:      opts.Bold,
		underline: opts.Underline,
		invert:    opts.Invert,
		codePage:  opts.CodePage,
	}
	return e.Bytes()
}

// EncodeItem encodes item and updates the state. Barcode, QR and image
// encodings start with ESC @, raw bytes make the state unknown.
func (s *FormatterState) EncodeItem(item Item) ([]byte, error) {
	switch it := item.(type) {
	case TextItem:
		return s.EncodeText(it.Text, it.Options), nil
	case *TextItem:
		if it != nil {
			return s.EncodeText(it.Text, it.Options), nil
		}
		return nil, nil
	}

	data, ok, err := EncodeItem(item)
	if err != nil || !ok {
		return data, err
	}

	switch it := item.(type) {
	case ImageItem:
		s.afterInitialize(it.Options.Align)
	case *ImageItem:
		s.afterInitialize(it.Options.Align)
	case BarcodeItem:
		s.afterInitialize(it.Options.Align)
	case *BarcodeItem:
		s.afterInitialize(it.Options.Align)
	case QRCodeItem:
		s.afterInitialize(it.Options.Align)
	case *QRCodeItem:
		s.afterInitialize(it.Options.Align)
	default:
		s.Reset()
	}
	return data, nil
}
