package escpos

import (
	"bytes"
	"fmt"
	"image"
)

// ItemKind tags a receipt item. The values match the wire "type" field.
type ItemKind string

const (
	KindText    ItemKind = "text"
	KindImage   ItemKind = "image"
	KindBarcode ItemKind = "barcode"
	KindQRCode  ItemKind = "qrcode"
	KindRaw     ItemKind = "command"
)

// Item is one printable element of a receipt. Compose skips values whose
// concrete type is not one of the item types in this package.
type Item interface {
	Kind() ItemKind
}

// TextItem prints one styled line
type TextItem struct {
	Text    string
	Options TextOptions
}

// ImageItem prints a raster image
type ImageItem struct {
	Image   image.Image
	Options ImageOptions
}

// BarcodeItem prints a 1D barcode
type BarcodeItem struct {
	Data      string
	Symbology Symbology
	Options   BarcodeOptions
}

// QRCodeItem prints a QR symbol
type QRCodeItem struct {
	Data    string
	Options QROptions
}

// RawItem is copied to the output unchanged
type RawItem struct {
	Data []byte
}

func (TextItem) Kind() ItemKind    { return KindText }
func (ImageItem) Kind() ItemKind   { return KindImage }
func (BarcodeItem) Kind() ItemKind { return KindBarcode }
func (QRCodeItem) Kind() ItemKind  { return KindQRCode }
func (RawItem) Kind() ItemKind     { return KindRaw }

// ReceiptSpec is an ordered list of items plus the trailer settings.
type ReceiptSpec struct {
	Items     []Item
	CutPaper  bool
	FeedLines int
}

// ItemError reports which item stopped a composition.
type ItemError struct {
	Index int
	Kind  ItemKind
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item[%d] (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// EncodeItem encodes a single item. ok is false for item types this package
// does not know; those produce no bytes and no error.
func EncodeItem(item Item) (data []byte, ok bool, err error) {
	switch it := item.(type) {
	case TextItem:
		return EncodeText(it.Text, it.Options), true, nil
	case *TextItem:
		if it != nil {
			return EncodeItem(*it)
		}
	case ImageItem:
		data, err = EncodeImage(it.Image, it.Options)
		return data, true, err
	case *ImageItem:
		if it != nil {
			return EncodeItem(*it)
		}
	case BarcodeItem:
		data, err = EncodeBarcode(it.Data, it.Symbology, it.Options)
		return data, true, err
	case *BarcodeItem:
		if it != nil {
			return EncodeItem(*it)
		}
	case QRCodeItem:
		data, err = EncodeQRCode(it.Data, it.Options)
		return data, true, err
	case *QRCodeItem:
		if it != nil {
			return EncodeItem(*it)
		}
	case RawItem:
		return bytes.Clone(it.Data), true, nil
	case *RawItem:
		if it != nil {
			return EncodeItem(*it)
		}
	}
	return nil, false, nil
}

type composeConfig struct {
	trackState bool
}

// ComposeOption changes how Compose sequences items
type ComposeOption func(*composeConfig)

// WithFormatterState threads a FormatterState through the receipt so that
// consecutive text items only emit the styling commands that change. The
// output differs from the default per-item reset.
func WithFormatterState() ComposeOption {
	return func(c *composeConfig) {
		c.trackState = true
	}
}

// Compose concatenates the encodings of spec.Items in order, then appends
// ESC d FeedLines when FeedLines > 0 and a full cut when CutPaper is set.
// Unknown item types are skipped. The first failing item aborts the receipt
// with an *ItemError.
func Compose(spec ReceiptSpec, opts ...ComposeOption) ([]byte, error) {
	var cfg composeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var state *FormatterState
	if cfg.trackState {
		state = NewFormatterState()
	}

	var buf bytes.Buffer
	for i, item := range spec.Items {
		if item == nil {
			continue
		}

		var data []byte
		var err error
		if state != nil {
			data, err = state.EncodeItem(item)
		} else {
			data, _, err = EncodeItem(item)
		}
		if err != nil {
			return nil, &ItemError{Index: i, Kind: item.Kind(), Err: err}
		}
		buf.Write(data)
	}

	if spec.FeedLines > 0 {
		buf.Write(FeedCommand(spec.FeedLines))
	}
	if spec.CutPaper {
		buf.Write(CutCommand(CutFull))
	}

	return buf.Bytes(), nil
}
