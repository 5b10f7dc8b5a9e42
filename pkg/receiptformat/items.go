package receiptformat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemsDocument is the flat receipt shape used by POS clients:
// {"items":[{"type","data","options"}],"cutPaper":true,"feedLines":3}.
type ItemsDocument struct {
	Items     []ReceiptItem `json:"items"`
	CutPaper  *bool         `json:"cutPaper,omitempty"`
	FeedLines *int          `json:"feedLines,omitempty"`
}

// ReceiptItem is one entry of an ItemsDocument. Data stays raw because its
// shape depends on the type.
type ReceiptItem struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Options ItemOptions     `json:"options,omitempty"`
}

// BarcodeData is the data object of a barcode item
type BarcodeData struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// ItemOptions merges the option sets of every item type. Numeric options a
// client may send as 0 are pointers so that an explicit zero is clamped like
// any other out-of-range value instead of selecting the default.
type ItemOptions struct {
	Alignment       string `json:"alignment,omitempty"`
	FontSize        int    `json:"fontSize,omitempty"`
	Bold            bool   `json:"bold,omitempty"`
	Underline       bool   `json:"underline,omitempty"`
	Italic          bool   `json:"italic,omitempty"`
	Invert          bool   `json:"invert,omitempty"`
	CodePage        string `json:"codePage,omitempty"`
	Width           *int   `json:"width,omitempty"`
	Height          *int   `json:"height,omitempty"`
	Dithering       *bool  `json:"dithering,omitempty"`
	Threshold       *int   `json:"threshold,omitempty"`
	PrintText       *bool  `json:"printText,omitempty"`
	Size            *int   `json:"size,omitempty"`
	ErrorCorrection *int   `json:"errorCorrection,omitempty"`
}

// ParseItems decodes an ItemsDocument and converts it to a Receipt.
func ParseItems(data []byte) (*Receipt, error) {
	var doc ItemsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse items: %w", err)
	}
	return doc.ToReceipt()
}

// ToReceipt converts the items to receipt commands. Items of unknown type
// are kept as commands of that type and skipped at compile time.
func (d *ItemsDocument) ToReceipt() (*Receipt, error) {
	receipt := &Receipt{
		Version:   "1.0",
		Commands:  make([]Command, 0, len(d.Items)),
		CutPaper:  d.CutPaper,
		FeedLines: d.FeedLines,
	}

	for i, item := range d.Items {
		cmd, err := item.toCommand()
		if err != nil {
			return nil, fmt.Errorf("items[%d] (%s): %w", i, item.Type, err)
		}
		receipt.Commands = append(receipt.Commands, cmd)
	}

	return receipt, nil
}

func (it *ReceiptItem) toCommand() (Command, error) {
	opts := it.Options
	cmd := Command{Type: it.Type, Align: opts.Alignment}

	switch it.Type {
	case TypeText:
		text, err := it.stringData()
		if err != nil {
			return cmd, err
		}
		cmd.Value = text
		cmd.Size = opts.FontSize
		if opts.Bold {
			cmd.Weight = "bold"
		}
		cmd.Underline = opts.Underline
		cmd.Italic = opts.Italic
		cmd.Inverted = opts.Invert
		cmd.CodePage = opts.CodePage

	case TypeImage:
		uri, err := it.stringData()
		if err != nil {
			return cmd, err
		}
		cmd.Path, cmd.Base64 = splitImageURI(uri)
		// a non-positive width keeps the paper width
		if opts.Width != nil {
			cmd.Width = *opts.Width
		}
		if opts.Threshold != nil {
			threshold := clampInt(*opts.Threshold, 0, 255)
			cmd.Threshold = &threshold
		}
		cmd.Dithering = opts.Dithering

	case TypeBarcode:
		var bc BarcodeData
		if err := json.Unmarshal(it.Data, &bc); err != nil {
			return cmd, fmt.Errorf("barcode data must be {content, type}: %w", err)
		}
		cmd.Value = bc.Content
		cmd.Format = bc.Type
		if opts.Width != nil {
			cmd.Width = clampInt(*opts.Width, 1, 6)
		}
		if opts.Height != nil {
			cmd.Height = clampInt(*opts.Height, 1, 255)
		}
		if opts.PrintText != nil && !*opts.PrintText {
			cmd.Position = "none"
		}

	case TypeQRCode:
		text, err := it.stringData()
		if err != nil {
			return cmd, err
		}
		cmd.Value = text
		if opts.Size != nil {
			cmd.Size = clampInt(*opts.Size, 1, 8)
		}
		if opts.ErrorCorrection != nil {
			cmd.ErrorCorrection = strconv.Itoa(clampInt(*opts.ErrorCorrection, 0, 3))
		}

	case TypeRaw:
		// anything but a byte array is ignored
		var nums []int
		if err := json.Unmarshal(it.Data, &nums); err == nil {
			raw := make(RawBytes, 0, len(nums))
			for _, n := range nums {
				raw = append(raw, byte(n))
			}
			cmd.Data = raw
		}
	}

	return cmd, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (it *ReceiptItem) stringData() (string, error) {
	if len(it.Data) == 0 || string(it.Data) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(it.Data, &s); err != nil {
		return "", fmt.Errorf("data must be a string: %w", err)
	}
	return s, nil
}

// splitImageURI returns a file path or a base64 payload. Data URIs and bare
// base64 go to the second result.
func splitImageURI(uri string) (path, b64 string) {
	switch {
	case strings.HasPrefix(uri, "data:"):
		if idx := strings.Index(uri, ","); idx >= 0 {
			return "", uri[idx+1:]
		}
		return "", ""
	case strings.HasPrefix(uri, "file://"):
		return strings.TrimPrefix(uri, "file://"), ""
	case looksLikePath(uri):
		return uri, ""
	default:
		return "", uri
	}
}

func looksLikePath(s string) bool {
	// base64 JPEG payloads start with "/9j/"
	if strings.HasPrefix(s, "/9j/") {
		return false
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "~") {
		return true
	}
	if len(s) > 2 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') {
		return true
	}
	lower := strings.ToLower(s)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
