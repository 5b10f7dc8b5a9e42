package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

func TestParser_SimpleReceipt(t *testing.T) {
	receipt := &receiptformat.Receipt{
		Version: "1.0",
		Commands: []receiptformat.Command{
			{Type: "text", Value: "Hello World", Size: 2},
			{Type: "feed", Lines: 1},
			{Type: "cut"},
		},
	}

	parser, err := New(receipt, "80mm")
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	got, err := parser.Execute()
	if err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	var expected []byte
	expected = append(expected, escpos.EncodeText("Hello World", escpos.TextOptions{FontSize: 2})...)
	expected = append(expected, escpos.FeedCommand(1)...)
	expected = append(expected, escpos.CutCommand(escpos.CutFull)...)
	expected = append(expected, escpos.FeedCommand(3)...)
	expected = append(expected, escpos.CutCommand(escpos.CutFull)...)

	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestParser_WithVariables(t *testing.T) {
	receipt := &receiptformat.Receipt{
		Version: "1.0",
		Variables: []receiptformat.Variable{
			{Let: "storeName", ValueType: "string", DefaultValue: "My Store"},
			{Let: "total", ValueType: "double", DefaultValue: 10.50, Prefix: "$"},
			{Let: "cashier", ValueType: "string", DefaultValue: "Sam"},
		},
		Commands: []receiptformat.Command{
			{Type: "text", DynamicValue: "storeName", Size: 2, Align: "center"},
			{Type: "text", DynamicValue: "total"},
			{Type: "text", DynamicValue: "cashier"},
		},
	}

	parser, _ := New(receipt, "80mm")
	parser.SetVariableData(map[string]interface{}{
		"storeName": "Coffee Shop",
		"total":     25.99,
	})

	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile with variables: %v", err)
	}

	expected := []string{"Coffee Shop", "$25.99", "Sam"}
	if len(spec.Items) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(spec.Items))
	}
	for i, text := range expected {
		item := spec.Items[i].(escpos.TextItem)
		if item.Text != text {
			t.Errorf("Item %d: expected %q, got %q", i, text, item.Text)
		}
	}

	first := spec.Items[0].(escpos.TextItem)
	if first.Options.Align != escpos.AlignCenter || first.Options.FontSize != 2 {
		t.Errorf("Expected centered size 2, got %+v", first.Options)
	}
}

func productsReceipt() *receiptformat.Receipt {
	return &receiptformat.Receipt{
		Version: "1.0",
		VariableArrays: []receiptformat.VariableArray{
			{
				Name: "products",
				Schema: []receiptformat.VariableArrayField{
					{Field: "name", ValueType: "string", DefaultValue: "Product"},
					{Field: "price", ValueType: "double", DefaultValue: 0.00, Prefix: "$"},
				},
			},
		},
		Commands: []receiptformat.Command{
			{
				Type:         "item",
				ArrayBinding: "products",
				LeftSide: []receiptformat.Command{
					{Type: "text", ArrayField: "name"},
				},
				RightSide: []receiptformat.Command{
					{Type: "text", ArrayField: "price", Align: "right"},
				},
			},
		},
	}
}

func TestParser_WithArrays(t *testing.T) {
	parser, _ := New(productsReceipt(), "80mm")
	parser.SetVariableArrayData(map[string][]map[string]interface{}{
		"products": {
			{"name": "Coffee", "price": 3.50},
			{"name": "Croissant", "price": 2.75},
			{"name": "Orange Juice", "price": 4.00},
		},
	})

	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile with arrays: %v", err)
	}

	if len(spec.Items) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(spec.Items))
	}

	rows := []struct{ left, right string }{
		{"Coffee", "$3.5"},
		{"Croissant", "$2.75"},
		{"Orange Juice", "$4"},
	}
	for i, row := range rows {
		line := spec.Items[i].(escpos.TextItem).Text
		if len(line) != 48 {
			t.Errorf("Row %d: expected 48 columns, got %d (%q)", i, len(line), line)
		}
		if !strings.HasPrefix(line, row.left) || !strings.HasSuffix(line, " "+row.right) {
			t.Errorf("Row %d: expected %q ... %q, got %q", i, row.left, row.right, line)
		}
	}
}

func TestParser_ArrayDefaults(t *testing.T) {
	parser, _ := New(productsReceipt(), "58mm")

	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}
	if len(spec.Items) != 1 {
		t.Fatalf("Expected one preview row, got %d", len(spec.Items))
	}

	expected := "Product" + strings.Repeat(" ", 32-7-2) + "$0"
	if got := spec.Items[0].(escpos.TextItem).Text; got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestParser_WidthRatio(t *testing.T) {
	receipt := &receiptformat.Receipt{
		Version: "1.0",
		Commands: []receiptformat.Command{
			{
				Type:       "item",
				WidthRatio: "3:1",
				LeftSide:   []receiptformat.Command{{Type: "text", Value: "A very long product description"}},
				RightSide:  []receiptformat.Command{{Type: "text", Value: "$1"}},
			},
		},
	}

	parser, _ := New(receipt, "58mm")
	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}

	// 32 columns split 24:8
	expected := "A very long product desc" + "      $1"
	if got := spec.Items[0].(escpos.TextItem).Text; got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestParser_PrinterCommands(t *testing.T) {
	noCut, noFeed := false, 0
	receipt := &receiptformat.Receipt{
		Version:   "1.0",
		CutPaper:  &noCut,
		FeedLines: &noFeed,
		Commands: []receiptformat.Command{
			{Type: "divider", Char: "="},
			{Type: "barcode", Value: "12345678", Format: "ean8", Position: "none"},
			{Type: "qrcode", Value: "https://example.com", Size: 4, ErrorCorrection: "H", Align: "left"},
			{Type: "command", Hex: "1b 40"},
			{Type: "drawer"},
			{Type: "cut", Mode: "partial"},
			{Type: "hologram"},
		},
	}

	parser, err := New(receipt, "")
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}

	if spec.CutPaper || spec.FeedLines != 0 {
		t.Errorf("Expected no trailer, got cut=%v feed=%d", spec.CutPaper, spec.FeedLines)
	}
	if len(spec.Items) != 6 {
		t.Fatalf("Expected 6 items with the unknown type dropped, got %d", len(spec.Items))
	}

	if got := spec.Items[0].(escpos.TextItem).Text; got != strings.Repeat("=", 32) {
		t.Errorf("Expected 32 '=', got %q", got)
	}

	barcode := spec.Items[1].(escpos.BarcodeItem)
	if barcode.Symbology != escpos.EAN8 || barcode.Options.PrintText || barcode.Options.Align != escpos.AlignCenter {
		t.Errorf("Unexpected barcode item: %+v", barcode)
	}
	if barcode.Options.Width != 2 || barcode.Options.Height != 100 {
		t.Errorf("Expected default barcode geometry, got %+v", barcode.Options)
	}

	qr := spec.Items[2].(escpos.QRCodeItem)
	if qr.Options.Size != 4 || qr.Options.ErrorCorrection != escpos.QRErrorCorrectionH || qr.Options.Align != escpos.AlignLeft {
		t.Errorf("Unexpected QR item: %+v", qr)
	}

	rawChecks := []struct {
		index    int
		expected []byte
	}{
		{3, []byte{0x1B, 0x40}},
		{4, escpos.CashDrawerPulse()},
		{5, escpos.CutCommand(escpos.CutPartial)},
	}
	for _, rc := range rawChecks {
		raw := spec.Items[rc.index].(escpos.RawItem)
		if !bytes.Equal(raw.Data, rc.expected) {
			t.Errorf("Item %d: expected % X, got % X", rc.index, rc.expected, raw.Data)
		}
	}
}

func TestParser_CodePage(t *testing.T) {
	receipt := &receiptformat.Receipt{
		Version:  "1.0",
		CodePage: "cp850",
		Commands: []receiptformat.Command{
			{Type: "text", Value: "café"},
			{Type: "text", Value: "naïve", CodePage: "cp437"},
		},
	}

	parser, _ := New(receipt, "58mm")
	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}

	if cp := spec.Items[0].(escpos.TextItem).Options.CodePage; cp != escpos.CodePagePC850 {
		t.Errorf("Expected receipt code page, got %v", cp)
	}
	if cp := spec.Items[1].(escpos.TextItem).Options.CodePage; cp != escpos.CodePagePC437 {
		t.Errorf("Expected command code page, got %v", cp)
	}
}

func writeTestPNG(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 8))
	for x := 0; x < 16; x++ {
		img.SetGray(x, 0, color.Gray{Y: 0})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	if path != "" {
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatalf("Failed to write PNG: %v", err)
		}
	}
	return buf.Bytes()
}

func TestParser_Images(t *testing.T) {
	dir := t.TempDir()
	data := writeTestPNG(t, filepath.Join(dir, "logo.png"))
	encoded := base64.StdEncoding.EncodeToString(data)

	off := false
	threshold := 100
	receipt := &receiptformat.Receipt{
		Version:    "1.0",
		PaperWidth: "80mm",
		Commands: []receiptformat.Command{
			{Type: "image", Path: "logo.png"},
			{Type: "image", Base64: "data:image/png;base64," + encoded, Width: 16, Dithering: &off, Threshold: &threshold},
			{Type: "image", Base64: encoded, Dither: "bayer", Align: "right"},
		},
	}

	parser, _ := New(receipt, "")
	parser.SetBaseDir(dir)

	spec, err := parser.Compile()
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}

	first := spec.Items[0].(escpos.ImageItem)
	if first.Options.Width != 576 || first.Options.Align != escpos.AlignCenter || !first.Options.Dithering {
		t.Errorf("Expected 80mm defaults, got %+v", first.Options)
	}
	if first.Image.Bounds().Dx() != 16 {
		t.Errorf("Expected decoded 16px image, got %v", first.Image.Bounds())
	}

	second := spec.Items[1].(escpos.ImageItem)
	if second.Options.Width != 16 || second.Options.Dithering || second.Options.Threshold != 100 {
		t.Errorf("Unexpected threshold options: %+v", second.Options)
	}

	third := spec.Items[2].(escpos.ImageItem)
	if third.Options.Align != escpos.AlignRight {
		t.Errorf("Expected right alignment, got %v", third.Options.Align)
	}

	if _, err := escpos.Compose(spec); err != nil {
		t.Errorf("Expected compiled images to encode, got %v", err)
	}
}

func TestParser_BadImage(t *testing.T) {
	receipt := &receiptformat.Receipt{
		Version:  "1.0",
		Commands: []receiptformat.Command{{Type: "image", Base64: "bm90IGFuIGltYWdl"}},
	}

	parser, _ := New(receipt, "58mm")
	_, err := parser.Compile()
	if !errors.Is(err, escpos.ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
}

func TestParser_ItemsDocument(t *testing.T) {
	receipt, err := receiptformat.ParseItems([]byte(`{
		"items": [
			{"type": "text", "data": "TOTAL $15.00", "options": {"alignment": "center", "bold": true}}
		]
	}`))
	if err != nil {
		t.Fatalf("Failed to parse items: %v", err)
	}

	parser, _ := New(receipt, "")
	got, err := parser.Execute()
	if err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	expected, _ := escpos.Compose(escpos.ReceiptSpec{
		Items: []escpos.Item{
			escpos.TextItem{Text: "TOTAL $15.00", Options: escpos.TextOptions{Align: escpos.AlignCenter, Bold: true}},
		},
		CutPaper:  true,
		FeedLines: 3,
	})
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestParser_ItemsClampErrorCorrection(t *testing.T) {
	tests := []struct {
		ec   string
		want int
	}{
		{"7", escpos.QRErrorCorrectionH},
		{"-2", escpos.QRErrorCorrectionL},
	}

	for _, tt := range tests {
		t.Run(tt.ec, func(t *testing.T) {
			receipt, err := receiptformat.ParseItems([]byte(`{"items": [{"type": "qrcode", "data": "abc", "options": {"errorCorrection": ` + tt.ec + `}}], "cutPaper": false, "feedLines": 0}`))
			if err != nil {
				t.Fatalf("Failed to parse items: %v", err)
			}

			got, err := Encode(receipt, Options{})
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			opts := escpos.DefaultQROptions()
			opts.ErrorCorrection = tt.want
			expected, _ := escpos.EncodeQRCode("abc", opts)
			if !bytes.Equal(got, expected) {
				t.Errorf("Expected % X, got % X", expected, got)
			}
		})
	}
}

func TestParser_CompileErrorNamesCommand(t *testing.T) {
	receipt, err := receiptformat.ParseItems([]byte(`{"items": [
		{"type": "text", "data": "ok"},
		{"type": "image", "data": "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB"}
	]}`))
	if err != nil {
		t.Fatalf("Failed to parse items: %v", err)
	}

	parser, _ := New(receipt, "")
	_, err = parser.Compile()
	if err == nil {
		t.Fatal("Expected error for truncated image")
	}
	if !strings.HasPrefix(err.Error(), "command[1] (image): ") {
		t.Errorf("Expected error to name command[1], got %v", err)
	}
	if !errors.Is(err, escpos.ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
}

func TestNew_InvalidPaperWidth(t *testing.T) {
	receipt := &receiptformat.Receipt{Version: "1.0"}
	if _, err := New(receipt, "100mm"); err == nil {
		t.Error("Expected error for invalid paper width")
	}
	if _, err := New(nil, "58mm"); err == nil {
		t.Error("Expected error for nil receipt")
	}
}

func TestFormatValue(t *testing.T) {
	parser := &Parser{}

	tests := []struct {
		value    interface{}
		prefix   string
		suffix   string
		expected string
	}{
		{10.50, "$", "", "$10.5"},
		{5, "", "x", "5x"},
		{"Test", "Prefix:", ":Suffix", "Prefix:Test:Suffix"},
		{nil, "$", "", ""},
	}

	for _, tt := range tests {
		result := parser.formatValue(tt.value, tt.prefix, tt.suffix)
		if result != tt.expected {
			t.Errorf("formatValue(%v, %q, %q) = %q, want %q",
				tt.value, tt.prefix, tt.suffix, result, tt.expected)
		}
	}
}
