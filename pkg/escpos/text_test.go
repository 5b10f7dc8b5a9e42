package escpos

import (
	"bytes"
	"testing"
)

func TestStringToBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"ascii", "AB 1", []byte{0x41, 0x42, 0x20, 0x31}},
		{"latin1", "é", []byte{0xE9}},
		{"truncated", "€", []byte{0xAC}},
		{"surrogate pair", "😀", []byte{0x3D, 0x00}},
		{"empty", "", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StringToBytes(tt.input)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Expected % X, got % X", tt.expected, got)
			}
		})
	}
}

func TestEncodeText_Framing(t *testing.T) {
	options := []TextOptions{
		{},
		{Align: AlignCenter, FontSize: 3, Bold: true},
		{Align: AlignRight, FontSize: 99, Underline: true, Invert: true, Italic: true},
		{Align: Alignment(9), FontSize: -4},
	}

	for _, opts := range options {
		got := EncodeText("hello", opts)
		if !bytes.HasPrefix(got, []byte{0x1B, 0x40}) {
			t.Errorf("Expected initialize prefix for %+v, got % X", opts, got)
		}
		if got[len(got)-1] != 0x0A {
			t.Errorf("Expected trailing LF for %+v, got % X", opts, got)
		}
	}
}

func TestEncodeText_FontSizeClamp(t *testing.T) {
	tests := []struct {
		a, b int
	}{
		{10, 8},
		{0, 1},
		{-3, 1},
		{100, 8},
	}

	for _, tt := range tests {
		a := EncodeText("x", TextOptions{FontSize: tt.a})
		b := EncodeText("x", TextOptions{FontSize: tt.b})
		if !bytes.Equal(a, b) {
			t.Errorf("Expected fontSize %d and %d to encode identically, got % X and % X", tt.a, tt.b, a, b)
		}
	}

	got := EncodeText("x", TextOptions{FontSize: 8})
	if got[7] != 0x07 {
		t.Errorf("Expected size field 0x07, got 0x%02X", got[7])
	}
}

func TestEncodeText_OffCommandsAlwaysWritten(t *testing.T) {
	got := EncodeText("hi", TextOptions{})
	expected := []byte{
		0x1B, 0x40,
		0x1B, 0x61, 0x00,
		0x1D, 0x21, 0x00,
		0x1B, 0x45, 0x00,
		0x1B, 0x2D, 0x00,
		0x1D, 0x42, 0x00,
		'h', 'i',
		0x0A,
	}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestEncodeText_AllStyles(t *testing.T) {
	got := EncodeText("A", TextOptions{
		Align:     AlignRight,
		FontSize:  2,
		Bold:      true,
		Underline: true,
		Invert:    true,
	})
	expected := []byte{
		0x1B, 0x40,
		0x1B, 0x61, 0x02,
		0x1D, 0x21, 0x01,
		0x1B, 0x45, 0x01,
		0x1B, 0x2D, 0x01,
		0x1D, 0x42, 0x01,
		'A',
		0x0A,
	}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestEncodeText_ItalicIgnored(t *testing.T) {
	plain := EncodeText("x", TextOptions{})
	italic := EncodeText("x", TextOptions{Italic: true})
	if !bytes.Equal(plain, italic) {
		t.Errorf("Expected italic to be ignored, got % X and % X", plain, italic)
	}
}

func TestEncodeText_CodePage(t *testing.T) {
	got := EncodeText("café", TextOptions{CodePage: CodePagePC850})
	expected := []byte{
		0x1B, 0x40,
		0x1B, 0x61, 0x00,
		0x1D, 0x21, 0x00,
		0x1B, 0x45, 0x00,
		0x1B, 0x2D, 0x00,
		0x1D, 0x42, 0x00,
		0x1B, 0x74, 0x02,
		'c', 'a', 'f', 0x82,
		0x0A,
	}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestEncodeString_Unsupported(t *testing.T) {
	got := EncodeString(CodePagePC437, "€1")
	expected := []byte{'?', '1'}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}

	if got := EncodeString(CodePageNone, "é"); !bytes.Equal(got, []byte{0xE9}) {
		t.Errorf("Expected projection for CodePageNone, got % X", got)
	}
}

func TestParseCodePage(t *testing.T) {
	tests := []struct {
		input    string
		expected CodePage
		ok       bool
	}{
		{"cp437", CodePagePC437, true},
		{"PC850", CodePagePC850, true},
		{"windows-1252", CodePageWPC1252, true},
		{"cp-866", CodePagePC866, true},
		{"", CodePageNone, true},
		{"klingon", CodePageNone, false},
	}

	for _, tt := range tests {
		got, ok := ParseCodePage(tt.input)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("ParseCodePage(%q): expected (%v, %v), got (%v, %v)", tt.input, tt.expected, tt.ok, got, ok)
		}
	}
}
