package escpos

import (
	"bytes"
	"testing"
)

func TestFeedCommand(t *testing.T) {
	tests := []struct {
		lines    int
		expected []byte
	}{
		{lines: 3, expected: []byte{0x1B, 0x64, 0x03}},
		{lines: 0, expected: []byte{0x1B, 0x64, 0x01}},
		{lines: -5, expected: []byte{0x1B, 0x64, 0x01}},
		{lines: 255, expected: []byte{0x1B, 0x64, 0xFF}},
		{lines: 1000, expected: []byte{0x1B, 0x64, 0xFF}},
	}

	for _, tt := range tests {
		got := FeedCommand(tt.lines)
		if !bytes.Equal(got, tt.expected) {
			t.Errorf("FeedCommand(%d): expected % X, got % X", tt.lines, tt.expected, got)
		}
	}
}

func TestCutCommand(t *testing.T) {
	tests := []struct {
		name     string
		kind     CutKind
		expected []byte
	}{
		{"full", CutFull, []byte{0x1B, 0x64, 0x03, 0x1D, 0x56, 0x00}},
		{"partial", CutPartial, []byte{0x1B, 0x64, 0x03, 0x1D, 0x56, 0x01}},
		{"unknown falls back to full", CutKind(42), []byte{0x1B, 0x64, 0x03, 0x1D, 0x56, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CutCommand(tt.kind)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Expected % X, got % X", tt.expected, got)
			}
			if !bytes.HasPrefix(got, []byte{0x1B, 0x64, 0x03}) {
				t.Errorf("Expected cut to start with feed-3, got % X", got)
			}
		})
	}
}

func TestCashDrawerPulse(t *testing.T) {
	expected := []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}
	if got := CashDrawerPulse(); !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestParseAlignment(t *testing.T) {
	tests := map[string]Alignment{
		"left":    AlignLeft,
		"center":  AlignCenter,
		"Centre":  AlignCenter,
		" right ": AlignRight,
		"justify": AlignLeft,
		"":        AlignLeft,
	}

	for input, expected := range tests {
		if got := ParseAlignment(input); got != expected {
			t.Errorf("ParseAlignment(%q): expected %v, got %v", input, expected, got)
		}
	}
}

func TestSetAlignment(t *testing.T) {
	tests := []struct {
		align    Alignment
		expected byte
	}{
		{AlignLeft, 0x00},
		{AlignCenter, 0x01},
		{AlignRight, 0x02},
		{Alignment(7), 0x00},
		{Alignment(-1), 0x00},
	}

	for _, tt := range tests {
		e := NewEncoder()
		e.SetAlignment(tt.align)
		expected := []byte{0x1B, 0x61, tt.expected}
		if got := e.Bytes(); !bytes.Equal(got, expected) {
			t.Errorf("SetAlignment(%d): expected % X, got % X", tt.align, expected, got)
		}
	}
}

func TestParseCutKind(t *testing.T) {
	if ParseCutKind("partial") != CutPartial {
		t.Error("Expected partial cut")
	}
	if ParseCutKind("full") != CutFull {
		t.Error("Expected full cut")
	}
	if ParseCutKind("zigzag") != CutFull {
		t.Error("Expected unknown cut kinds to be full")
	}
}

func TestEncoder_BytesIsACopy(t *testing.T) {
	e := NewEncoder()
	e.Initialize()

	out := e.Bytes()
	e.LineFeed()
	out[0] = 0x00

	if e.Len() != 3 {
		t.Errorf("Expected 3 buffered bytes, got %d", e.Len())
	}
	if got := e.Bytes(); got[0] != ESC {
		t.Errorf("Expected buffer to be unaffected by caller mutation, got % X", got)
	}
}
