package escpos

import (
	"bytes"
	"testing"
)

func TestFormatterState_FirstTextIsFull(t *testing.T) {
	s := NewFormatterState()
	opts := TextOptions{Align: AlignCenter, Bold: true}

	if got, expected := s.EncodeText("a", opts), EncodeText("a", opts); !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestFormatterState_OnlyChangedSettings(t *testing.T) {
	s := NewFormatterState()
	s.EncodeText("a", TextOptions{Bold: true})

	got := s.EncodeText("b", TextOptions{})
	expected := []byte{0x1B, 0x45, 0x00, 'b', 0x0A}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}

	got = s.EncodeText("c", TextOptions{})
	expected = []byte{'c', 0x0A}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestFormatterState_AfterBarcode(t *testing.T) {
	s := NewFormatterState()
	if _, err := s.EncodeItem(BarcodeItem{Data: "1", Options: DefaultBarcodeOptions()}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, _ := s.EncodeItem(TextItem{Text: "x"})
	expected := []byte{0x1B, 0x61, 0x00, 'x', 0x0A}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}
}

func TestFormatterState_RawResets(t *testing.T) {
	s := NewFormatterState()
	s.EncodeText("a", TextOptions{})
	if _, err := s.EncodeItem(RawItem{Data: []byte{0x1B, 0x45, 0x01}}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, _ := s.EncodeItem(TextItem{Text: "b"})
	if expected := EncodeText("b", TextOptions{}); !bytes.Equal(got, expected) {
		t.Errorf("Expected full re-initialization % X, got % X", expected, got)
	}
}

func TestCompose_WithFormatterState(t *testing.T) {
	spec := ReceiptSpec{
		Items: []Item{
			TextItem{Text: "one"},
			TextItem{Text: "two"},
		},
		FeedLines: 2,
	}

	got, err := Compose(spec, WithFormatterState())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var expected []byte
	expected = append(expected, EncodeText("one", TextOptions{})...)
	expected = append(expected, 't', 'w', 'o', 0x0A)
	expected = append(expected, 0x1B, 0x64, 0x02)
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected % X, got % X", expected, got)
	}

	plain, _ := Compose(spec)
	if bytes.Equal(plain, got) {
		t.Error("Expected default composition to reset per item")
	}
}
