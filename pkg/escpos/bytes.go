package escpos

import (
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// StringToBytes projects text to one byte per UTF-16 code unit, keeping the
// low eight bits. Characters above U+00FF are truncated, not rejected.
func StringToBytes(text string) []byte {
	units := utf16.Encode([]rune(text))
	out := make([]byte, len(units))
	for i, u := range units {
		out[i] = byte(u)
	}
	return out
}

// CodePage names a printer character table. The zero value keeps the
// StringToBytes projection and emits no ESC t.
type CodePage int

const (
	CodePageNone CodePage = iota
	CodePagePC437
	CodePagePC850
	CodePagePC852
	CodePagePC858
	CodePagePC860
	CodePagePC863
	CodePagePC865
	CodePagePC866
	CodePageWPC1252
)

type codePageEntry struct {
	name    string
	table   byte
	charmap *charmap.Charmap
}

// table numbers follow the Epson ESC t assignments
var codePages = map[CodePage]codePageEntry{
	CodePagePC437:   {"cp437", 0, charmap.CodePage437},
	CodePagePC850:   {"cp850", 2, charmap.CodePage850},
	CodePagePC860:   {"cp860", 3, charmap.CodePage860},
	CodePagePC863:   {"cp863", 4, charmap.CodePage863},
	CodePagePC865:   {"cp865", 5, charmap.CodePage865},
	CodePageWPC1252: {"cp1252", 16, charmap.Windows1252},
	CodePagePC866:   {"cp866", 17, charmap.CodePage866},
	CodePagePC852:   {"cp852", 18, charmap.CodePage852},
	CodePagePC858:   {"cp858", 19, charmap.CodePage858},
}

// ParseCodePage looks up a page by name ("cp437", "pc850", "windows-1252", ...).
func ParseCodePage(name string) (CodePage, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("pc", "cp", "windows-", "cp", "wpc", "cp", "-", "").Replace(n)
	if n == "" || n == "none" {
		return CodePageNone, true
	}
	for cp, entry := range codePages {
		if entry.name == n {
			return cp, true
		}
	}
	return CodePageNone, false
}

func (cp CodePage) String() string {
	if entry, ok := codePages[cp]; ok {
		return entry.name
	}
	return "none"
}

func (cp CodePage) table() (byte, bool) {
	entry, ok := codePages[cp]
	return entry.table, ok
}

// EncodeString encodes text for the given page. Runes the page cannot
// represent become '?'. Unknown pages fall back to StringToBytes.
func EncodeString(cp CodePage, text string) []byte {
	entry, ok := codePages[cp]
	if !ok {
		return StringToBytes(text)
	}

	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := entry.charmap.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
