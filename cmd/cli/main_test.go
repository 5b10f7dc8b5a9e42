package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

func TestComposeReceipt(t *testing.T) {
	receipt, err := composeReceipt([]string{
		"align:center",
		"text:\"Title\"", "size:2", "bold:true",
		"barcode:4006381333931", "type:ean13", "height:80", "align:left",
		"feed:2",
		"divider", "char:=",
		"cut:partial",
	})
	if err != nil {
		t.Fatalf("composeReceipt failed: %v", err)
	}

	if len(receipt.Commands) != 5 {
		t.Fatalf("Expected 5 commands, got %d", len(receipt.Commands))
	}

	text := receipt.Commands[0]
	if text.Type != receiptformat.TypeText || text.Value != "Title" || text.Size != 2 || text.Weight != "bold" {
		t.Errorf("Unexpected text command: %+v", text)
	}
	if text.Align != "center" {
		t.Errorf("Expected default alignment center, got %q", text.Align)
	}

	barcode := receipt.Commands[1]
	if barcode.Format != "ean13" || barcode.Height != 80 || barcode.Align != "left" {
		t.Errorf("Unexpected barcode command: %+v", barcode)
	}

	if receipt.Commands[2].Lines != 2 {
		t.Errorf("Expected feed of 2 lines, got %d", receipt.Commands[2].Lines)
	}
	if receipt.Commands[3].Char != "=" {
		t.Errorf("Expected divider char '=', got %q", receipt.Commands[3].Char)
	}
	if receipt.Commands[4].Mode != "partial" {
		t.Errorf("Expected partial cut, got %q", receipt.Commands[4].Mode)
	}

	if receipt.ShouldCut() {
		t.Error("Expected trailer cut disabled when the receipt cuts itself")
	}
	if receipt.TrailingFeed() != 0 {
		t.Errorf("Expected no trailing feed, got %d", receipt.TrailingFeed())
	}
}

func TestComposeReceipt_KeepsTrailerWithoutCut(t *testing.T) {
	receipt, err := composeReceipt([]string{"text:Hello"})
	if err != nil {
		t.Fatalf("composeReceipt failed: %v", err)
	}
	if !receipt.ShouldCut() {
		t.Error("Expected default trailer cut")
	}
}

func TestComposeReceipt_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"empty", nil},
		{"property first", []string{"size:2"}},
		{"bad feed", []string{"feed:many"}},
		{"bad number", []string{"text:Hi", "size:big"}},
		{"bad bool", []string{"text:Hi", "bold:maybe"}},
		{"unknown property", []string{"text:Hi", "color:red"}},
		{"not a property", []string{"text:Hi", "loose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := composeReceipt(tt.args); err == nil {
				t.Errorf("Expected error for %v", tt.args)
			}
		})
	}
}

func TestComposeReceipt_ImagePathIsAbsolute(t *testing.T) {
	receipt, err := composeReceipt([]string{"image:logo.png"})
	if err != nil {
		t.Fatalf("composeReceipt failed: %v", err)
	}
	if !filepath.IsAbs(receipt.Commands[0].Path) {
		t.Errorf("Expected absolute image path, got %q", receipt.Commands[0].Path)
	}
}

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"list", "list"},
		{"Kitchen Printer", `"Kitchen Printer"`},
		{"", `""`},
		{`items=[{"name":"Tea"}]`, `'items=[{"name":"Tea"}]'`},
		{"it's", `"it's"`},
	}

	for _, tt := range tests {
		if got := quoteArg(tt.in); got != tt.want {
			t.Errorf("quoteArg(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestParseLocal(t *testing.T) {
	opts, err := parseLocal("encode", []string{"receipt.json", "-paper", "58mm", "-var", "total=12.5", "-var", "name=Ann", "-o", "out.bin"})
	if err != nil {
		t.Fatalf("parseLocal failed: %v", err)
	}
	if opts.source != "receipt.json" || opts.paper != "58mm" || opts.output != "out.bin" {
		t.Errorf("Unexpected options: %+v", opts)
	}
	if opts.vars["total"] != "12.5" || opts.vars["name"] != "Ann" {
		t.Errorf("Unexpected vars: %v", opts.vars)
	}

	if _, err := parseLocal("encode", []string{"-paper", "58mm"}); err == nil {
		t.Error("Expected error without a receipt path")
	}
	if _, err := parseLocal("encode", []string{"a.json", "-var", "novalue"}); err == nil {
		t.Error("Expected error for malformed -var")
	}
}

func TestRunCommand(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/command" {
			t.Errorf("Expected /command, got %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		received = body["command"]

		if received == "job status missing" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"error":"job not found: missing"}`))
			return
		}
		w.Write([]byte(`{"success":true,"message":"Printer renamed"}`))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, http: srv.Client()}

	if err := runCommand(client, []string{"printer", "rename", "net-1", "Kitchen Printer"}, false); err != nil {
		t.Fatalf("runCommand failed: %v", err)
	}
	if received != `printer rename net-1 "Kitchen Printer"` {
		t.Errorf("Unexpected command sent: %s", received)
	}

	err := runCommand(client, []string{"job", "status", "missing"}, false)
	if err == nil || err.Error() != "job not found: missing" {
		t.Errorf("Expected server error, got %v", err)
	}
}

func TestRunCompose(t *testing.T) {
	var body struct {
		PrinterID string          `json:"printer_id"`
		Receipt   json.RawMessage `json:"receipt"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/print" {
			t.Errorf("Expected /print, got %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"success":true,"job_id":"job-1","size":42}`))
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, http: srv.Client()}
	if err := runCompose(client, []string{"current"}, []string{"text:Hello", "cut"}, false); err != nil {
		t.Fatalf("runCompose failed: %v", err)
	}

	if body.PrinterID != "" {
		t.Errorf("Expected current printer to be sent as empty id, got %q", body.PrinterID)
	}
	receipt, err := receiptformat.Parse(body.Receipt)
	if err != nil {
		t.Fatalf("Server received an invalid receipt: %v", err)
	}
	if len(receipt.Commands) != 2 || receipt.Commands[0].Value != "Hello" {
		t.Errorf("Unexpected receipt commands: %+v", receipt.Commands)
	}

	if err := runCompose(client, nil, []string{"text:Hello"}, false); err == nil {
		t.Error("Expected usage error without a printer id")
	}
}

func TestRunEncode_WritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.json")
	doc := `{"version":"1.0","paper_width":"58mm","commands":[{"type":"text","value":"Hi"}]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.bin")
	if err := runEncode([]string{path, "-o", out}); err != nil {
		t.Fatalf("runEncode failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if !bytes.Contains(data, []byte("Hi")) {
		t.Errorf("Expected encoded text in output, got % X", data)
	}
	// the default trailer ends with a full cut
	if !bytes.HasSuffix(data, escpos.CutCommand(escpos.CutFull)) {
		t.Errorf("Expected output to end with a cut, got % X", data)
	}
}
