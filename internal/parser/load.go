package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// maxReceiptSize caps documents fetched over HTTP
const maxReceiptSize = 16 << 20

var httpClient = &http.Client{Timeout: 30 * time.Second}

// IsURL reports whether source should be fetched instead of read from disk
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// LoadReceipt reads a .receipt or items document from a file path or an
// http(s) URL. For files the returned base dir is the file's directory so
// relative image paths resolve next to it.
func LoadReceipt(ctx context.Context, source string) (*receiptformat.Receipt, string, error) {
	if IsURL(source) {
		receipt, err := loadReceiptFromURL(ctx, source)
		return receipt, "", err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read receipt file: %w", err)
	}
	receipt, err := receiptformat.ParseAny(data)
	if err != nil {
		return nil, "", err
	}
	return receipt, filepath.Dir(source), nil
}

func loadReceiptFromURL(ctx context.Context, url string) (*receiptformat.Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt URL: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch receipt: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReceiptSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt from URL: %w", err)
	}

	return receiptformat.ParseAny(data)
}

// Options carries the per-request inputs of a one-shot encode
type Options struct {
	PaperWidth        string
	BaseDir           string
	CodePage          escpos.CodePage
	VariableData      map[string]interface{}
	VariableArrayData map[string][]map[string]interface{}
}

// Prepare builds a parser for receipt with opts applied
func Prepare(receipt *receiptformat.Receipt, opts Options) (*Parser, error) {
	p, err := New(receipt, opts.PaperWidth)
	if err != nil {
		return nil, err
	}
	if opts.BaseDir != "" {
		p.SetBaseDir(opts.BaseDir)
	}
	p.SetDefaultCodePage(opts.CodePage)
	if opts.VariableData != nil {
		p.SetVariableData(opts.VariableData)
	}
	if opts.VariableArrayData != nil {
		p.SetVariableArrayData(opts.VariableArrayData)
	}
	return p, nil
}

// Encode compiles receipt with opts and returns the printer bytes
func Encode(receipt *receiptformat.Receipt, opts Options) ([]byte, error) {
	p, err := Prepare(receipt, opts)
	if err != nil {
		return nil, err
	}
	return p.Execute()
}
