package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

func (p *Parser) loadImage(cmd *receiptformat.Command) (image.Image, error) {
	switch {
	case cmd.Base64 != "":
		return DecodeBase64Image(cmd.Base64)
	case cmd.Path != "":
		path := cmd.Path
		if !filepath.IsAbs(path) && p.baseDir != "" {
			path = filepath.Join(p.baseDir, path)
		}
		return LoadImageFile(path)
	default:
		return nil, fmt.Errorf("%w: no path or base64", escpos.ErrInvalidImage)
	}
}

// LoadImageFile decodes a PNG, JPEG, GIF, BMP or WebP file.
func LoadImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return DecodeImage(data)
}

// DecodeBase64Image decodes standard base64, optionally wrapped in a data URI.
func DecodeBase64Image(s string) (image.Image, error) {
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			s = s[idx+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: bad base64: %v", escpos.ErrInvalidImage, err)
		}
	}
	return DecodeImage(data)
}

// DecodeImage decodes any registered image format.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", escpos.ErrInvalidImage, err)
	}
	return img, nil
}
