package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// Compile resolves the receipt and converts each command to an encoder item.
// Command types the encoder does not know are dropped. A failing command is
// reported by its index in the resolved command list.
func (p *Parser) Compile() (escpos.ReceiptSpec, error) {
	spec := escpos.ReceiptSpec{
		CutPaper:  p.receipt.ShouldCut(),
		FeedLines: p.receipt.TrailingFeed(),
	}

	cmds, err := p.Resolve()
	if err != nil {
		return spec, err
	}

	for i := range cmds {
		item, err := p.compileCommand(&cmds[i])
		if err != nil {
			return spec, fmt.Errorf("command[%d] (%s): %w", i, cmds[i].Type, err)
		}
		if item != nil {
			spec.Items = append(spec.Items, item)
		}
	}

	return spec, nil
}

func (p *Parser) compileCommand(cmd *receiptformat.Command) (escpos.Item, error) {
	switch cmd.Type {
	case receiptformat.TypeText:
		return escpos.TextItem{Text: cmd.Value, Options: p.textOptions(cmd)}, nil

	case receiptformat.TypeDivider:
		return p.compileDivider(cmd), nil

	case receiptformat.TypeItem:
		return p.compileColumns(cmd)

	case receiptformat.TypeImage:
		img, err := p.loadImage(cmd)
		if err != nil {
			return nil, err
		}
		return escpos.ImageItem{Image: img, Options: p.imageOptions(cmd)}, nil

	case receiptformat.TypeBarcode:
		opts := escpos.DefaultBarcodeOptions()
		if cmd.Width > 0 {
			opts.Width = cmd.Width
		}
		if cmd.Height > 0 {
			opts.Height = cmd.Height
		}
		opts.PrintText = cmd.Position != "none"
		if cmd.Align != "" {
			opts.Align = escpos.ParseAlignment(cmd.Align)
		}
		return escpos.BarcodeItem{
			Data:      cmd.Value,
			Symbology: escpos.ParseSymbology(cmd.Format),
			Options:   opts,
		}, nil

	case receiptformat.TypeQRCode:
		opts := escpos.DefaultQROptions()
		if cmd.Size > 0 {
			opts.Size = cmd.Size
		}
		if cmd.ErrorCorrection != "" {
			opts.ErrorCorrection = escpos.ParseQRErrorCorrection(cmd.ErrorCorrection)
		}
		if cmd.Align != "" {
			opts.Align = escpos.ParseAlignment(cmd.Align)
		}
		return escpos.QRCodeItem{Data: cmd.Value, Options: opts}, nil

	case receiptformat.TypeRaw:
		if cmd.Hex != "" {
			data, err := receiptformat.DecodeHex(cmd.Hex)
			if err != nil {
				return nil, err
			}
			return escpos.RawItem{Data: data}, nil
		}
		return escpos.RawItem{Data: []byte(cmd.Data)}, nil

	case receiptformat.TypeFeed:
		return escpos.RawItem{Data: escpos.FeedCommand(cmd.Lines)}, nil

	case receiptformat.TypeCut:
		return escpos.RawItem{Data: escpos.CutCommand(escpos.ParseCutKind(cmd.Mode))}, nil

	case receiptformat.TypeDrawer:
		return escpos.RawItem{Data: escpos.CashDrawerPulse()}, nil

	default:
		return nil, nil
	}
}

func (p *Parser) textOptions(cmd *receiptformat.Command) escpos.TextOptions {
	codePage := p.codePage
	if cmd.CodePage != "" {
		if cp, ok := escpos.ParseCodePage(cmd.CodePage); ok {
			codePage = cp
		}
	}

	return escpos.TextOptions{
		Align:     escpos.ParseAlignment(cmd.Align),
		FontSize:  cmd.Size,
		Bold:      cmd.IsBold(),
		Underline: cmd.Underline,
		Italic:    cmd.Italic,
		Invert:    cmd.Inverted,
		CodePage:  codePage,
	}
}

func (p *Parser) imageOptions(cmd *receiptformat.Command) escpos.ImageOptions {
	// 58mm paper is DefaultImageWidth dots
	opts := escpos.DefaultImageOptions()
	if dots, ok := receiptformat.PaperDots(p.paperWidth); ok {
		opts.Width = dots
	}
	if cmd.Width > 0 {
		opts.Width = cmd.Width
	}
	if cmd.Dithering != nil {
		opts.Dithering = *cmd.Dithering
	}
	if cmd.Threshold != nil {
		opts.Threshold = *cmd.Threshold
	}
	if d, ok := escpos.ParseDitherer(cmd.Dither); ok {
		opts.Ditherer = d
	}
	if cmd.Align != "" {
		opts.Align = escpos.ParseAlignment(cmd.Align)
	}
	return opts
}

func (p *Parser) columns(size int) int {
	cols, _ := receiptformat.PaperColumns(p.paperWidth)
	if size > 1 {
		cols /= size
	}
	if cols < 1 {
		cols = 1
	}
	return cols
}

func (p *Parser) compileDivider(cmd *receiptformat.Command) escpos.Item {
	char := cmd.Char
	if char == "" {
		char = "-"
	}
	length := cmd.Length
	if length <= 0 {
		length = p.columns(cmd.Size) / utf8.RuneCountInString(char)
	}

	opts := p.textOptions(cmd)
	return escpos.TextItem{Text: strings.Repeat(char, length), Options: opts}
}

// compileColumns lays out an item command as one text line: the left column
// flush left, the right column flush right, split by width_ratio.
func (p *Parser) compileColumns(cmd *receiptformat.Command) (escpos.Item, error) {
	left := joinValues(cmd.LeftSide)
	right := joinValues(cmd.RightSide)

	style := cmd
	if len(cmd.LeftSide) > 0 {
		style = &cmd.LeftSide[0]
	}
	opts := p.textOptions(style)
	opts.Align = escpos.AlignLeft
	cols := p.columns(opts.FontSize)

	rightWidth := 0
	if right != "" {
		// keep one space between the columns
		rightWidth = utf8.RuneCountInString(right) + 1
	}
	if cmd.WidthRatio != "" {
		l, r, err := receiptformat.ParseWidthRatio(cmd.WidthRatio)
		if err != nil {
			return nil, err
		}
		rightWidth = cols * r / (l + r)
	}
	if rightWidth > cols {
		rightWidth = cols
	}
	leftWidth := cols - rightWidth

	line := padRight(truncate(left, leftWidth), leftWidth) + padLeft(truncate(right, rightWidth), rightWidth)
	return escpos.TextItem{Text: line, Options: opts}, nil
}

func joinValues(cmds []receiptformat.Command) string {
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c.Value != "" {
			parts = append(parts, c.Value)
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

func padRight(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}
