package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// composeReceipt builds a receipt from command-line arguments. Each command
// starts with its type ("text:Hello", "feed:2", "cut") and the arguments that
// follow as name:value pairs set its properties. An align:<value> given before
// the first command is the default alignment for commands without their own.
func composeReceipt(args []string) (*receiptformat.Receipt, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no compose arguments provided")
	}

	receipt := &receiptformat.Receipt{Version: "1.0"}
	var current *receiptformat.Command
	align := ""
	explicitCut := false

	flush := func() {
		if current == nil {
			return
		}
		if current.Align == "" {
			current.Align = align
		}
		receipt.Commands = append(receipt.Commands, *current)
		current = nil
	}

	for _, arg := range args {
		if name, value, ok := strings.Cut(arg, ":"); ok && name == "align" && current == nil {
			align = unquote(value)
			continue
		}

		if isCommandStart(arg) {
			flush()
			cmd, err := parseComposeCommandStart(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to parse command '%s': %w", arg, err)
			}
			if cmd.Type == receiptformat.TypeCut {
				explicitCut = true
			}
			current = cmd
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("unexpected argument '%s' (expected command start)", arg)
		}
		if err := parseCommandProperty(current, arg); err != nil {
			return nil, fmt.Errorf("failed to parse property '%s': %w", arg, err)
		}
	}
	flush()

	// the composed commands already end the receipt
	if explicitCut {
		no, zero := false, 0
		receipt.CutPaper = &no
		receipt.FeedLines = &zero
	}

	return receipt, nil
}

var composeCommands = []string{
	receiptformat.TypeText,
	receiptformat.TypeFeed,
	receiptformat.TypeCut,
	receiptformat.TypeDivider,
	receiptformat.TypeImage,
	receiptformat.TypeBarcode,
	receiptformat.TypeQRCode,
	receiptformat.TypeDrawer,
}

// isCommandStart checks if an argument starts a new command
func isCommandStart(arg string) bool {
	name, _, _ := strings.Cut(arg, ":")
	for _, cmd := range composeCommands {
		if name == cmd {
			return true
		}
	}
	return false
}

// parseComposeCommandStart parses the start of a command (type and first value)
func parseComposeCommandStart(arg string) (*receiptformat.Command, error) {
	name, value, hasValue := strings.Cut(arg, ":")
	cmd := &receiptformat.Command{Type: name}
	if !hasValue {
		return cmd, nil
	}
	value = unquote(value)

	switch name {
	case receiptformat.TypeFeed:
		lines, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid feed lines value: %s", value)
		}
		cmd.Lines = lines
	case receiptformat.TypeCut:
		cmd.Mode = value
	case receiptformat.TypeDivider:
		cmd.Char = value
	case receiptformat.TypeImage:
		path, err := filepath.Abs(value)
		if err != nil {
			return nil, err
		}
		cmd.Path = path
	default:
		cmd.Value = value
	}

	return cmd, nil
}

// parseCommandProperty parses a name:value argument onto cmd
func parseCommandProperty(cmd *receiptformat.Command, arg string) error {
	name, value, ok := strings.Cut(arg, ":")
	if !ok {
		return fmt.Errorf("property must be in format 'name:value', got: %s", arg)
	}
	value = unquote(value)

	number := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number, got %q", name, value)
		}
		return n, nil
	}
	flag := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s must be true or false, got %q", name, value)
		}
		return b, nil
	}

	var err error
	switch name {
	case "align":
		cmd.Align = value
	case "size":
		cmd.Size, err = number()
	case "weight":
		cmd.Weight = value
	case "bold":
		var b bool
		if b, err = flag(); b {
			cmd.Weight = "bold"
		}
	case "italic":
		cmd.Italic, err = flag()
	case "underline":
		cmd.Underline, err = flag()
	case "invert", "inverted":
		cmd.Inverted, err = flag()
	case "code_page":
		cmd.CodePage = value
	case "format", "type":
		cmd.Format = value
	case "height":
		cmd.Height, err = number()
	case "width":
		cmd.Width, err = number()
	case "position":
		cmd.Position = value
	case "ec", "error_correction":
		cmd.ErrorCorrection = value
	case "threshold":
		var n int
		if n, err = number(); err == nil {
			cmd.Threshold = &n
		}
	case "dither":
		cmd.Dither = value
	case "char":
		cmd.Char = value
	case "length":
		cmd.Length, err = number()
	case "lines":
		cmd.Lines, err = number()
	case "mode":
		cmd.Mode = value
	default:
		return fmt.Errorf("unknown property %q for %s", name, cmd.Type)
	}
	return err
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}
