package receiptformat

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// Validate validates a Receipt structure
func Validate(r *Receipt) error {
	if r.Version == "" {
		return fmt.Errorf("version is required")
	}
	if r.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected 1.0)", r.Version)
	}

	if r.PaperWidth != "" && !oneOf(r.PaperWidth, "58mm", "80mm", "112mm") {
		return fmt.Errorf("invalid paper_width: %s (must be 58mm, 80mm, or 112mm)", r.PaperWidth)
	}

	if r.CodePage != "" {
		if _, ok := escpos.ParseCodePage(r.CodePage); !ok {
			return fmt.Errorf("unknown code_page: %s", r.CodePage)
		}
	}

	if r.FeedLines != nil && *r.FeedLines < 0 {
		return fmt.Errorf("feed_lines must not be negative")
	}

	// Validate variables
	variableNames := make(map[string]bool)
	for i, v := range r.Variables {
		if v.Let == "" {
			return fmt.Errorf("variable[%d]: 'let' is required", i)
		}
		if variableNames[v.Let] {
			return fmt.Errorf("variable[%d]: duplicate variable name '%s'", i, v.Let)
		}
		variableNames[v.Let] = true

		if err := validateValueType(v.ValueType); err != nil {
			return fmt.Errorf("variable[%d] '%s': %w", i, v.Let, err)
		}
	}

	// Validate variable arrays
	arrayNames := make(map[string]bool)
	for i, arr := range r.VariableArrays {
		if arr.Name == "" {
			return fmt.Errorf("variableArray[%d]: 'name' is required", i)
		}
		if arrayNames[arr.Name] {
			return fmt.Errorf("variableArray[%d]: duplicate array name '%s'", i, arr.Name)
		}
		arrayNames[arr.Name] = true

		fieldNames := make(map[string]bool)
		for j, field := range arr.Schema {
			if field.Field == "" {
				return fmt.Errorf("variableArray[%d] '%s' field[%d]: 'field' is required", i, arr.Name, j)
			}
			if fieldNames[field.Field] {
				return fmt.Errorf("variableArray[%d] '%s' field[%d]: duplicate field name '%s'", i, arr.Name, j, field.Field)
			}
			fieldNames[field.Field] = true

			if err := validateValueType(field.ValueType); err != nil {
				return fmt.Errorf("variableArray[%d] '%s' field[%d] '%s': %w", i, arr.Name, j, field.Field, err)
			}
		}
	}

	if len(r.Commands) == 0 {
		return fmt.Errorf("at least one command is required")
	}

	for i := range r.Commands {
		if err := validateCommand(&r.Commands[i], variableNames, arrayNames); err != nil {
			return fmt.Errorf("command[%d]: %w", i, err)
		}
	}

	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func validateValueType(vt string) error {
	if !oneOf(vt, "string", "number", "double", "boolean") {
		return fmt.Errorf("invalid valueType '%s' (must be string, number, double, or boolean)", vt)
	}
	return nil
}

func validateCommand(cmd *Command, variables map[string]bool, arrays map[string]bool) error {
	if cmd.Type == "" {
		return fmt.Errorf("command type is required")
	}

	if cmd.ArrayBinding != "" && !arrays[cmd.ArrayBinding] {
		return fmt.Errorf("unknown array '%s' in arrayBinding", cmd.ArrayBinding)
	}

	if cmd.Align != "" && !oneOf(cmd.Align, "left", "center", "right") {
		return fmt.Errorf("invalid align '%s' (must be left, center, or right)", cmd.Align)
	}

	switch cmd.Type {
	case TypeText:
		return validateTextCommand(cmd, variables)
	case TypeItem:
		return validateItemCommand(cmd, variables, arrays)
	case TypeImage:
		return validateImageCommand(cmd)
	case TypeBarcode, TypeQRCode:
		return validateCodeCommand(cmd, variables)
	case TypeRaw:
		return validateRawCommand(cmd)
	case TypeCut:
		if cmd.Mode != "" && !oneOf(cmd.Mode, "full", "partial") {
			return fmt.Errorf("invalid cut mode '%s' (must be full or partial)", cmd.Mode)
		}
		return nil
	case TypeFeed, TypeDrawer, TypeDivider:
		return nil
	default:
		// skipped when compiled
		return nil
	}
}

// valueSource checks that exactly one of value, dynamicValue and arrayField
// is set.
func valueSource(cmd *Command, variables map[string]bool) error {
	count := 0
	if cmd.Value != "" {
		count++
	}
	if cmd.DynamicValue != "" {
		count++
		if !variables[cmd.DynamicValue] {
			return fmt.Errorf("unknown variable '%s' in dynamicValue", cmd.DynamicValue)
		}
	}
	if cmd.ArrayField != "" {
		count++
		if cmd.ArrayBinding == "" {
			return fmt.Errorf("arrayField '%s' used without arrayBinding", cmd.ArrayField)
		}
	}

	if count == 0 {
		return fmt.Errorf("%s command must have value, dynamicValue, or arrayField", cmd.Type)
	}
	if count > 1 {
		return fmt.Errorf("%s command cannot have multiple of: value, dynamicValue, arrayField", cmd.Type)
	}
	return nil
}

func validateTextCommand(cmd *Command, variables map[string]bool) error {
	if err := valueSource(cmd, variables); err != nil {
		return err
	}

	if cmd.Size < 0 || cmd.Size > 8 {
		return fmt.Errorf("invalid size %d (must be 1 to 8)", cmd.Size)
	}

	if cmd.CodePage != "" {
		if _, ok := escpos.ParseCodePage(cmd.CodePage); !ok {
			return fmt.Errorf("unknown code_page '%s'", cmd.CodePage)
		}
	}

	return nil
}

func validateItemCommand(cmd *Command, variables map[string]bool, arrays map[string]bool) error {
	if len(cmd.LeftSide) == 0 {
		return fmt.Errorf("item command requires left_side")
	}
	if len(cmd.RightSide) == 0 {
		return fmt.Errorf("item command requires right_side")
	}

	for i := range cmd.LeftSide {
		if err := validateSide(&cmd.LeftSide[i], cmd.ArrayBinding, variables, arrays); err != nil {
			return fmt.Errorf("left_side[%d]: %w", i, err)
		}
	}
	for i := range cmd.RightSide {
		if err := validateSide(&cmd.RightSide[i], cmd.ArrayBinding, variables, arrays); err != nil {
			return fmt.Errorf("right_side[%d]: %w", i, err)
		}
	}

	if cmd.WidthRatio != "" {
		if _, _, err := ParseWidthRatio(cmd.WidthRatio); err != nil {
			return err
		}
	}

	return nil
}

// validateSide checks a column of an item command. Columns are text and
// inherit the array binding of their row.
func validateSide(cmd *Command, binding string, variables map[string]bool, arrays map[string]bool) error {
	if cmd.Type != TypeText {
		return fmt.Errorf("item columns only hold text commands, got %s", cmd.Type)
	}
	side := *cmd
	if side.ArrayBinding == "" {
		side.ArrayBinding = binding
	}
	return validateCommand(&side, variables, arrays)
}

func validateImageCommand(cmd *Command) error {
	if cmd.Path == "" && cmd.Base64 == "" {
		return fmt.Errorf("image command requires either path or base64")
	}
	if cmd.Path != "" && cmd.Base64 != "" {
		return fmt.Errorf("image command cannot have both path and base64")
	}
	if cmd.Threshold != nil && (*cmd.Threshold < 0 || *cmd.Threshold > 255) {
		return fmt.Errorf("invalid threshold %d (must be 0 to 255)", *cmd.Threshold)
	}
	if cmd.Dither != "" {
		if _, ok := escpos.ParseDitherer(cmd.Dither); !ok {
			return fmt.Errorf("unknown dither '%s'", cmd.Dither)
		}
	}
	return nil
}

func validateCodeCommand(cmd *Command, variables map[string]bool) error {
	if err := valueSource(cmd, variables); err != nil {
		return err
	}

	if cmd.Type == TypeQRCode && cmd.ErrorCorrection != "" &&
		!oneOf(strings.ToUpper(cmd.ErrorCorrection), "L", "M", "Q", "H", "0", "1", "2", "3") {
		return fmt.Errorf("invalid error_correction '%s' (must be L, M, Q, or H)", cmd.ErrorCorrection)
	}

	return nil
}

func validateRawCommand(cmd *Command) error {
	if len(cmd.Data) > 0 && cmd.Hex != "" {
		return fmt.Errorf("raw command cannot have both data and hex")
	}
	if cmd.Hex != "" {
		if _, err := DecodeHex(cmd.Hex); err != nil {
			return err
		}
	}
	return nil
}

// DecodeHex decodes hex digits, ignoring spaces.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex '%s': %w", s, err)
	}
	return b, nil
}

// ParseWidthRatio parses "X:Y" into two positive weights.
func ParseWidthRatio(ratio string) (int, int, error) {
	var left, right int
	if _, err := fmt.Sscanf(ratio, "%d:%d", &left, &right); err != nil || left <= 0 || right <= 0 {
		return 0, 0, fmt.Errorf("invalid width_ratio '%s' (must be format X:Y)", ratio)
	}
	return left, right, nil
}
