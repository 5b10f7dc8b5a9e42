// Package parser resolves receipt templates and compiles them to ESC/POS
package parser

import (
	"fmt"

	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// Parser executes receipt commands with variable and array support
type Parser struct {
	receipt           *receiptformat.Receipt
	paperWidth        string
	baseDir           string
	codePage          escpos.CodePage
	variableData      map[string]interface{}
	variableArrayData map[string][]map[string]interface{}
}

// New creates a new parser. An empty paperWidth uses the receipt's own
// paper_width, then 58mm.
func New(receipt *receiptformat.Receipt, paperWidth string) (*Parser, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt is required")
	}

	if paperWidth == "" {
		paperWidth = receipt.PaperWidth
	}
	if paperWidth == "" {
		paperWidth = receiptformat.DefaultPaperWidth
	}
	if _, ok := receiptformat.PaperDots(paperWidth); !ok {
		return nil, fmt.Errorf("invalid paper width: %s", paperWidth)
	}

	codePage, ok := escpos.ParseCodePage(receipt.CodePage)
	if !ok {
		return nil, fmt.Errorf("unknown code page: %s", receipt.CodePage)
	}

	return &Parser{
		receipt:           receipt,
		paperWidth:        paperWidth,
		codePage:          codePage,
		variableData:      make(map[string]interface{}),
		variableArrayData: make(map[string][]map[string]interface{}),
	}, nil
}

// SetVariableData sets the data for template variables
func (p *Parser) SetVariableData(data map[string]interface{}) {
	p.variableData = data
}

// SetVariableArrayData sets the data for variable arrays
func (p *Parser) SetVariableArrayData(data map[string][]map[string]interface{}) {
	p.variableArrayData = data
}

// SetBaseDir sets the directory relative image paths are read from.
func (p *Parser) SetBaseDir(dir string) {
	p.baseDir = dir
}

// SetDefaultCodePage selects the code page for text commands that do not
// name one and whose receipt has none.
func (p *Parser) SetDefaultCodePage(cp escpos.CodePage) {
	if p.receipt.CodePage == "" {
		p.codePage = cp
	}
}

// PaperWidth returns the paper width the parser lays out for.
func (p *Parser) PaperWidth() string {
	return p.paperWidth
}

// Execute compiles the receipt and encodes it to printer bytes
func (p *Parser) Execute(opts ...escpos.ComposeOption) ([]byte, error) {
	spec, err := p.Compile()
	if err != nil {
		return nil, err
	}
	return escpos.Compose(spec, opts...)
}

// Resolve expands array bindings and substitutes variables. The result
// holds only literal values.
func (p *Parser) Resolve() ([]receiptformat.Command, error) {
	var out []receiptformat.Command
	for i := range p.receipt.Commands {
		cmds, err := p.resolveTop(&p.receipt.Commands[i])
		if err != nil {
			return nil, fmt.Errorf("command[%d]: %w", i, err)
		}
		out = append(out, cmds...)
	}
	return out, nil
}

func (p *Parser) resolveTop(cmd *receiptformat.Command) ([]receiptformat.Command, error) {
	if cmd.ArrayBinding != "" {
		return p.resolveArrayBound(cmd)
	}
	return []receiptformat.Command{*p.resolveCommand(cmd)}, nil
}

func (p *Parser) resolveArrayBound(cmd *receiptformat.Command) ([]receiptformat.Command, error) {
	arrayName := cmd.ArrayBinding

	var schema *receiptformat.VariableArray
	for i := range p.receipt.VariableArrays {
		if p.receipt.VariableArrays[i].Name == arrayName {
			schema = &p.receipt.VariableArrays[i]
			break
		}
	}
	if schema == nil {
		return nil, fmt.Errorf("unknown variable array: %s", arrayName)
	}

	dataEntries := p.variableArrayData[arrayName]

	// If no data provided, use defaults for preview
	if len(dataEntries) == 0 {
		defaultEntry := make(map[string]interface{})
		for _, field := range schema.Schema {
			defaultEntry[field.Field] = field.DefaultValue
		}
		dataEntries = []map[string]interface{}{defaultEntry}
	}

	out := make([]receiptformat.Command, 0, len(dataEntries))
	for _, entry := range dataEntries {
		expanded := p.expandArrayFields(cmd, schema, entry)
		out = append(out, *p.resolveCommand(expanded))
	}
	return out, nil
}

func (p *Parser) expandArrayFields(cmd *receiptformat.Command, schema *receiptformat.VariableArray, data map[string]interface{}) *receiptformat.Command {
	expanded := *cmd
	expanded.ArrayBinding = ""

	if expanded.ArrayField != "" {
		var fieldDef *receiptformat.VariableArrayField
		for i := range schema.Schema {
			if schema.Schema[i].Field == expanded.ArrayField {
				fieldDef = &schema.Schema[i]
				break
			}
		}

		if fieldDef != nil {
			value, ok := data[expanded.ArrayField]
			if !ok || value == nil {
				value = fieldDef.DefaultValue
			}

			expanded.Value = p.formatValue(value, fieldDef.Prefix, fieldDef.Suffix)
			expanded.ArrayField = ""
		}
	}

	// columns are copied so every row gets its own values
	expanded.LeftSide = p.expandSide(cmd.LeftSide, schema, data)
	expanded.RightSide = p.expandSide(cmd.RightSide, schema, data)

	return &expanded
}

func (p *Parser) expandSide(side []receiptformat.Command, schema *receiptformat.VariableArray, data map[string]interface{}) []receiptformat.Command {
	if len(side) == 0 {
		return nil
	}
	out := make([]receiptformat.Command, len(side))
	for i := range side {
		out[i] = *p.expandArrayFields(&side[i], schema, data)
	}
	return out
}

func (p *Parser) resolveCommand(cmd *receiptformat.Command) *receiptformat.Command {
	resolved := *cmd

	if resolved.DynamicValue != "" {
		var varDef *receiptformat.Variable
		for i := range p.receipt.Variables {
			if p.receipt.Variables[i].Let == resolved.DynamicValue {
				varDef = &p.receipt.Variables[i]
				break
			}
		}

		if varDef != nil {
			value, ok := p.variableData[resolved.DynamicValue]
			if !ok || value == nil {
				value = varDef.DefaultValue
			}

			resolved.Value = p.formatValue(value, varDef.Prefix, varDef.Suffix)
			resolved.DynamicValue = ""
		}
	}

	resolved.LeftSide = p.resolveSide(cmd.LeftSide)
	resolved.RightSide = p.resolveSide(cmd.RightSide)

	return &resolved
}

func (p *Parser) resolveSide(side []receiptformat.Command) []receiptformat.Command {
	if len(side) == 0 {
		return nil
	}
	out := make([]receiptformat.Command, len(side))
	for i := range side {
		out[i] = *p.resolveCommand(&side[i])
	}
	return out
}

func (p *Parser) formatValue(value interface{}, prefix string, suffix string) string {
	if value == nil {
		return ""
	}

	return fmt.Sprintf("%s%v%s", prefix, value, suffix)
}
