package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/parser"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

const (
	variableLabelPrefix = "Variable: "
	currentPrinterLabel = "Current printer"
	hexPreviewBytes     = 64
)

var paperWidths = []string{"58mm", "80mm", "112mm"}

// PrintBuilder loads a receipt, fills in its variables and queues it
type PrintBuilder struct {
	app         *tview.Application
	service     *printer.Service
	paper       config.PaperConfig
	codePage    escpos.CodePage
	form        *tview.Form
	printerList *tview.DropDown
	paperList   *tview.DropDown
	sourceInput *tview.InputField
	preview     *tview.TextView
	layout      *tview.Flex

	printers       []*printer.Printer
	receipt        *receiptformat.Receipt
	baseDir        string
	variableInputs map[string]*tview.InputField
}

// NewPrintBuilder creates a new print builder screen
func NewPrintBuilder(app *tview.Application, service *printer.Service, paper config.PaperConfig) *PrintBuilder {
	codePage, _ := escpos.ParseCodePage(paper.CodePage)
	p := &PrintBuilder{
		app:            app,
		service:        service,
		paper:          paper,
		codePage:       codePage,
		variableInputs: make(map[string]*tview.InputField),
	}

	p.setupUI()
	return p
}

func (p *PrintBuilder) setupUI() {
	p.printerList = tview.NewDropDown()
	p.printerList.SetLabel("Printer: ")

	p.paperList = tview.NewDropDown()
	p.paperList.SetLabel("Paper: ")
	p.paperList.SetOptions(paperWidths, nil)
	p.paperList.SetCurrentOption(paperIndex(p.paper.Width))

	p.sourceInput = tview.NewInputField()
	p.sourceInput.SetLabel("Receipt: ")
	p.sourceInput.SetPlaceholder("/path/to/receipt.receipt or https://...")

	p.preview = tview.NewTextView()
	p.preview.SetBorder(true)
	p.preview.SetTitle("Preview")
	p.preview.SetDynamicColors(true)
	p.preview.SetWordWrap(true)

	p.form = tview.NewForm()
	p.form.SetBorder(true)
	p.form.SetTitle("Print Receipt")
	p.form.AddFormItem(p.printerList)
	p.form.AddFormItem(p.paperList)
	p.form.AddFormItem(p.sourceInput)
	p.form.AddButton("Load", p.loadReceipt)
	p.form.AddButton("Encode", func() { p.encode(false) })
	p.form.AddButton("Print", func() { p.encode(true) })

	p.layout = tview.NewFlex().
		AddItem(p.form, 0, 1, true).
		AddItem(p.preview, 0, 1, false)

	p.Refresh()
}

// Refresh reloads the printer choices
func (p *PrintBuilder) Refresh() {
	selected, _ := p.printerList.GetCurrentOption()

	p.printers = p.service.Manager().GetAllPrinters()
	options := make([]string, 0, len(p.printers)+1)
	options = append(options, currentPrinterLabel)
	for _, pr := range p.printers {
		name := pr.DisplayName()
		if name == "" {
			name = pr.ID
		}
		options = append(options, name)
	}

	p.printerList.SetOptions(options, nil)
	if selected < 0 || selected >= len(options) {
		selected = 0
	}
	p.printerList.SetCurrentOption(selected)
}

func paperIndex(width string) int {
	for i, w := range paperWidths {
		if w == width {
			return i
		}
	}
	return 1
}

func (p *PrintBuilder) loadReceipt() {
	source := strings.TrimSpace(p.sourceInput.GetText())
	if source == "" {
		p.preview.SetText("[red]Please enter a receipt file path or URL[white]")
		return
	}

	p.preview.SetText("[yellow]Loading...[white]")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		receipt, baseDir, err := parser.LoadReceipt(ctx, source)

		p.app.QueueUpdateDraw(func() {
			if err != nil {
				p.preview.SetText(fmt.Sprintf("[red]Error loading receipt: %v[white]", err))
				return
			}
			p.receipt = receipt
			p.baseDir = baseDir
			if receipt.PaperWidth != "" {
				p.paperList.SetCurrentOption(paperIndex(receipt.PaperWidth))
			}
			p.addVariableInputs(receipt)
			p.preview.SetText(describeReceipt(receipt))
		})
	}()
}

func describeReceipt(receipt *receiptformat.Receipt) string {
	var b strings.Builder
	b.WriteString("[green]✓ Receipt loaded[white]\n\n")
	fmt.Fprintf(&b, "[yellow]Version:[white] %s\n", receipt.Version)
	if receipt.Name != "" {
		fmt.Fprintf(&b, "[yellow]Name:[white] %s\n", receipt.Name)
	}
	if receipt.PaperWidth != "" {
		fmt.Fprintf(&b, "[yellow]Paper:[white] %s\n", receipt.PaperWidth)
	}
	fmt.Fprintf(&b, "[yellow]Commands:[white] %d\n", len(receipt.Commands))

	if len(receipt.Variables) > 0 {
		b.WriteString("\n[yellow]Variables:[white]\n")
		for _, v := range receipt.Variables {
			fmt.Fprintf(&b, "  - %s (%s)\n", v.Let, v.ValueType)
		}
	}
	if len(receipt.VariableArrays) > 0 {
		b.WriteString("\n[yellow]Arrays (use 'print --var-array' to fill):[white]\n")
		for _, a := range receipt.VariableArrays {
			fmt.Fprintf(&b, "  - %s (%d fields)\n", a.Name, len(a.Schema))
		}
	}
	return b.String()
}

func (p *PrintBuilder) addVariableInputs(receipt *receiptformat.Receipt) {
	for i := p.form.GetFormItemCount() - 1; i >= 0; i-- {
		if strings.HasPrefix(p.form.GetFormItem(i).GetLabel(), variableLabelPrefix) {
			p.form.RemoveFormItem(i)
		}
	}

	p.variableInputs = make(map[string]*tview.InputField)
	for _, v := range receipt.Variables {
		input := tview.NewInputField()
		input.SetLabel(variableLabelPrefix + v.Let)
		if v.DefaultValue != nil {
			input.SetText(fmt.Sprintf("%v", v.DefaultValue))
		}
		p.variableInputs[v.Let] = input
		p.form.AddFormItem(input)
	}
}

func (p *PrintBuilder) variableData() map[string]interface{} {
	data := make(map[string]interface{})
	for _, v := range p.receipt.Variables {
		input, ok := p.variableInputs[v.Let]
		if !ok {
			continue
		}
		if text := strings.TrimSpace(input.GetText()); text != "" {
			data[v.Let] = TypedValue(v, text)
		}
	}
	return data
}

// encode compiles the loaded receipt and, when submit is set, queues it
func (p *PrintBuilder) encode(submit bool) {
	if p.receipt == nil {
		p.preview.SetText("[red]Please load a receipt first[white]")
		return
	}

	_, paper := p.paperList.GetCurrentOption()
	payload, err := parser.Encode(p.receipt, parser.Options{
		PaperWidth:   paper,
		BaseDir:      p.baseDir,
		CodePage:     p.codePage,
		VariableData: p.variableData(),
	})
	if err != nil {
		p.preview.SetText(fmt.Sprintf("[red]Error encoding receipt: %v[white]", err))
		return
	}

	if !submit {
		p.preview.SetText(fmt.Sprintf("[green]✓ Encoded %d bytes for %s[white]\n\n[yellow]First bytes:[white]\n%s",
			len(payload), paper, hexHead(payload, hexPreviewBytes)))
		return
	}

	printerID := ""
	if index, _ := p.printerList.GetCurrentOption(); index > 0 && index-1 < len(p.printers) {
		printerID = p.printers[index-1].ID
	}

	jobID, err := p.service.Submit(printerID, payload)
	if err != nil {
		p.preview.SetText(fmt.Sprintf("[red]✗ %v[white]", err))
		return
	}
	if printerID == "" {
		printerID = currentPrinterLabel
	}
	p.preview.SetText(fmt.Sprintf("[green]✓ Print job enqueued[white]\n\n[yellow]Job ID:[white] %s\n[yellow]Printer:[white] %s\n[yellow]Size:[white] %d bytes",
		jobID, printerID, len(payload)))
}

func hexHead(data []byte, n int) string {
	truncated := len(data) > n
	if truncated {
		data = data[:n]
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	out := strings.Join(parts, " ")
	if truncated {
		out += " ..."
	}
	return out
}

// GetRoot returns the root primitive for this screen
func (p *PrintBuilder) GetRoot() tview.Primitive {
	return p.layout
}
