package screens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/escpos-engine/internal/printer"
)

const actionTimeout = 15 * time.Second

// PrintersView lists known printers and manages their names and connections
type PrintersView struct {
	app      *tview.Application
	service  *printer.Service
	list     *tview.List
	details  *tview.TextView
	form     *tview.Form
	layout   *tview.Flex
	printers []*printer.Printer
}

// NewPrintersView creates the printers screen
func NewPrintersView(app *tview.Application, service *printer.Service) *PrintersView {
	v := &PrintersView{
		app:     app,
		service: service,
	}

	v.setupUI()
	return v
}

func (v *PrintersView) setupUI() {
	v.list = tview.NewList()
	v.list.SetBorder(true)
	v.list.SetTitle("Printers")
	v.list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		v.showDetails(index, "")
	})

	v.details = tview.NewTextView()
	v.details.SetBorder(true)
	v.details.SetTitle("Printer Details")
	v.details.SetDynamicColors(true)

	v.form = tview.NewForm()
	v.form.SetBorder(true)
	v.form.SetTitle("Edit Printer Name")
	v.form.AddInputField("Name", "", 30, nil, nil)
	v.form.AddButton("Save", v.saveName)
	v.form.AddButton("Cancel", func() {
		v.app.SetFocus(v.list)
	})

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.details, 0, 2, false).
		AddItem(v.form, 7, 0, false)

	v.layout = tview.NewFlex().
		AddItem(v.list, 0, 1, true).
		AddItem(right, 0, 2, false)

	v.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyDelete {
			v.remove()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'r':
			v.Refresh()
		case 'd':
			v.detect()
		case 'e':
			if p := v.selected(); p != nil {
				v.form.GetFormItem(0).(*tview.InputField).SetText(p.Name)
				v.app.SetFocus(v.form)
			}
		case 'c':
			v.connect(false)
		case 's':
			v.connect(true)
		case 'x':
			v.disconnect()
		default:
			return event
		}
		return nil
	})

	v.Refresh()
}

// Refresh reloads the printer list and keeps the selection
func (v *PrintersView) Refresh() {
	index := v.list.GetCurrentItem()
	v.printers = v.service.Manager().GetAllPrinters()

	v.list.Clear()
	if len(v.printers) == 0 {
		v.list.AddItem("No printers detected", "press 'd' to scan", 0, nil)
		v.details.SetText("[yellow]No printers known yet[white]")
		return
	}

	var currentID string
	if cur := v.service.CurrentConnection(); cur != nil {
		currentID = cur.ID
	}
	for _, p := range v.printers {
		main, secondary := PrinterLabel(p, v.service.IsConnected(p.ID), p.ID == currentID)
		v.list.AddItem(main, secondary, 0, nil)
	}

	if index >= len(v.printers) {
		index = len(v.printers) - 1
	}
	if index < 0 {
		index = 0
	}
	v.list.SetCurrentItem(index)
	v.showDetails(index, "")
}

func (v *PrintersView) selected() *printer.Printer {
	index := v.list.GetCurrentItem()
	if index < 0 || index >= len(v.printers) {
		return nil
	}
	return v.printers[index]
}

func (v *PrintersView) showDetails(index int, message string) {
	if index < 0 || index >= len(v.printers) {
		return
	}
	p := v.printers[index]

	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]ID:[white] %s\n", p.ID)
	fmt.Fprintf(&b, "[yellow]Type:[white] %s\n", strings.ToUpper(p.Type))
	fmt.Fprintf(&b, "[yellow]Description:[white] %s\n", p.Description)
	if p.Name != "" {
		fmt.Fprintf(&b, "[yellow]Name:[white] %s\n", p.Name)
	}
	if p.Device != "" {
		fmt.Fprintf(&b, "[yellow]Device:[white] %s\n", p.Device)
	}
	if p.Host != "" {
		fmt.Fprintf(&b, "[yellow]Address:[white] %s:%d\n", p.Host, p.Port)
	}
	if p.VID > 0 || p.PID > 0 {
		fmt.Fprintf(&b, "[yellow]USB:[white] 0x%04X:0x%04X\n", p.VID, p.PID)
	}

	connected := "no"
	if v.service.IsConnected(p.ID) {
		connected = "[green]yes[white]"
	}
	fmt.Fprintf(&b, "[yellow]Connected:[white] %s\n", connected)

	if message != "" {
		fmt.Fprintf(&b, "\n%s\n", message)
	}
	b.WriteString("\n[yellow]c[white] connect  [yellow]s[white] select  [yellow]x[white] disconnect  [yellow]e[white] rename  [yellow]Del[white] remove  [yellow]d[white] detect  [yellow]r[white] refresh")

	v.details.SetText(b.String())
}

func (v *PrintersView) saveName() {
	p := v.selected()
	if p == nil {
		v.details.SetText("[red]✗ No printer selected[white]")
		return
	}

	name := strings.TrimSpace(v.form.GetFormItem(0).(*tview.InputField).GetText())
	if !v.service.Manager().SetPrinterName(p.ID, name) {
		v.showDetails(v.list.GetCurrentItem(), "[red]✗ Failed to update printer name[white]")
		return
	}

	v.Refresh()
	v.app.SetFocus(v.list)
	v.showDetails(v.list.GetCurrentItem(), fmt.Sprintf("[green]✓ Name updated to %q[white]", name))
}

func (v *PrintersView) remove() {
	p := v.selected()
	if p == nil {
		return
	}
	if !v.service.RemovePrinter(p.ID) {
		v.showDetails(v.list.GetCurrentItem(), "[red]✗ Printer could not be removed[white]")
		return
	}
	v.Refresh()
}

func (v *PrintersView) connect(makeCurrent bool) {
	p := v.selected()
	if p == nil {
		return
	}
	action := "Connecting"
	if makeCurrent {
		action = "Selecting"
	}
	v.async(action, func(ctx context.Context) error {
		if makeCurrent {
			return v.service.Select(ctx, p.ID)
		}
		return v.service.Connect(ctx, p.ID)
	})
}

func (v *PrintersView) disconnect() {
	p := v.selected()
	if p == nil {
		return
	}
	v.async("Disconnecting", func(context.Context) error {
		return v.service.Disconnect(p.ID)
	})
}

func (v *PrintersView) detect() {
	v.async("Detecting", func(context.Context) error {
		_, err := v.service.Manager().DetectPrinters()
		return err
	})
}

// async runs fn off the UI goroutine and reports its outcome in the details pane
func (v *PrintersView) async(action string, fn func(ctx context.Context) error) {
	v.details.SetText(fmt.Sprintf("[yellow]%s...[white]", action))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		err := fn(ctx)

		v.app.QueueUpdateDraw(func() {
			v.Refresh()
			msg := fmt.Sprintf("[green]✓ %s done[white]", action)
			if err != nil {
				msg = fmt.Sprintf("[red]✗ %s failed: %v[white]", action, err)
			}
			if len(v.printers) == 0 {
				v.details.SetText(msg)
				return
			}
			v.showDetails(v.list.GetCurrentItem(), msg)
		})
	}()
}

// GetRoot returns the root primitive for this screen
func (v *PrintersView) GetRoot() tview.Primitive {
	return v.layout
}
