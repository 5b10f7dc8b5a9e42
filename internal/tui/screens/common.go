// Package screens holds the full-screen views the dashboard switches to
package screens

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/pkg/receiptformat"
)

// JobStatusIcon returns the marker drawn next to a job status
func JobStatusIcon(status printer.JobStatus) string {
	switch status {
	case printer.JobQueued:
		return "⏳"
	case printer.JobPrinting:
		return "🟡"
	case printer.JobCompleted:
		return "✅"
	case printer.JobFailed:
		return "❌"
	default:
		return "⚪"
	}
}

// PrinterLabel returns the main and secondary list text for a printer
func PrinterLabel(p *printer.Printer, connected, current bool) (string, string) {
	name := p.DisplayName()
	if name == "" {
		name = p.ID
	}

	icon := "⚪"
	if connected {
		icon = "🟢"
	}
	main := fmt.Sprintf("%s %s", icon, name)
	if current {
		main += " [yellow]★[-]"
	}

	return main, fmt.Sprintf("%s • %s", strings.ToUpper(p.Type), printerAddress(p))
}

func printerAddress(p *printer.Printer) string {
	switch {
	case p.Host != "":
		return fmt.Sprintf("%s:%d", p.Host, p.Port)
	case p.Device != "":
		return p.Device
	case p.VID != 0 || p.PID != 0:
		return fmt.Sprintf("%04x:%04x", p.VID, p.PID)
	default:
		return p.ID
	}
}

// TypedValue converts form input to the value type a receipt variable
// declares. Input that does not parse is passed through as text.
func TypedValue(v receiptformat.Variable, text string) interface{} {
	switch v.ValueType {
	case "number":
		if n, err := strconv.Atoi(text); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	case "double":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(text); err == nil {
			return b
		}
	}
	return text
}
