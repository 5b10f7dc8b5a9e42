package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/parser"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// handlePrint handles print commands
// Usage: print <printer-id|current> <receipt-path|url> [--var key=value] [--var-array name=<json>] [--paper 80mm]
func (e *Executor) handlePrint(ctx context.Context, args []string) *Result {
	fs := parseFlags(args)
	if len(fs.args) < 2 {
		return failure("usage: print <printer-id|current> <receipt-path|url> [--var key=value] [--var-array name=<json>] [--paper 80mm]")
	}

	printerID := fs.args[0]
	if printerID == "current" {
		printerID = ""
	}
	source := fs.args[1]

	receipt, baseDir, err := parser.LoadReceipt(ctx, source)
	if err != nil {
		return failure("failed to load receipt: %v", err)
	}

	varData := make(map[string]interface{})
	for _, kv := range fs.values["var"] {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return failure("invalid --var %q, expected key=value", kv)
		}
		varData[parts[0]] = parts[1]
	}

	varArrayData := make(map[string][]map[string]interface{})
	for _, kv := range fs.values["var-array"] {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return failure("invalid --var-array %q, expected name=<json array>", kv)
		}
		var rows []map[string]interface{}
		if err := json.Unmarshal([]byte(parts[1]), &rows); err != nil {
			return failure("invalid --var-array %s: %v", parts[0], err)
		}
		varArrayData[parts[0]] = rows
	}

	paperWidth := fs.get("paper")
	if paperWidth == "" && receipt.PaperWidth == "" {
		paperWidth = e.paper
	}

	data, err := parser.Encode(receipt, parser.Options{
		PaperWidth:        paperWidth,
		BaseDir:           baseDir,
		CodePage:          e.codePage,
		VariableData:      varData,
		VariableArrayData: varArrayData,
	})
	if err != nil {
		return failure("failed to encode receipt: %v", err)
	}

	return e.submit(printerID, data, "Print job queued")
}

// handleText prints one line of text on the current printer
// Usage: text <content> [--align center] [--size 2] [--bold] [--underline] [--invert] [--printer id]
func (e *Executor) handleText(args []string) *Result {
	fs := parseFlags(args)
	if len(fs.args) == 0 {
		return failure("usage: text <content> [--align left|center|right] [--size 1-8] [--bold] [--underline] [--invert]")
	}

	size, err := intFlag(fs, "size", 1)
	if err != nil {
		return failure("%v", err)
	}

	data := escpos.EncodeText(strings.Join(fs.args, " "), escpos.TextOptions{
		Align:     escpos.ParseAlignment(fs.get("align")),
		FontSize:  size,
		Bold:      fs.has("bold"),
		Underline: fs.has("underline"),
		Invert:    fs.has("invert"),
		CodePage:  e.codePage,
	})
	return e.submit(fs.get("printer"), data, "Text queued")
}

// handleBarcode prints a barcode on the current printer
// Usage: barcode <data> [--type code128] [--height 100] [--width 2] [--no-text]
func (e *Executor) handleBarcode(args []string) *Result {
	fs := parseFlags(args)
	if len(fs.args) != 1 {
		return failure("usage: barcode <data> [--type code128] [--height 1-255] [--width 1-6] [--no-text]")
	}

	opts := escpos.DefaultBarcodeOptions()
	var err error
	if opts.Height, err = intFlag(fs, "height", opts.Height); err != nil {
		return failure("%v", err)
	}
	if opts.Width, err = intFlag(fs, "width", opts.Width); err != nil {
		return failure("%v", err)
	}
	if fs.has("align") {
		opts.Align = escpos.ParseAlignment(fs.get("align"))
	}
	opts.PrintText = !fs.has("no-text")

	data, err := escpos.EncodeBarcode(fs.args[0], escpos.ParseSymbology(fs.get("type")), opts)
	if err != nil {
		return failure("failed to encode barcode: %v", err)
	}
	return e.submit(fs.get("printer"), data, "Barcode queued")
}

// handleQRCode prints a QR code on the current printer
// Usage: qrcode <data> [--size 6] [--ec M]
func (e *Executor) handleQRCode(args []string) *Result {
	fs := parseFlags(args)
	if len(fs.args) != 1 {
		return failure("usage: qrcode <data> [--size 1-8] [--ec L|M|Q|H]")
	}

	opts := escpos.DefaultQROptions()
	var err error
	if opts.Size, err = intFlag(fs, "size", opts.Size); err != nil {
		return failure("%v", err)
	}
	if fs.has("ec") {
		opts.ErrorCorrection = escpos.ParseQRErrorCorrection(fs.get("ec"))
	}
	if fs.has("align") {
		opts.Align = escpos.ParseAlignment(fs.get("align"))
	}

	data, err := escpos.EncodeQRCode(fs.args[0], opts)
	if err != nil {
		return failure("failed to encode QR code: %v", err)
	}
	return e.submit(fs.get("printer"), data, "QR code queued")
}

// handleCut feeds and cuts the paper
// Usage: cut [full|partial]
func (e *Executor) handleCut(args []string) *Result {
	fs := parseFlags(args)
	kind := escpos.CutFull
	if len(fs.args) > 0 {
		kind = escpos.ParseCutKind(fs.args[0])
	}
	return e.submit(fs.get("printer"), escpos.CutCommand(kind), "Cut queued")
}

// handleFeed advances the paper
// Usage: feed [lines]
func (e *Executor) handleFeed(args []string) *Result {
	fs := parseFlags(args)
	lines := 1
	if len(fs.args) > 0 {
		n, err := strconv.Atoi(fs.args[0])
		if err != nil || n < 0 || n > 255 {
			return failure("invalid line count: %s", fs.args[0])
		}
		lines = n
	}
	return e.submit(fs.get("printer"), escpos.FeedCommand(lines), fmt.Sprintf("Feed %d line(s) queued", lines))
}

// handleDrawer pulses the cash drawer
// Usage: drawer
func (e *Executor) handleDrawer(args []string) *Result {
	fs := parseFlags(args)
	return e.submit(fs.get("printer"), escpos.CashDrawerPulse(), "Cash drawer pulse queued")
}

// submit queues data and reports the job. An empty printer ID uses the
// current printer.
func (e *Executor) submit(printerID string, data []byte, message string) *Result {
	jobID, err := e.service.Submit(printerID, data)
	if err != nil {
		return failure("%v", err)
	}
	if printerID == "" {
		if current := e.service.CurrentConnection(); current != nil {
			printerID = current.ID
		}
	}

	e.logger.Info("Job submitted", zap.String("job_id", jobID), zap.String("printer_id", printerID), zap.Int("size", len(data)))
	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s: %s", message, jobID),
		Data: map[string]interface{}{
			"job_id":     jobID,
			"printer_id": printerID,
			"size":       len(data),
		},
	}
}

func intFlag(fs flagSet, name string, def int) (int, error) {
	if !fs.has(name) {
		return def, nil
	}
	n, err := strconv.Atoi(fs.get(name))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %s", name, fs.get(name))
	}
	return n, nil
}

func printerData(p *printer.Printer, connected bool) map[string]interface{} {
	data := map[string]interface{}{
		"id":          p.ID,
		"type":        p.Type,
		"description": p.Description,
		"name":        p.Name,
		"connected":   connected,
	}
	switch p.Type {
	case printer.TypeNetwork:
		data["host"] = p.Host
		data["port"] = p.Port
	case printer.TypeSerial:
		data["device"] = p.Device
	case printer.TypeUSB:
		data["vid"] = fmt.Sprintf("%04X", p.VID)
		data["pid"] = fmt.Sprintf("%04X", p.PID)
	}
	return data
}

// handlePrinter handles printer commands
// Usage: printer list | add-network <host> [port] | rename <id> <name> | remove <id>
// | connect <id> | disconnect <id> | status <id> | current [id]
func (e *Executor) handlePrinter(ctx context.Context, args []string) *Result {
	if len(args) == 0 {
		return failure("usage: printer <list|add-network|rename|remove|connect|disconnect|status|current>")
	}

	manager := e.service.Manager()
	subcommand := args[0]

	switch subcommand {
	case "list":
		printers := manager.GetAllPrinters()
		printerList := make([]map[string]interface{}, len(printers))
		for i, p := range printers {
			printerList[i] = printerData(p, e.service.IsConnected(p.ID))
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d printer(s)", len(printers)),
			Data: map[string]interface{}{
				"printers": printerList,
			},
		}

	case "add-network":
		if len(args) < 2 {
			return failure("usage: printer add-network <host> [port]")
		}
		host := args[1]
		port := printer.DefaultNetworkPort
		if len(args) >= 3 {
			var err error
			port, err = strconv.Atoi(args[2])
			if err != nil || port < 1 || port > 65535 {
				return failure("invalid port: %s", args[2])
			}
		}
		printerID := manager.AddNetworkPrinter(host, port, "")
		p := manager.GetPrinter(printerID)
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Added network printer: %s", p.Description),
			Data: map[string]interface{}{
				"printer_id": printerID,
				"printer":    p,
			},
		}

	case "rename":
		if len(args) < 3 {
			return failure("usage: printer rename <id> <name>")
		}
		printerID := args[1]
		name := strings.Join(args[2:], " ")
		if !manager.SetPrinterName(printerID, name) {
			return failure("printer not found: %s", printerID)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Renamed printer %s to %s", printerID, name),
		}

	case "remove":
		if len(args) < 2 {
			return failure("usage: printer remove <id>")
		}
		if !e.service.RemovePrinter(args[1]) {
			return failure("printer not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Removed printer %s", args[1]),
		}

	case "connect":
		if len(args) < 2 {
			return failure("usage: printer connect <id>")
		}
		if err := e.service.Connect(ctx, args[1]); err != nil {
			return failure("failed to connect: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Connected to printer %s", args[1]),
		}

	case "disconnect":
		if len(args) < 2 {
			return failure("usage: printer disconnect <id>")
		}
		if err := e.service.Disconnect(args[1]); err != nil {
			return failure("failed to disconnect: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Disconnected printer %s", args[1]),
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: printer status <id>")
		}
		status, err := e.service.Status(ctx, args[1])
		if err != nil {
			return failure("failed to read status: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Printer %s is %s", args[1], status),
			Data: map[string]interface{}{
				"printer_id": args[1],
				"status":     status,
			},
		}

	case "current":
		if len(args) >= 2 {
			if err := e.service.Select(ctx, args[1]); err != nil {
				return failure("failed to select printer: %v", err)
			}
		}
		current := e.service.CurrentConnection()
		if current == nil {
			return &Result{
				Success: true,
				Message: "No printer selected",
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Current printer: %s (%s)", current.DisplayName(), current.ID),
			Data:    printerData(current, true),
		}

	default:
		return failure("unknown printer subcommand: %s. Use: list, add-network, rename, remove, connect, disconnect, status, current", subcommand)
	}
}

func jobData(job *printer.PrintJob) map[string]interface{} {
	data := map[string]interface{}{
		"id":         job.ID,
		"printer_id": job.PrinterID,
		"status":     job.Status,
		"retries":    job.Retries,
		"size":       job.Size,
		"created_at": job.CreatedAt,
	}
	if job.Error != "" {
		data["error"] = job.Error
	}
	if job.CompletedAt != nil {
		data["completed_at"] = *job.CompletedAt
	}
	return data
}

// handleJob handles job commands
// Usage: job list | status <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: job <list|status|clear>")
	}

	queue := e.service.Queue()
	subcommand := args[0]

	switch subcommand {
	case "list":
		jobs := queue.GetAllJobs()
		jobList := make([]map[string]interface{}, len(jobs))
		for i, job := range jobs {
			jobList[i] = jobData(job)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(jobs)),
			Data: map[string]interface{}{
				"jobs": jobList,
			},
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: job status <id>")
		}
		job := queue.GetJob(args[1])
		if job == nil {
			return failure("job not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Job %s is %s", job.ID, job.Status),
			Data:    jobData(job),
		}

	case "clear":
		n := queue.ClearCompleted()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d completed job(s)", n),
			Data: map[string]interface{}{
				"cleared": n,
			},
		}

	default:
		return failure("unknown job subcommand: %s. Use: list, status, clear", subcommand)
	}
}

// handleDetect handles detect command
// Usage: detect
func (e *Executor) handleDetect(args []string) *Result {
	printers, err := e.service.Manager().DetectPrinters()
	if err != nil {
		return failure("detection failed: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Detected %d printer(s)", len(printers)),
		Data: map[string]interface{}{
			"count": len(printers),
		},
	}
}

const helpText = `Available Commands:

  print <printer-id|current> <receipt-path|url> [--var key=value] [--var-array name=<json>] [--paper 80mm]
    Encode a receipt template and print it

  text <content> [--align center] [--size 2] [--bold] [--underline] [--invert]
  barcode <data> [--type code128] [--height 100] [--width 2] [--no-text]
  qrcode <data> [--size 6] [--ec M]
  cut [full|partial]
  feed [lines]
  drawer
    Send a single element to the current printer (or --printer <id>)

  printer list
  printer add-network <host> [port]
  printer rename <id> <name>
  printer remove <id>
  printer connect <id>
  printer disconnect <id>
  printer status <id>
  printer current [id]
    Manage printers and select the current one

  job list
  job status <id>
  job clear
    Inspect the print queue

  detect
    Scan for USB and serial printers

  help
    Show this help message

Examples:
  printer add-network 192.168.1.100 9100
  printer current <id>
  print current ./receipt.receipt --var customer="John Doe"
  print current ./order.receipt --var-array items='[{"name":"Tea","price":3}]'
  text "Hello World" --align center --size 2 --bold
  barcode 4006381333931 --type ean13
  cut partial
`

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	return &Result{
		Success: true,
		Message: helpText,
	}
}
