package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/thereceipt/escpos-engine/internal/parser"
	"github.com/thereceipt/escpos-engine/internal/renderer"
)

const (
	defaultServerURL = "http://localhost:12212"
	requestTimeout   = 60 * time.Second
)

func main() {
	var serverURL string
	var rawJSON bool
	flag.StringVar(&serverURL, "server", defaultServerURL, "Server URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Server URL (short)")
	flag.BoolVar(&rawJSON, "json", false, "Print raw JSON responses")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	args := flag.Args()
	client := &apiClient{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}

	var err error
	switch args[0] {
	case "encode":
		err = runEncode(args[1:])
	case "preview":
		err = runPreview(args[1:])
	case "print":
		if i := indexOf(args, "--compose"); i >= 0 {
			err = runCompose(client, args[1:i], args[i+1:], rawJSON)
			break
		}
		err = runCommand(client, args, rawJSON)
	default:
		err = runCommand(client, args, rawJSON)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s

Usage:
  escpos-cli [flags] <command>

Flags:
  -s, -server <url>    Server URL (default: %s)
  -json                Print raw JSON responses

Local commands (no server needed):
  encode <receipt-path|url> [-paper 80mm] [-var key=value] [-o out.bin]
    Encode a receipt and print a hex dump, or write the raw bytes to a file

  preview <receipt-path|url> -o out.png [-paper 80mm] [-var key=value]
    Render an approximate PNG of the printed receipt

Server commands:
  print <printer-id|current> <receipt-path|url> [--var key=value] [--var-array name=<json>]
    Print a receipt on the specified printer

  print <printer-id|current> --compose <commands...>
    Compose and print a receipt from command-line arguments
    Compose commands:
      text:"Hello World"                  - Text command
      text:"Title" size:2 align:center    - Text with properties
      barcode:4006381333931 type:ean13    - Barcode
      qrcode:https://example.com size:6   - QR code
      image:./logo.png width:384          - Image
      feed:2                              - Feed lines
      divider                             - Divider line
      cut                                 - Cut paper
      drawer                              - Open the cash drawer

  text | barcode | qrcode | cut | feed | drawer ...
    Send a single element to the current printer

  printer list | add-network <host> [port] | rename <id> <name> | remove <id>
  printer connect <id> | disconnect <id> | status <id> | current [id]
    Manage printers

  job list | status <id> | clear
    Inspect the print queue

  detect
    Scan for USB and serial printers

  help
    Show the server's command help

Examples:
  escpos-cli printer add-network 192.168.1.100 9100
  escpos-cli printer current <id>
  escpos-cli print current ./receipt.receipt --var customer="John Doe"
  escpos-cli print current --compose align:center text:"Title" size:2 bold:true feed:1 cut
  escpos-cli encode ./receipt.receipt -var total=12.5
  escpos-cli preview ./receipt.receipt -o receipt.png
  escpos-cli -s http://localhost:8080 job list

`, TitleStyle.Render("ESC/POS Engine CLI"), defaultServerURL)
}

func indexOf(args []string, target string) int {
	for i, a := range args {
		if a == target {
			return i
		}
	}
	return -1
}

// apiClient talks to a running engine over HTTP
type apiClient struct {
	baseURL string
	http    *http.Client
}

// response holds the fields the CLI prints. Command results are flattened
// into the top-level object by the server.
type response struct {
	Success   bool                     `json:"success"`
	Message   string                   `json:"message,omitempty"`
	Error     string                   `json:"error,omitempty"`
	JobID     string                   `json:"job_id,omitempty"`
	PrinterID string                   `json:"printer_id,omitempty"`
	Size      int                      `json:"size,omitempty"`
	Status    string                   `json:"status,omitempty"`
	Printers  []map[string]interface{} `json:"printers,omitempty"`
	Jobs      []map[string]interface{} `json:"jobs,omitempty"`
	Printer   map[string]interface{}   `json:"printer,omitempty"`
}

func (c *apiClient) post(path string, body interface{}) (*response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result response
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, raw, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 && result.Error == "" {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return &result, raw, nil
}

// quoteArg re-quotes an argument so the server tokenizer sees it whole
func quoteArg(arg string) string {
	switch {
	case strings.Contains(arg, `"`):
		return "'" + arg + "'"
	case arg == "", strings.ContainsAny(arg, " \t'"):
		return `"` + arg + `"`
	default:
		return arg
	}
}

func runCommand(client *apiClient, args []string, rawJSON bool) error {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteArg(a)
	}

	result, raw, err := client.post("/command", map[string]string{"command": strings.Join(quoted, " ")})
	if err != nil {
		return err
	}
	return report(result, raw, rawJSON)
}

func runCompose(client *apiClient, target, composeArgs []string, rawJSON bool) error {
	if len(target) != 1 {
		return fmt.Errorf("usage: print <printer-id|current> --compose <commands...>")
	}

	receipt, err := composeReceipt(composeArgs)
	if err != nil {
		return fmt.Errorf("error creating composed receipt: %w", err)
	}

	printerID := target[0]
	if printerID == "current" {
		printerID = ""
	}

	result, raw, err := client.post("/print", map[string]interface{}{
		"printer_id": printerID,
		"receipt":    receipt,
	})
	if err != nil {
		return err
	}
	return report(result, raw, rawJSON)
}

func report(result *response, raw []byte, rawJSON bool) error {
	if rawJSON {
		var pretty bytes.Buffer
		if json.Indent(&pretty, raw, "", "  ") == nil {
			fmt.Println(pretty.String())
		} else {
			fmt.Println(string(raw))
		}
	} else if result.Success {
		printSuccess(result)
	}

	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}
		return fmt.Errorf("request failed")
	}
	return nil
}

func printSuccess(result *response) {
	if result.Message != "" {
		fmt.Println(SuccessStyle.Render("✓ ") + result.Message)
	}

	if len(result.Printers) > 0 {
		fmt.Println()
		fmt.Println(SectionHeaderStyle.Render("Printers"))
		for _, p := range result.Printers {
			name := toString(p["name"])
			if name == "" {
				name = toString(p["description"])
			}
			fmt.Printf("  %s %s  %s %s\n",
				StatusIcon(toString(p["connected"])),
				KeyStyle.Render(toString(p["id"])),
				Truncate(name, 40),
				MutedStyle.Render("("+toString(p["type"])+")"))
		}
	}

	if len(result.Jobs) > 0 {
		fmt.Println()
		fmt.Println(SectionHeaderStyle.Render("Jobs"))
		for _, j := range result.Jobs {
			status := toString(j["status"])
			line := fmt.Sprintf("  %s %s  %s %s",
				StatusIcon(status),
				KeyStyle.Render(toString(j["id"])),
				status,
				MutedStyle.Render("(printer: "+toString(j["printer_id"])+")"))
			if e := toString(j["error"]); e != "" {
				line += " " + WarningStyle.Render(e)
			}
			fmt.Println(line)
		}
	}

	if result.Printer != nil {
		fmt.Println(Field("Printer", fmt.Sprintf("%s (%s)", toString(result.Printer["id"]), toString(result.Printer["description"]))))
	}
	if result.JobID != "" {
		fmt.Println(Field("Job ID", result.JobID))
	}
	if result.PrinterID != "" {
		fmt.Println(Field("Printer ID", result.PrinterID))
	}
	if result.Size > 0 {
		fmt.Println(Field("Size", fmt.Sprintf("%d bytes", result.Size)))
	}
	if result.Status != "" {
		fmt.Println(Field("Status", StatusIcon(result.Status)+" "+result.Status))
	}
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// varsFlag collects repeated -var key=value flags
type varsFlag map[string]interface{}

func (v varsFlag) String() string { return fmt.Sprint(map[string]interface{}(v)) }

func (v varsFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[key] = value
	return nil
}

type localOptions struct {
	source string
	paper  string
	output string
	vars   varsFlag
}

func parseLocal(name string, args []string) (*localOptions, error) {
	opts := &localOptions{vars: varsFlag{}}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&opts.paper, "paper", "", "Paper width (58mm, 80mm, 112mm)")
	fs.StringVar(&opts.output, "o", "", "Output file")
	fs.Var(opts.vars, "var", "Variable value as key=value (repeatable)")

	// flags may follow the receipt path
	var positional []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) != 1 {
		return nil, fmt.Errorf("usage: %s <receipt-path|url> [flags]", name)
	}
	opts.source = positional[0]
	return opts, nil
}

func (o *localOptions) prepare() (*parser.Parser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	receipt, baseDir, err := parser.LoadReceipt(ctx, o.source)
	if err != nil {
		return nil, err
	}

	return parser.Prepare(receipt, parser.Options{
		PaperWidth:   o.paper,
		BaseDir:      baseDir,
		VariableData: o.vars,
	})
}

func runEncode(args []string) error {
	opts, err := parseLocal("encode", args)
	if err != nil {
		return err
	}
	p, err := opts.prepare()
	if err != nil {
		return err
	}

	data, err := p.Execute()
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, data, 0644); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %d bytes (%s) to %s\n", SuccessStyle.Render("✓"), len(data), p.PaperWidth(), opts.output)
		return nil
	}

	fmt.Println(BoxStyle.Render(fmt.Sprintf("%s  %s", Field("Paper", p.PaperWidth()), Field("Size", fmt.Sprintf("%d bytes", len(data))))))
	fmt.Print(hex.Dump(data))
	return nil
}

func runPreview(args []string) error {
	opts, err := parseLocal("preview", args)
	if err != nil {
		return err
	}
	if opts.output == "" {
		return fmt.Errorf("preview needs an output file: -o receipt.png")
	}
	p, err := opts.prepare()
	if err != nil {
		return err
	}

	spec, err := p.Compile()
	if err != nil {
		return fmt.Errorf("failed to compile receipt: %w", err)
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := renderer.RenderPNG(f, spec, p.PaperWidth()); err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	fmt.Printf("%s Preview written to %s\n", SuccessStyle.Render("✓"), opts.output)
	return nil
}
