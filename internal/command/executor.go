// Package command provides a command system for the receipt engine
package command

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/pkg/escpos"
)

// Executor executes commands
type Executor struct {
	service  *printer.Service
	paper    string
	codePage escpos.CodePage
	logger   *zap.Logger
}

// NewExecutor creates a new command executor. Paper settings supply the
// width and code page used when a receipt does not name its own.
func NewExecutor(service *printer.Service, paper config.PaperConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	codePage, _ := escpos.ParseCodePage(paper.CodePage)

	return &Executor{
		service:  service,
		paper:    paper.Width,
		codePage: codePage,
		logger:   logger.With(zap.String("component", "command")),
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(ctx context.Context, cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	command := parts[0]
	args := parts[1:]

	var result *Result
	switch command {
	case "print":
		result = e.handlePrint(ctx, args)
	case "text":
		result = e.handleText(args)
	case "barcode":
		result = e.handleBarcode(args)
	case "qrcode":
		result = e.handleQRCode(args)
	case "cut":
		result = e.handleCut(args)
	case "feed":
		result = e.handleFeed(args)
	case "drawer":
		result = e.handleDrawer(args)
	case "printer":
		result = e.handlePrinter(ctx, args)
	case "job":
		result = e.handleJob(args)
	case "detect":
		result = e.handleDetect(args)
	case "help":
		result = e.handleHelp(args)
	default:
		result = failure("unknown command: %s. Type 'help' for available commands", command)
	}

	if !result.Success {
		e.logger.Debug("Command failed", zap.String("command", command), zap.String("error", result.Error))
	}
	return result
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoted := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		if char == '"' || char == '\'' {
			if !inQuotes {
				inQuotes = true
				quoted = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		} else if (char == ' ' || char == '\t') && !inQuotes {
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		} else {
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}

// boolFlags never consume the following argument
var boolFlags = map[string]bool{
	"bold":      true,
	"underline": true,
	"invert":    true,
	"no-text":   true,
}

// flagSet holds the positional arguments and --name value pairs of a command
type flagSet struct {
	args   []string
	values map[string][]string
}

func parseFlags(args []string) flagSet {
	fs := flagSet{values: make(map[string][]string)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") || len(arg) == 2 {
			fs.args = append(fs.args, arg)
			continue
		}

		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			fs.values[k] = append(fs.values[k], v)
			continue
		}
		if !boolFlags[name] && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			fs.values[name] = append(fs.values[name], args[i+1])
			i++
			continue
		}
		fs.values[name] = append(fs.values[name], "true")
	}
	return fs
}

func (fs flagSet) get(name string) string {
	if v := fs.values[name]; len(v) > 0 {
		return v[len(v)-1]
	}
	return ""
}

func (fs flagSet) has(name string) bool {
	_, ok := fs.values[name]
	return ok
}
