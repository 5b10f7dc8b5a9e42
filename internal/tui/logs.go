package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// Log levels understood by AddLog
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelCommand = "command"
)

// LogPanel keeps the most recent formatted log entries for the dashboard.
// It exists before the dashboard so the logger can be built first.
type LogPanel struct {
	mu      sync.Mutex
	entries []string
	max     int
	updated chan struct{}
}

// NewLogPanel creates a panel holding up to max entries
func NewLogPanel(max int) *LogPanel {
	return &LogPanel{
		max:     max,
		updated: make(chan struct{}, 1),
	}
}

// AddLog appends a log entry. It is safe to call from any goroutine.
func (b *LogPanel) AddLog(message string, level string) {
	now := time.Now()
	for _, line := range strings.Split(strings.TrimRight(message, "\n"), "\n") {
		b.add(formatLogEntry(now, line, level))
	}

	select {
	case b.updated <- struct{}{}:
	default:
	}
}

func (b *LogPanel) add(entry string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
}

func (b *LogPanel) clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

func (b *LogPanel) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *LogPanel) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.entries, "")
}

// Writer returns a writer that feeds the panel. Pass it to logging.New so
// zap entries show up in the dashboard.
func (b *LogPanel) Writer() io.Writer {
	return &logWriter{panel: b}
}

type logWriter struct {
	panel *LogPanel
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line == "" {
			continue
		}
		message, level := parseLogLine(line)
		w.panel.AddLog(message, level)
	}
	return len(p), nil
}

// formatLogEntry renders one colored log line. Tags in message are escaped.
func formatLogEntry(now time.Time, message, level string) string {
	var color, icon string
	switch level {
	case LevelError:
		color, icon = "[red]", "❌"
	case LevelWarning:
		color, icon = "[yellow]", "⚠️"
	case LevelCommand:
		color, icon = "[cyan]", ">"
	default:
		color, icon = "[white]", "ℹ️"
	}

	return fmt.Sprintf("%s[%s] %s %s[white]\n", color, now.Format("15:04:05"), icon, tview.Escape(message))
}

// parseLogLine splits a plain zap console line into its message and level.
// The line's own timestamp is dropped since AddLog stamps entries.
func parseLogLine(line string) (string, string) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return line, LevelInfo
	}

	message := strings.ReplaceAll(parts[2], "\t", " ")
	switch parts[1] {
	case "ERROR", "DPANIC", "PANIC", "FATAL":
		return message, LevelError
	case "WARN":
		return message, LevelWarning
	default:
		return message, LevelInfo
	}
}
