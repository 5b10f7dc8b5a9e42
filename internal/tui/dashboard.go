// Package tui implements the terminal dashboard shown while the server runs
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/escpos-engine/internal/command"
	"github.com/thereceipt/escpos-engine/internal/config"
	"github.com/thereceipt/escpos-engine/internal/printer"
	"github.com/thereceipt/escpos-engine/internal/tui/screens"
)

// DefaultMaxLogs is the number of entries the logs panel keeps
const DefaultMaxLogs = 200

const (
	refreshInterval = 2 * time.Second
	commandTimeout  = 60 * time.Second
)

// Screen names
const (
	screenMain     = "main"
	screenPrinters = "printers"
	screenJobs     = "jobs"
	screenPrint    = "print"
)

// Dashboard is the tview terminal UI
type Dashboard struct {
	App      *tview.Application
	service  *printer.Service
	executor *command.Executor
	address  string

	flex         *tview.Flex
	printersList *tview.List
	queueTable   *tview.Table
	statusBox    *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	logs      *LogPanel
	startTime time.Time
	done      chan struct{}
	stopOnce  sync.Once

	currentScreen  string
	printersScreen *screens.PrintersView
	jobsScreen     *screens.JobsView
	printScreen    *screens.PrintBuilder
}

// NewDashboard creates the dashboard. Commands typed into it run through
// executor, the same one the HTTP and WebSocket command endpoints use. A nil
// logs creates a private panel.
func NewDashboard(service *printer.Service, executor *command.Executor, cfg *config.Config, logs *LogPanel) *Dashboard {
	app := tview.NewApplication()
	if logs == nil {
		logs = NewLogPanel(DefaultMaxLogs)
	}

	d := &Dashboard{
		App:           app,
		service:       service,
		executor:      executor,
		address:       cfg.Server.Address(),
		logs:          logs,
		startTime:     time.Now(),
		done:          make(chan struct{}),
		currentScreen: screenMain,
	}

	d.setupUI()
	d.printersScreen = screens.NewPrintersView(app, service)
	d.jobsScreen = screens.NewJobsView(app, service.Queue())
	d.printScreen = screens.NewPrintBuilder(app, service, cfg.Paper)
	return d
}

func (d *Dashboard) setupUI() {
	d.printersList = tview.NewList()
	d.printersList.SetBorder(true)
	d.printersList.SetTitle("Printers")

	d.queueTable = tview.NewTable()
	d.queueTable.SetBorder(true)
	d.queueTable.SetTitle("Print Queue")

	d.statusBox = tview.NewTextView()
	d.statusBox.SetBorder(true)
	d.statusBox.SetTitle("Server Status")
	d.statusBox.SetDynamicColors(true)

	d.logsArea = tview.NewTextView()
	d.logsArea.SetBorder(true)
	d.logsArea.SetTitle("Server Logs")
	d.logsArea.SetDynamicColors(true)
	d.logsArea.SetScrollable(true)

	d.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				d.executeCommand(d.commandInput.GetText())
				d.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(d.printersList, 0, 1, false).
		AddItem(d.queueTable, 0, 1, false).
		AddItem(d.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.logsArea, 0, 3, false).
		AddItem(d.commandInput, 1, 0, true)

	d.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, true)

	d.App.SetInputCapture(d.handleKey)
	d.App.SetRoot(d.flex, true)
}

func (d *Dashboard) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if d.currentScreen != screenMain {
		if event.Key() == tcell.KeyEsc {
			d.showMainScreen()
			return nil
		}
		return event
	}

	// typing a command must not trigger shortcuts
	if d.commandInput.HasFocus() {
		if event.Key() == tcell.KeyEsc {
			d.App.SetFocus(d.printersList)
			return nil
		}
		return event
	}

	switch event.Key() {
	case tcell.KeyCtrlC, tcell.KeyEsc:
		d.App.Stop()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case ':':
			d.App.SetFocus(d.commandInput)
		case 'q':
			d.App.Stop()
		case 'r':
			d.refreshAll()
		case 'd':
			d.showScreen(screenPrinters)
		case 'j':
			d.showScreen(screenJobs)
		case 'p':
			d.showScreen(screenPrint)
		default:
			return event
		}
		return nil
	}
	return event
}

// Run starts the dashboard and blocks until the user quits or Stop is called
func (d *Dashboard) Run() error {
	d.refreshAll()
	d.renderLogs()

	events := d.service.Subscribe()
	defer d.service.Unsubscribe(events)
	go d.watch(events)
	defer d.stop()

	d.AddLog("🖨️  ESC/POS engine dashboard ready. Press ':' for commands, 'q' to quit", LevelInfo)

	return d.App.Run()
}

// Stop closes the dashboard from another goroutine
func (d *Dashboard) Stop() {
	d.stop()
	d.App.Stop()
}

func (d *Dashboard) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

// watch redraws on a timer, on service events and when new log lines arrive
func (d *Dashboard) watch(events <-chan printer.Event) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.App.QueueUpdateDraw(d.refreshAll)
		case _, ok := <-events:
			if !ok {
				return
			}
			d.App.QueueUpdateDraw(d.refreshAll)
		case <-d.logs.updated:
			d.App.QueueUpdateDraw(d.renderLogs)
		}
	}
}

func (d *Dashboard) refreshAll() {
	d.refreshPrinters()
	d.refreshQueue()
	d.refreshStatus()

	if d.currentScreen == screenJobs {
		d.jobsScreen.Refresh()
	}
}

func (d *Dashboard) currentID() string {
	if cur := d.service.CurrentConnection(); cur != nil {
		return cur.ID
	}
	return ""
}

func (d *Dashboard) refreshPrinters() {
	index := d.printersList.GetCurrentItem()
	d.printersList.Clear()

	printers := d.service.Manager().GetAllPrinters()
	if len(printers) == 0 {
		d.printersList.AddItem("No printers detected", "run 'detect' or press 'd'", 0, nil)
		return
	}

	currentID := d.currentID()
	for _, p := range printers {
		main, secondary := screens.PrinterLabel(p, d.service.IsConnected(p.ID), p.ID == currentID)
		d.printersList.AddItem(main, secondary, 0, nil)
	}
	if index > 0 && index < len(printers) {
		d.printersList.SetCurrentItem(index)
	}
}

// jobCounts tallies jobs by status
func jobCounts(jobs []*printer.PrintJob) map[printer.JobStatus]int {
	counts := make(map[printer.JobStatus]int, 4)
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts
}

func (d *Dashboard) refreshQueue() {
	d.queueTable.Clear()

	headers := []string{"Status", "Printer", "Retries", "Age"}
	for col, h := range headers {
		d.queueTable.SetCell(0, col, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	jobs := d.service.Queue().GetAllJobs()
	for i, job := range jobs {
		row := i + 1
		d.queueTable.SetCell(row, 0, tview.NewTableCell(screens.JobStatusIcon(job.Status)+" "+string(job.Status)))
		d.queueTable.SetCell(row, 1, tview.NewTableCell(job.PrinterID))
		d.queueTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", job.Retries)))
		d.queueTable.SetCell(row, 3, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}

	if len(jobs) > 0 {
		counts := jobCounts(jobs)
		summary := fmt.Sprintf("%d queued · %d printing · %d completed · %d failed",
			counts[printer.JobQueued], counts[printer.JobPrinting], counts[printer.JobCompleted], counts[printer.JobFailed])
		d.queueTable.SetCell(len(jobs)+1, 0, tview.NewTableCell(summary).SetSelectable(false))
	}
}

func (d *Dashboard) refreshStatus() {
	uptime := time.Since(d.startTime)
	printers := d.service.Manager().GetAllPrinters()

	connected := 0
	for _, p := range printers {
		if d.service.IsConnected(p.ID) {
			connected++
		}
	}

	current := "none"
	if cur := d.service.CurrentConnection(); cur != nil {
		current = cur.DisplayName()
		if current == "" {
			current = cur.ID
		}
	}

	d.statusBox.SetText(fmt.Sprintf(`[green]🟢 Running[white]

Uptime: %dh %dm
API: %s
Printers: %d known, %d connected
Current: %s
Jobs: %d total`,
		int(uptime.Hours()), int(uptime.Minutes())%60,
		d.address,
		len(printers), connected,
		tview.Escape(current),
		len(d.service.Queue().GetAllJobs())))
}

func (d *Dashboard) renderLogs() {
	d.logsArea.SetText(d.logs.String())
	d.logsArea.ScrollToEnd()
}

// executeCommand handles dashboard commands locally and hands everything
// else to the command executor off the UI goroutine
func (d *Dashboard) executeCommand(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}
	d.AddLog(cmd, LevelCommand)

	switch strings.ToLower(strings.Fields(cmd)[0]) {
	case "printers", "devices":
		d.showScreen(screenPrinters)
	case "jobs":
		d.showScreen(screenJobs)
	case "builder":
		d.showScreen(screenPrint)
	case "clear":
		d.logs.clear()
		d.renderLogs()
	case "refresh":
		d.refreshAll()
	case "quit", "exit":
		d.App.Stop()
	case "help", "?":
		d.AddLog(dashboardHelp, LevelInfo)
		d.runCommand("help")
	default:
		d.runCommand(cmd)
	}
}

func (d *Dashboard) runCommand(cmd string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		result := d.executor.Execute(ctx, cmd)
		if !result.Success {
			d.AddLog(result.Error, LevelError)
			return
		}
		if result.Message != "" {
			d.AddLog(result.Message, LevelInfo)
		}
		for _, line := range describeData(result.Data) {
			d.AddLog(line, LevelInfo)
		}
	}()
}

// describeData turns list results into one log line per entry
func describeData(data map[string]interface{}) []string {
	var lines []string
	if printers, ok := data["printers"].([]map[string]interface{}); ok {
		for _, p := range printers {
			name := p["name"]
			if name == "" {
				name = p["description"]
			}
			lines = append(lines, fmt.Sprintf("  %v: %v (%v) connected=%v", p["id"], name, p["type"], p["connected"]))
		}
	}
	if jobs, ok := data["jobs"].([]map[string]interface{}); ok {
		for _, j := range jobs {
			lines = append(lines, fmt.Sprintf("  %v: %v (printer: %v)", j["id"], j["status"], j["printer_id"]))
		}
	}
	return lines
}

const dashboardHelp = `Dashboard commands:
  printers, devices    - Open the printers screen (d)
  jobs                 - Open the jobs screen (j)
  builder              - Open the print builder (p)
  refresh              - Refresh all panels (r)
  clear                - Clear logs
  quit                 - Exit (q)
  Esc                  - Back to main`

func (d *Dashboard) showScreen(name string) {
	d.currentScreen = name

	var root tview.Primitive
	switch name {
	case screenPrinters:
		d.printersScreen.Refresh()
		root = d.printersScreen.GetRoot()
	case screenJobs:
		d.jobsScreen.Refresh()
		root = d.jobsScreen.GetRoot()
	case screenPrint:
		d.printScreen.Refresh()
		root = d.printScreen.GetRoot()
	default:
		d.showMainScreen()
		return
	}
	d.App.SetRoot(root, true)
	d.App.SetFocus(root)
}

func (d *Dashboard) showMainScreen() {
	d.currentScreen = screenMain
	d.refreshAll()
	d.App.SetRoot(d.flex, true)
	d.App.SetFocus(d.printersList)
}

// AddLog appends a log entry. It is safe to call from any goroutine.
func (d *Dashboard) AddLog(message string, level string) {
	d.logs.AddLog(message, level)
}
