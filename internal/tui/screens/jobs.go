package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/thereceipt/escpos-engine/internal/printer"
)

// JobsView shows detailed information about print jobs
type JobsView struct {
	app     *tview.Application
	queue   *printer.PrintQueue
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex
	jobs    []*printer.PrintJob
}

// NewJobsView creates a new jobs view screen
func NewJobsView(app *tview.Application, queue *printer.PrintQueue) *JobsView {
	j := &JobsView{
		app:   app,
		queue: queue,
	}

	j.setupUI()
	return j
}

func (j *JobsView) setupUI() {
	j.table = tview.NewTable()
	j.table.SetBorder(true)
	j.table.SetTitle("Print Jobs")
	j.table.SetSelectable(true, false)
	j.table.SetFixed(1, 0)
	j.table.SetSelectionChangedFunc(func(row, column int) {
		j.selectJob(row)
	})

	j.details = tview.NewTextView()
	j.details.SetBorder(true)
	j.details.SetTitle("Job Details")
	j.details.SetDynamicColors(true)

	j.layout = tview.NewFlex().
		AddItem(j.table, 0, 2, true).
		AddItem(j.details, 0, 1, false)

	j.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'r':
			j.Refresh()
			return nil
		case 'c':
			j.clearCompleted()
			return nil
		}
		return event
	})

	j.Refresh()
}

// Refresh reloads the job table
func (j *JobsView) Refresh() {
	row, _ := j.table.GetSelection()
	j.table.Clear()

	headers := []string{"ID", "Printer", "Status", "Size", "Retries", "Age"}
	for col, h := range headers {
		j.table.SetCell(0, col, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	j.jobs = j.queue.GetAllJobs()
	for i, job := range j.jobs {
		r := i + 1
		j.table.SetCell(r, 0, tview.NewTableCell(job.ID))
		j.table.SetCell(r, 1, tview.NewTableCell(job.PrinterID))
		j.table.SetCell(r, 2, tview.NewTableCell(JobStatusIcon(job.Status)+" "+string(job.Status)))
		j.table.SetCell(r, 3, tview.NewTableCell(fmt.Sprintf("%d B", job.Size)).SetAlign(tview.AlignRight))
		j.table.SetCell(r, 4, tview.NewTableCell(fmt.Sprintf("%d", job.Retries)).SetAlign(tview.AlignRight))
		j.table.SetCell(r, 5, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}

	if len(j.jobs) == 0 {
		j.details.SetText("[yellow]No jobs in queue[white]")
		return
	}
	if row < 1 {
		row = 1
	}
	if row > len(j.jobs) {
		row = len(j.jobs)
	}
	j.table.Select(row, 0)
	j.selectJob(row)
}

func (j *JobsView) selectJob(row int) {
	if row < 1 || row > len(j.jobs) {
		return
	}
	job := j.jobs[row-1]

	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]Job ID:[white] %s\n", job.ID)
	fmt.Fprintf(&b, "[yellow]Printer ID:[white] %s\n", job.PrinterID)
	fmt.Fprintf(&b, "[yellow]Status:[white] %s %s\n", JobStatusIcon(job.Status), job.Status)
	fmt.Fprintf(&b, "[yellow]Size:[white] %d bytes\n", job.Size)
	fmt.Fprintf(&b, "[yellow]Retries:[white] %d\n", job.Retries)
	fmt.Fprintf(&b, "[yellow]Created:[white] %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "[yellow]Finished:[white] %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if job.Error != "" {
		fmt.Fprintf(&b, "\n[red]Error:[white] %s\n", job.Error)
	}
	b.WriteString("\n[yellow]Press 'r' to refresh, 'c' to clear completed[white]")

	j.details.SetText(b.String())
}

func (j *JobsView) clearCompleted() {
	n := j.queue.ClearCompleted()
	j.Refresh()
	if len(j.jobs) == 0 {
		j.details.SetText(fmt.Sprintf("[green]✓ Cleared %d completed job(s)[white]", n))
	}
}

// GetRoot returns the root primitive for this screen
func (j *JobsView) GetRoot() tview.Primitive {
	return j.layout
}
