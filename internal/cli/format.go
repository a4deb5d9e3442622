package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/dmitrijs2005/notebook/internal/models"
	"github.com/dmitrijs2005/notebook/internal/services"
)

var (
	now = time.Now

	// termSize is a test seam for term.GetSize.
	termSize = term.GetSize
)

const (
	defaultSummaryWidth = 40
	minSummaryWidth     = 10
	// fixed columns: index, short id, title, date and borders
	fixedColumnsWidth = 60
)

// summaryWidth fits the summary column to the terminal when there is one.
func summaryWidth() int {
	w, _, err := termSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultSummaryWidth
	}
	return max(w-fixedColumnsWidth, minSummaryWidth)
}

func (a *App) renderNotes(notes []*models.Note) {
	if len(notes) == 0 {
		a.printf("No notes\n")
		return
	}

	width := summaryWidth()
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "ID", "Title", "Summary", "Modified"})
	for i, n := range notes {
		t.AppendRow(table.Row{
			i + 1,
			shortID(n.ID),
			text.Snip(n.Title, 24, "~"),
			text.Snip(n.SummaryText(), width, "~"),
			formatDate(n.DateLastModified),
		})
	}
	t.Render()
}

func (a *App) renderStats(s services.StorageStats) {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Notes", s.NoteCount},
		{"Storage", formatBytes(s.StorageSize)},
	})
	t.Render()
}

// formatDate renders t relative to the local calendar day.
func formatDate(t time.Time) string {
	n := now().Local()
	t = t.Local()

	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.Local)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
	days := int(today.Sub(day).Hours()+12) / 24

	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2")
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
