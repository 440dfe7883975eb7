package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/vovakirdan/arena/internal/multiplayer"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printTitle writes a heading, styled when w is a terminal.
func printTitle(w io.Writer, title string) {
	if isTerminal(w) {
		title = titleStyle.Render(title)
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w)
}

// renderTable writes rows as a bordered table on a terminal and as aligned
// plain text otherwise.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	if isTerminal(w) {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(borderStyle).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		fmt.Fprintln(w, t.Render())
		return
	}
	renderPlain(w, headers, rows)
}

func renderPlain(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(w, "  "+strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(headers)
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	writeRow(dashes)
	for _, row := range rows {
		writeRow(row)
	}
}

// matchRow formats one match for display. Scores read left-right.
func matchRow(rec multiplayer.MatchRecord) []string {
	return []string{
		rec.EndedAt.Local().Format("2006-01-02 15:04"),
		string(rec.WinnerID),
		string(rec.LoserID),
		fmt.Sprintf("%d-%d", rec.Score[1], rec.Score[0]),
		string(rec.Reason),
		rec.Duration.Round(time.Second).String(),
	}
}

var matchHeaders = []string{"Date", "Winner", "Loser", "Score", "Reason", "Duration"}
