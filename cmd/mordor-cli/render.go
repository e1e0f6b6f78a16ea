package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fd1az/mordor-monitor/pkg/ui"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorBlock)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorSecondary)
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(ui.ColorDanger)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
	valueStyle = lipgloss.NewStyle().Foreground(ui.ColorWarning)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
)

// heading prints a title underlined with '=' to width.
func heading(w io.Writer, title string, width int) {
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, titleStyle.Render(strings.Repeat("=", width)))
}

// fieldTable renders two-column rows as a bordered table.
func fieldTable(header [2]string, rows [][2]string) string {
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r[0], r[1]}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.ColorBorder)).
		Headers(header[0], header[1]).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true).Foreground(ui.ColorPrimary)
			}
			return cellStyle
		}).
		String()
}

func utc(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

func percentOf(used, limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
