package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ForkRow represents a fork in the list.
type ForkRow struct {
	Time           string
	Height         uint64
	CommonAncestor uint64
	Depth          uint32
	CompetingHash  string
	Resolved       bool
}

// ForksComponent renders the fork list, newest first.
type ForksComponent struct {
	rows    []ForkRow
	maxRows int
	visible int
	offset  int
}

// NewForksComponent creates a new forks component.
func NewForksComponent(maxRows, visible int) *ForksComponent {
	return &ForksComponent{
		rows:    make([]ForkRow, 0),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add adds a new fork to the top of the list.
func (f *ForksComponent) Add(row ForkRow) {
	f.rows = append([]ForkRow{row}, f.rows...)
	if len(f.rows) > f.maxRows {
		f.rows = f.rows[:f.maxRows]
	}
}

// Len returns the number of stored rows.
func (f *ForksComponent) Len() int {
	return len(f.rows)
}

// Clear clears all forks.
func (f *ForksComponent) Clear() {
	f.rows = make([]ForkRow, 0)
	f.offset = 0
}

// ScrollUp moves the window towards newer forks.
func (f *ForksComponent) ScrollUp() {
	if f.offset > 0 {
		f.offset--
	}
}

// ScrollDown moves the window towards older forks.
func (f *ForksComponent) ScrollDown() {
	if f.offset+f.visible < len(f.rows) {
		f.offset++
	}
}

// View renders the forks component.
func (f *ForksComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	if len(f.rows) == 0 {
		return headerStyle.Render("FORKS") + "\n\nNo forks detected yet..."
	}

	resolvedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	end := min(f.offset+f.visible, len(f.rows))

	result := headerStyle.Render(fmt.Sprintf("FORKS (%d-%d of %d)", f.offset+1, end, len(f.rows))) + "\n"
	result += "┌──────────┬──────────┬──────────┬───────┬──────────────┬──────────┐\n"
	result += "│   Time   │  Height  │ Ancestor │ Depth │  Competing   │  Status  │\n"
	result += "├──────────┼──────────┼──────────┼───────┼──────────────┼──────────┤\n"

	for _, row := range f.rows[f.offset:end] {
		status := activeStyle.Render(fmt.Sprintf("%-8s", "active"))
		if row.Resolved {
			status = resolvedStyle.Render(fmt.Sprintf("%-8s", "resolved"))
		}
		result += fmt.Sprintf("│ %8s │%9d │%9d │%6d │ %12s │ %s │\n",
			row.Time,
			row.Height,
			row.CommonAncestor,
			row.Depth,
			shortHash(row.CompetingHash),
			status,
		)
	}

	result += "└──────────┴──────────┴──────────┴───────┴──────────────┴──────────┘"
	return result
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:6] + "…" + h[len(h)-5:]
}
