package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds chain statistics for display.
type Stats struct {
	Tip             uint64
	CanonicalLength int
	Syncing         bool
	NodeState       string
	ForksTotal      uint64
	ActiveForks     int
	MissedBlocks    uint64
	AvgTxPerBlock   float64
	Errors          int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	alertStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	value := func(v any) string { return valueStyle.Render(fmt.Sprint(v)) }
	alert := func(n uint64) string {
		if n > 0 {
			return alertStyle.Render(fmt.Sprint(n))
		}
		return value(n)
	}

	syncing := value("no")
	if s.stats.Syncing {
		syncing = alertStyle.Render("yes")
	}

	return style.Render("CHAIN") + "\n" +
		fmt.Sprintf("Tip: %s  │  Tracked: %s  │  Syncing: %s  │  Node: %s\n",
			value(fmt.Sprintf("#%d", s.stats.Tip)),
			value(s.stats.CanonicalLength),
			syncing,
			value(s.stats.NodeState),
		) +
		fmt.Sprintf("Forks: %s  │  Active branches: %s  │  Missed blocks: %s  │  Avg txs/block: %s  │  Errors: %s",
			alert(s.stats.ForksTotal),
			value(s.stats.ActiveForks),
			alert(s.stats.MissedBlocks),
			value(fmt.Sprintf("%.1f", s.stats.AvgTxPerBlock)),
			alert(uint64(s.stats.Errors)),
		)
}
