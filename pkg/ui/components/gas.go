package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// GasRow is one price line in gwei.
type GasRow struct {
	Label string
	Gwei  decimal.Decimal
}

// GasComponent renders the latest block's price distribution and the
// oracle's tiers.
type GasComponent struct {
	block       uint64
	sample      []GasRow
	utilization decimal.Decimal
	tiers       []GasRow
	tierStatus  string
}

// NewGasComponent creates a new gas component.
func NewGasComponent() *GasComponent {
	return &GasComponent{}
}

// SetSample sets the latest block's distribution.
func (g *GasComponent) SetSample(block uint64, rows []GasRow, utilization decimal.Decimal) {
	g.block = block
	g.sample = rows
	g.utilization = utilization
}

// SetTiers sets the recommendation. An empty slice shows status instead.
func (g *GasComponent) SetTiers(status string, rows []GasRow) {
	g.tierStatus = status
	g.tiers = rows
}

// View renders the gas component.
func (g *GasComponent) View() string {
	if len(g.sample) == 0 && len(g.tiers) == 0 {
		return "Waiting for gas data..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("GAS (block #%d)", g.block)))
	b.WriteString("\n\n")

	if len(g.sample) == 0 {
		b.WriteString(dimStyle.Render("  No priced transactions yet") + "\n")
	}
	for _, row := range g.sample {
		fmt.Fprintf(&b, "  %-10s %s\n", row.Label, valueStyle.Render(fmt.Sprintf("%12s gwei", row.Gwei.StringFixed(2))))
	}
	if len(g.sample) > 0 {
		fmt.Fprintf(&b, "  %-10s %s\n", "Util", warnStyle.Render(g.utilization.StringFixed(2)+"%"))
	}

	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 30)) + "\n")
	b.WriteString(headerStyle.Render("  RECOMMENDATION") + "\n")
	if len(g.tiers) == 0 {
		status := g.tierStatus
		if status == "" {
			status = "pending"
		}
		b.WriteString(dimStyle.Render("  "+strings.ReplaceAll(status, "_", " ")) + "\n")
		return b.String()
	}
	for _, row := range g.tiers {
		fmt.Fprintf(&b, "  %-10s %s\n", row.Label, valueStyle.Render(fmt.Sprintf("%12s gwei", row.Gwei.StringFixed(2))))
	}
	return b.String()
}
