package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/mordor-monitor/business/monitor/domain"
	"github.com/fd1az/mordor-monitor/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseStartup   Phase = "startup"   // waiting for the first status
	PhaseDashboard Phase = "dashboard" // main dashboard
)

const (
	tickInterval = time.Second
	maxErrors    = 3
	maxActivity  = 6
	maxForks     = 50
	visibleForks = 8
)

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the dashboard.
type Model struct {
	// Components
	feeds *components.StatusComponent
	stats *components.StatsComponent
	gas   *components.GasComponent
	forks *components.ForksComponent

	keys KeyMap
	help help.Model

	title     string
	phase     Phase
	startTime time.Time

	// State
	quitting     bool
	paused       bool
	width        int
	height       int
	tip          uint64
	tipTimestamp uint64
	lastUpdate   time.Time
	errors       []ErrorEntry
	activity     []string
}

// New creates a new dashboard model.
func New(title string) Model {
	return Model{
		feeds:     components.NewStatusComponent(),
		stats:     components.NewStatsComponent(),
		gas:       components.NewGasComponent(),
		forks:     components.NewForksComponent(maxForks, visibleForks),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		title:     title,
		phase:     PhaseStartup,
		startTime: time.Now(),
		errors:    make([]ErrorEntry, 0, maxErrors),
		activity:  make([]string, 0, maxActivity),
	}
}

// NewProgram wraps the model in a full-screen program. Feed it with
// Program.Send from any goroutine.
func NewProgram(m Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.forks.Clear()
			m.errors = m.errors[:0]
		case key.Matches(msg, m.keys.Up):
			m.forks.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.forks.ScrollDown()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		return m, tickCmd()

	case StatusMsg:
		m.phase = PhaseDashboard
		if m.paused {
			return m, nil
		}
		m.applyStatus(msg.Status)

	case ForkMsg:
		f := msg.Fork
		m.forks.Add(components.ForkRow{
			Time:           f.DetectedAt.Format("15:04:05"),
			Height:         f.DetectedAtHeight,
			CommonAncestor: f.CommonAncestorNumber,
			Depth:          f.Depth,
			CompetingHash:  f.CompetingHash,
			Resolved:       f.Resolved,
		})
		m.activity = addLine(m.activity, maxActivity,
			fmt.Sprintf("Reorg at #%d depth %d (ancestor #%d)", f.DetectedAtHeight, f.Depth, f.CommonAncestorNumber))

	case RecommendationMsg:
		r := msg.Recommendation
		var rows []components.GasRow
		if r.Standard != nil {
			rows = []components.GasRow{
				{Label: "Slow", Gwei: r.Slow.Gwei},
				{Label: "Standard", Gwei: r.Standard.Gwei},
				{Label: "Fast", Gwei: r.Fast.Gwei},
				{Label: "Instant", Gwei: r.Instant.Gwei},
			}
		}
		m.gas.SetTiers(string(r.Status), rows)

	case ConnectionStatusMsg:
		m.feeds.Update(components.ConnectionStatus{
			Name:       msg.Name,
			State:      msg.State,
			Connected:  msg.Connected,
			LastUpdate: time.Now(),
		})

	case ErrorMsg:
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > maxErrors {
			m.errors = m.errors[len(m.errors)-maxErrors:]
		}
		stats := m.stats.Stats()
		stats.Errors++
		m.stats.Update(stats)

	case LogMsg:
		m.activity = addLine(m.activity, maxActivity, fmt.Sprintf("%s: %s", msg.Level, msg.Message))
	}

	return m, nil
}

func (m *Model) applyStatus(s domain.StatusView) {
	m.lastUpdate = time.Now()

	stats := m.stats.Stats()
	stats.CanonicalLength = s.CanonicalLength
	stats.Syncing = s.Syncing
	stats.NodeState = s.NodeState
	stats.ForksTotal = s.Forks.Total
	stats.ActiveForks = s.Forks.ActiveForks
	stats.MissedBlocks = s.Forks.MissedBlocks
	stats.AvgTxPerBlock = s.AvgTxPerBlock

	if tip := s.Tip; tip != nil {
		stats.Tip = tip.Number
		if tip.Number != m.tip {
			line := fmt.Sprintf("Block #%d", tip.Number)
			if m.tipTimestamp > 0 && tip.Timestamp > m.tipTimestamp {
				line += fmt.Sprintf(" (+%ds)", tip.Timestamp-m.tipTimestamp)
			}
			line += fmt.Sprintf(" | txs %d | gas %d/%d", tip.TxCount, tip.GasUsed, tip.GasLimit)
			m.activity = addLine(m.activity, maxActivity, line)
			m.tip = tip.Number
			m.tipTimestamp = tip.Timestamp
		}
	}
	m.stats.Update(stats)

	if smp := s.LatestSample; smp != nil {
		m.gas.SetSample(smp.BlockNumber, []components.GasRow{
			{Label: "Min", Gwei: smp.Min.Gwei},
			{Label: "P25", Gwei: smp.P25.Gwei},
			{Label: "Median", Gwei: smp.Median.Gwei},
			{Label: "P75", Gwei: smp.P75.Gwei},
			{Label: "Max", Gwei: smp.Max.Gwei},
			{Label: "Mean", Gwei: smp.Mean.Gwei},
		}, smp.UtilizationPercent)
	}
}

// addLine appends a timestamped line and keeps the last n.
func addLine(lines []string, n int, message string) []string {
	lines = append(lines, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	if m.phase == PhaseStartup {
		return m.renderStartupScreen()
	}

	width := m.width
	if width == 0 {
		width = 100
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" ⛏ " + m.title + " "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")
	b.WriteString(BoxStyle.Width(width - 4).Render(m.stats.View()))
	b.WriteString("\n")

	leftCol := m.gas.View()
	rightCol := m.renderActivityFeed() + "\n\n" + m.forks.View()

	if width > 100 {
		left := BoxStyle.Width(width/3 - 2).Render(leftCol)
		right := BoxStyle.Width(width*2/3 - 4).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(width - 4).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width - 4).Render(rightCol))
	}
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(ColorDanger).Render("ERRORS"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorValue.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(StatusReconnecting.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderActivityFeed() string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activity) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for blocks..."))
		return sb.String()
	}
	for _, line := range m.activity {
		if strings.Contains(line, "Block #") {
			sb.WriteString(BlockValue.Render("  " + line))
		} else {
			sb.WriteString(MutedValue.Render("  " + line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(HeaderStyle.Render("  ⛏ " + m.title))
	sb.WriteString("\n\n")

	spinners := []string{"◐", "◓", "◑", "◒"}
	idx := int(time.Since(m.startTime)/tickInterval) % len(spinners)
	sb.WriteString(StatusReconnecting.Render("  " + spinners[idx] + " Waiting for first status..."))
	sb.WriteString("\n\n")
	sb.WriteString(m.feeds.View())
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", time.Since(m.startTime).Round(time.Second))))
	sb.WriteString("\n")
	for _, err := range m.errors {
		sb.WriteString(ErrorValue.Render("  • " + err.Message))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{fmt.Sprintf("Block: #%d", m.tip)}

	if m.feeds.Connected() {
		parts = append(parts, StatusConnected.Render("● live"))
	} else {
		parts = append(parts, StatusDisconnected.Render("○ offline"))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}
