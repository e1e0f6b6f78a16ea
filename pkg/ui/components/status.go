// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a feed's status.
type ConnectionStatus struct {
	Name       string
	State      string
	Connected  bool
	LastUpdate time.Time
}

// StatusComponent renders the status of each data feed.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Connected reports whether any feed is up.
func (s *StatusComponent) Connected() bool {
	for _, conn := range s.connections {
		if conn.Connected {
			return true
		}
	}
	return false
}

// View renders the status component.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No feeds"
	}

	up := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	down := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var result string
	for _, conn := range s.connections {
		icon, style := "●", up
		if !conn.Connected {
			icon, style = "○", down
		}
		line := fmt.Sprintf("├─ %s: %s", conn.Name, style.Render(icon+" "+conn.State))
		if !conn.LastUpdate.IsZero() {
			line += fmt.Sprintf(" (%s ago)", time.Since(conn.LastUpdate).Round(time.Second))
		}
		result += line + "\n"
	}

	return result
}
