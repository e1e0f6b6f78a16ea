package ui

import (
	"time"

	"github.com/fd1az/mordor-monitor/business/monitor/domain"
)

// Message types for TUI updates

// StatusMsg carries a fresh status snapshot from the daemon stream or from
// the node fallback.
type StatusMsg struct {
	Status domain.StatusView
}

// ForkMsg is sent when a reorganization is reported.
type ForkMsg struct {
	Fork     domain.ForkView
	Outcomes []string
}

// RecommendationMsg is sent when gas tiers are refreshed.
type RecommendationMsg struct {
	Recommendation domain.RecommendationView
}

// ConnectionStatusMsg is sent when a feed changes state.
type ConnectionStatusMsg struct {
	Name      string
	State     string
	Connected bool
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// LogMsg is sent to add a line to the activity feed.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// TickMsg is sent periodically for UI updates.
type TickMsg time.Time
