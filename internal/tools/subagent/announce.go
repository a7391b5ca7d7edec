// Package subagent formats the human-readable summary attached to a
// spawn_subagent result: how long the child mission ran, its token usage,
// and its estimated cost, rendered the same way for every synthesis call
// regardless of which provider ran the child.
package subagent

import (
	"fmt"
	"strings"
	"time"
)

// Stats is the accounting the runner collects for one completed child
// mission, fed into BuildStatsLine.
type Stats struct {
	Runtime      time.Duration
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Cost         float64
	AgentID      string
	MissionID    string
}

// FormatDurationShort renders d as "2h3m", "5m12s", or "8s".
func FormatDurationShort(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}

	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatTokenCount renders count with a k/m suffix above 1000/1000000.
func FormatTokenCount(count int) string {
	if count <= 0 {
		return "0"
	}
	if count >= 1_000_000 {
		return fmt.Sprintf("%.1fm", float64(count)/1_000_000)
	}
	if count >= 1_000 {
		return fmt.Sprintf("%.1fk", float64(count)/1_000)
	}
	return fmt.Sprintf("%d", count)
}

// FormatUSD renders amount as a dollar string, using extra precision below
// one cent so small per-call costs don't all round to "$0.00".
func FormatUSD(amount float64) string {
	if amount <= 0 {
		return ""
	}
	if amount >= 0.01 {
		return fmt.Sprintf("$%.2f", amount)
	}
	return fmt.Sprintf("$%.4f", amount)
}

// BuildStatsLine renders one line summarizing a completed child mission,
// appended to the parent's synthesis prompt so it can report on delegated
// work without the caller needing to inspect raw usage numbers.
func BuildStatsLine(s Stats) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("runtime %s", FormatDurationShort(s.Runtime)))

	if s.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("tokens %s (in %s / out %s)",
			FormatTokenCount(s.TotalTokens), FormatTokenCount(s.InputTokens), FormatTokenCount(s.OutputTokens)))
	} else {
		parts = append(parts, "tokens n/a")
	}

	if costText := FormatUSD(s.Cost); costText != "" {
		parts = append(parts, fmt.Sprintf("est %s", costText))
	}

	parts = append(parts, fmt.Sprintf("agent %s", s.AgentID))
	if s.MissionID != "" {
		parts = append(parts, fmt.Sprintf("mission %s", s.MissionID))
	}

	return "Stats: " + strings.Join(parts, " • ")
}
