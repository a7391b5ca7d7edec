package subagent

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDurationShort(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "n/a"},
		{8 * time.Second, "8s"},
		{5*time.Minute + 12*time.Second, "5m12s"},
		{2*time.Hour + 3*time.Minute, "2h3m"},
	}
	for _, c := range cases {
		if got := FormatDurationShort(c.d); got != c.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestFormatTokenCount(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{42, "42"},
		{1500, "1.5k"},
		{2_500_000, "2.5m"},
	}
	for _, c := range cases {
		if got := FormatTokenCount(c.n); got != c.want {
			t.Errorf("FormatTokenCount(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(0); got != "" {
		t.Errorf("zero cost should format empty, got %q", got)
	}
	if got := FormatUSD(0.003); got != "$0.0030" {
		t.Errorf("sub-cent cost got %q", got)
	}
	if got := FormatUSD(1.5); got != "$1.50" {
		t.Errorf("got %q", got)
	}
}

func TestBuildStatsLine_IncludesAllFields(t *testing.T) {
	line := BuildStatsLine(Stats{
		Runtime:      5 * time.Second,
		InputTokens:  100,
		OutputTokens: 50,
		TotalTokens:  150,
		Cost:         0.01,
		AgentID:      "agent-2",
		MissionID:    "mission-1",
	})
	for _, want := range []string{"runtime 5s", "tokens 150", "est $0.01", "agent agent-2", "mission mission-1"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected stats line to contain %q, got %q", want, line)
		}
	}
}
