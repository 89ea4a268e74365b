package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/latebit/wikichain/internal/events"
)

const maxShownBlacklist = 8

// progress is the live view of a running search, fed by search events.
type progress struct {
	source string
	target string

	started  time.Time
	elapsed  time.Duration
	attempt  int
	expanded int
	visited  int
	forward  int
	backward int
	failures int

	current   string
	direction events.Direction
	depth     int
	meeting   string

	blacklisted []string
}

func newProgress(source, target string, now time.Time) progress {
	return progress{source: source, target: target, started: now}
}

func (p *progress) apply(e events.Event) {
	switch e.Kind {
	case events.AttemptStarted:
		p.attempt = e.Attempt
		p.meeting = ""
	case events.NodeExpanded:
		// Expanded from the engine counts only the current attempt.
		p.current, p.direction, p.depth = e.Title, e.Direction, e.Depth
		p.visited = e.Visited
		p.forward, p.backward = e.ForwardQueue, e.BackwardQueue
		p.expanded++
	case events.FetchFailed:
		p.failures++
	case events.MeetingFound:
		p.meeting = e.Title
		p.visited = e.Visited
	case events.EdgeBlacklisted:
		p.blacklisted = append(p.blacklisted, e.From+" → "+e.To)
	}
}

func (p progress) view() string {
	label := lipgloss.NewStyle().Faint(true).Width(16)
	row := func(name, value string) string {
		return "  " + label.Render(name) + value + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  Searching %s → %s\n\n", p.source, p.target)
	b.WriteString(row("attempt", fmt.Sprint(max(p.attempt, 1))))
	b.WriteString(row("elapsed", p.elapsed.Round(100*time.Millisecond).String()))
	b.WriteString(row("expanded", fmt.Sprint(p.expanded)))
	b.WriteString(row("visited", fmt.Sprint(p.visited)))
	b.WriteString(row("forward queue", fmt.Sprint(p.forward)))
	b.WriteString(row("backward queue", fmt.Sprint(p.backward)))
	if p.current != "" {
		b.WriteString(row("expanding", fmt.Sprintf("%s (%s, depth %d)", p.current, p.direction, p.depth)))
	}
	if p.meeting != "" {
		b.WriteString(row("meeting", p.meeting))
	}
	if p.failures > 0 {
		b.WriteString(row("failed fetches", fmt.Sprint(p.failures)))
	}

	if len(p.blacklisted) > 0 {
		b.WriteString("\n  Blacklisted\n")
		shown := p.blacklisted
		if len(shown) > maxShownBlacklist {
			fmt.Fprintf(&b, "    … %d earlier\n", len(shown)-maxShownBlacklist)
			shown = shown[len(shown)-maxShownBlacklist:]
		}
		for _, e := range shown {
			b.WriteString("    " + e + "\n")
		}
	}
	return b.String()
}

// summary is the one-line form shown in the status bar.
func (p progress) summary() string {
	parts := []string{
		fmt.Sprintf("attempt %d", max(p.attempt, 1)),
		fmt.Sprintf("visited %d", p.visited),
		fmt.Sprintf("fwd %d", p.forward),
		fmt.Sprintf("bwd %d", p.backward),
		p.elapsed.Round(100 * time.Millisecond).String(),
	}
	if p.meeting != "" {
		parts = append(parts, "met at "+p.meeting)
	}
	return strings.Join(parts, "  ")
}
