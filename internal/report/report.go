// Package report renders search outcomes in the output formats the commands
// support.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/latebit/wikichain/internal/chain"
	"github.com/latebit/wikichain/internal/mediawiki"
)

// Format is an output format name.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	YAML     Format = "yaml"
	Markdown Format = "markdown"
	HTML     Format = "html"
	Pretty   Format = "pretty"
)

// Formats lists every supported format.
var Formats = []Format{Text, JSON, YAML, Markdown, HTML, Pretty}

// ParseFormat validates a format name. The empty string means Text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return Text, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (valid: %s)", s, strings.Join(names, ", "))
}

// Link is one chain node with its article URL.
type Link struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Report is the serializable view of a chain.Outcome.
type Report struct {
	SessionID   string   `json:"session_id" yaml:"session_id"`
	Source      string   `json:"source" yaml:"source"`
	Target      string   `json:"target" yaml:"target"`
	Found       bool     `json:"found" yaml:"found"`
	Stopped     bool     `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	Chain       []Link   `json:"chain" yaml:"chain"`
	Length      int      `json:"length" yaml:"length"`
	Meeting     string   `json:"meeting,omitempty" yaml:"meeting,omitempty"`
	Attempts    int      `json:"attempts" yaml:"attempts"`
	Expanded    int      `json:"expanded" yaml:"expanded"`
	Visited     int      `json:"visited" yaml:"visited"`
	Blacklisted []string `json:"blacklisted,omitempty" yaml:"blacklisted,omitempty"`
	Elapsed     string   `json:"elapsed" yaml:"elapsed"`
}

// FromOutcome builds a report. endpoint is the API endpoint the chain was
// found on, used to build article URLs.
func FromOutcome(o *chain.Outcome, endpoint string) Report {
	r := Report{
		SessionID: o.SessionID,
		Source:    o.Source,
		Target:    o.Target,
		Found:     o.Found,
		Stopped:   o.Stopped,
		Chain:     make([]Link, 0, len(o.Chain)),
		Length:    o.Length,
		Meeting:   o.Meeting,
		Attempts:  o.Attempts,
		Expanded:  o.Expanded,
		Visited:   o.Visited,
		Elapsed:   o.Elapsed.Round(time.Millisecond).String(),
	}
	for _, t := range o.Chain {
		r.Chain = append(r.Chain, Link{Title: t, URL: mediawiki.ArticleURL(endpoint, t)})
	}
	for _, e := range o.Blacklisted {
		r.Blacklisted = append(r.Blacklisted, e.String())
	}
	return r
}

// Write renders r to w in format f.
func Write(w io.Writer, r Report, f Format) error {
	switch f {
	case JSON, YAML:
		return WriteValue(w, r, f)
	case Markdown:
		_, err := io.WriteString(w, markdown(r))
		return err
	case HTML:
		return toHTML(w, markdown(r))
	case Pretty:
		return toTerminal(w, markdown(r), 80)
	default:
		_, err := io.WriteString(w, text(r))
		return err
	}
}

// WriteValue writes v as JSON or YAML. Other formats are rejected.
func WriteValue(w io.Writer, v any, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q cannot encode values", f)
}

func text(r Report) string {
	var b strings.Builder
	switch {
	case r.Stopped:
		fmt.Fprintf(&b, "Search stopped: %s → %s\n", r.Source, r.Target)
	case !r.Found:
		fmt.Fprintf(&b, "No chain found: %s → %s\n", r.Source, r.Target)
	default:
		titles := make([]string, len(r.Chain))
		for i, l := range r.Chain {
			titles[i] = l.Title
		}
		fmt.Fprintf(&b, "%s\n", strings.Join(titles, " → "))
		fmt.Fprintf(&b, "length %d", r.Length)
		if r.Meeting != "" {
			fmt.Fprintf(&b, ", met at %s", r.Meeting)
		}
		b.WriteByte('\n')
		for i, l := range r.Chain {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, l.URL)
		}
	}
	fmt.Fprintf(&b, "attempts %d, expanded %d, visited %d, %s\n", r.Attempts, r.Expanded, r.Visited, r.Elapsed)
	for _, e := range r.Blacklisted {
		fmt.Fprintf(&b, "  blacklisted %s\n", e)
	}
	return b.String()
}

func markdown(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s → %s\n\n", r.Source, r.Target)
	switch {
	case r.Stopped:
		b.WriteString("The search was stopped before it finished.\n\n")
	case !r.Found:
		b.WriteString("No chain was found within the search budget.\n\n")
	default:
		for i, l := range r.Chain {
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, l.Title, l.URL)
		}
		fmt.Fprintf(&b, "\n**%d links**", r.Length)
		if r.Meeting != "" {
			fmt.Fprintf(&b, ", frontiers met at *%s*", r.Meeting)
		}
		b.WriteString(".\n\n")
	}

	b.WriteString("| attempts | expanded | visited | elapsed |\n")
	b.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %s |\n", r.Attempts, r.Expanded, r.Visited, r.Elapsed)

	if len(r.Blacklisted) > 0 {
		b.WriteString("\n## Blacklisted edges\n\n")
		for _, e := range r.Blacklisted {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}

func toHTML(w io.Writer, md string) error {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// RenderTerminal renders markdown for a terminal of the given width.
func RenderTerminal(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func toTerminal(w io.Writer, md string, width int) error {
	out, err := RenderTerminal(md, width)
	if err != nil {
		return fmt.Errorf("render terminal: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// MarkdownOf returns the markdown rendering of r.
func MarkdownOf(r Report) string {
	return markdown(r)
}
