package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/latebit/wikichain/internal/chain"
	"github.com/latebit/wikichain/internal/graph"
	"github.com/latebit/wikichain/internal/mediawiki"
)

func sampleOutcome() *chain.Outcome {
	return &chain.Outcome{
		SessionID:   "7d1f",
		Source:      "Albert Einstein",
		Target:      "Mercury (planet)",
		Chain:       []string{"Albert Einstein", "General relativity", "Mercury (planet)"},
		Length:      2,
		Meeting:     "General relativity",
		Attempts:    2,
		Expanded:    17,
		Visited:     340,
		Found:       true,
		Blacklisted: []graph.Edge{{From: "Albert Einstein", To: "Ulm"}},
		Elapsed:     2345 * time.Millisecond,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: Text},
		{in: "json", want: JSON},
		{in: "YAML", want: YAML},
		{in: "html", want: HTML},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromOutcome(t *testing.T) {
	r := FromOutcome(sampleOutcome(), mediawiki.DefaultEndpoint)
	require.Len(t, r.Chain, 3)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Mercury_%28planet%29", r.Chain[2].URL)
	assert.Equal(t, []string{"Albert Einstein → Ulm"}, r.Blacklisted)
	assert.Equal(t, "2.345s", r.Elapsed)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromOutcome(sampleOutcome(), mediawiki.DefaultEndpoint), Text))
	out := buf.String()
	assert.Contains(t, out, "Albert Einstein → General relativity → Mercury (planet)")
	assert.Contains(t, out, "length 2, met at General relativity")
	assert.Contains(t, out, "https://en.wikipedia.org/wiki/General_relativity")
	assert.Contains(t, out, "blacklisted Albert Einstein → Ulm")
}

func TestWriteTextNotFound(t *testing.T) {
	o := &chain.Outcome{Source: "A", Target: "B", Attempts: 1}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromOutcome(o, ""), Text))
	assert.True(t, strings.HasPrefix(buf.String(), "No chain found: A → B"))

	o.Stopped = true
	buf.Reset()
	require.NoError(t, Write(&buf, FromOutcome(o, ""), Text))
	assert.True(t, strings.HasPrefix(buf.String(), "Search stopped"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromOutcome(sampleOutcome(), mediawiki.DefaultEndpoint), JSON))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.True(t, got.Found)
	assert.Equal(t, "General relativity", got.Chain[1].Title)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromOutcome(sampleOutcome(), mediawiki.DefaultEndpoint), YAML))
	assert.Contains(t, buf.String(), "session_id: 7d1f")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got["length"])
}

func TestWriteMarkdownAndHTML(t *testing.T) {
	r := FromOutcome(sampleOutcome(), mediawiki.DefaultEndpoint)

	var md bytes.Buffer
	require.NoError(t, Write(&md, r, Markdown))
	assert.Contains(t, md.String(), "1. [Albert Einstein](https://en.wikipedia.org/wiki/Albert_Einstein)")
	assert.Contains(t, md.String(), "## Blacklisted edges")

	var html bytes.Buffer
	require.NoError(t, Write(&html, r, HTML))
	assert.Contains(t, html.String(), "<ol>")
	assert.Contains(t, html.String(), `<a href="https://en.wikipedia.org/wiki/Albert_Einstein">Albert Einstein</a>`)
}

func TestWritePretty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromOutcome(sampleOutcome(), mediawiki.DefaultEndpoint), Pretty))
	assert.Contains(t, buf.String(), "Einstein")
}

func TestWriteValueRejectsTextFormats(t *testing.T) {
	assert.Error(t, WriteValue(&bytes.Buffer{}, map[string]int{"a": 1}, Markdown))
}
