package chain

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latebit/wikichain/internal/errors"
	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/graph"
	"github.com/latebit/wikichain/internal/links"
	"github.com/latebit/wikichain/internal/titles"
	"github.com/latebit/wikichain/internal/wikitest"
)

func newFinder(wiki *wikitest.Wiki) *Finder {
	r := titles.NewResolver(wiki, nil, titles.Options{})
	return NewFinder(r, links.NewSource(wiki, links.Options{}), nil)
}

// wikitextOnly hides infobox links, so outgoing links come from the markup.
func wikitextOnly() Config {
	cfg := DefaultConfig()
	cfg.Filter = links.Filter{IncludeInfobox: false, IncludeNavbox: true}
	return cfg
}

func TestFindChainSameTitle(t *testing.T) {
	wiki := wikitest.New().Page("Philosophy", "Logic")
	out, err := newFinder(wiki).FindChain(context.Background(), "Philosophy", "Philosophy", DefaultConfig())
	require.NoError(t, err)

	assert.True(t, out.Found)
	assert.Equal(t, []string{"Philosophy"}, out.Chain)
	assert.Zero(t, out.Length)
	assert.Equal(t, 1, out.Attempts)
	assert.NotEmpty(t, out.SessionID)
	assert.Zero(t, wiki.Calls("LinksPage"))
}

func TestFindChainAcceptsURLs(t *testing.T) {
	wiki := wikitest.New().
		Page("Albert Einstein", "Physics").
		Page("Physics")
	out, err := newFinder(wiki).FindChain(context.Background(),
		"https://en.wikipedia.org/wiki/Albert_Einstein", "physics", DefaultConfig())
	require.NoError(t, err)

	assert.True(t, out.Found)
	assert.Equal(t, "Albert Einstein", out.Source)
	assert.Equal(t, "Physics", out.Target)
	assert.Equal(t, []string{"Albert Einstein", "Physics"}, out.Chain)
	assert.Equal(t, 1, out.Length)
}

func TestFindChainValidation(t *testing.T) {
	wiki := wikitest.New().Page("Dog")
	_, err := newFinder(wiki).FindChain(context.Background(), "  ", "Dog", DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.Zero(t, wiki.Calls("QueryTitles"))
}

func TestFindChainNotFound(t *testing.T) {
	wiki := wikitest.New().Page("Dog")
	_, err := newFinder(wiki).FindChain(context.Background(), "Dog", "Nowhere Land", DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.Contains(t, err.Error(), "Nowhere Land")
	assert.Zero(t, wiki.Calls("LinksPage"))
}

func TestFindChainTransportError(t *testing.T) {
	wiki := wikitest.New().Page("Dog").Fail("Cat", stderrors.New("connection refused"))
	_, err := newFinder(wiki).FindChain(context.Background(), "Dog", "Cat", DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTransport))
}

func TestFindChainNoChain(t *testing.T) {
	wiki := wikitest.New().Page("Island", "Sea").Page("Sea").Page("Mountain")
	out, err := newFinder(wiki).FindChain(context.Background(), "Island", "Mountain", DefaultConfig())
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.False(t, out.Stopped)
	assert.Nil(t, out.Chain)
	assert.Equal(t, 1, out.Attempts)
}

func TestFindChainRetriesWithBlacklist(t *testing.T) {
	// Start's markup links Alpha, but its link table does not, so the first
	// candidate fails verification.
	wiki := wikitest.New().
		Page("Start", "Bridge").
		SetWikitext("Start", "[[Alpha]] [[Bridge]]").
		Page("Alpha", "End").
		Page("Bridge", "End").
		Page("End")

	var blacklisted []graph.Edge
	cfg := wikitextOnly()
	cfg.Observer = func(e events.Event) {
		if e.Kind == events.EdgeBlacklisted {
			blacklisted = append(blacklisted, graph.Edge{From: e.From, To: e.To})
		}
	}

	out, err := newFinder(wiki).FindChain(context.Background(), "Start", "End", cfg)
	require.NoError(t, err)

	assert.True(t, out.Found)
	assert.Equal(t, []string{"Start", "Bridge", "End"}, out.Chain)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []graph.Edge{{From: "Start", To: "Alpha"}}, out.Blacklisted)
	assert.Equal(t, out.Blacklisted, blacklisted)
}

func TestFindChainRetryLimit(t *testing.T) {
	wiki := wikitest.New().
		Page("Start", "Bridge").
		SetWikitext("Start", "[[Alpha]] [[Beta]] [[Bridge]]").
		Page("Alpha", "End").
		Page("Beta", "End").
		Page("Bridge", "End").
		Page("End")
	cfg := wikitextOnly()
	cfg.MaxRetries = 1

	out, err := newFinder(wiki).FindChain(context.Background(), "Start", "End", cfg)
	require.NoError(t, err)

	assert.False(t, out.Found)
	assert.Equal(t, 2, out.Attempts)
	assert.Len(t, out.Blacklisted, 2)
}

func TestFindChainSeededBlacklist(t *testing.T) {
	wiki := wikitest.New().
		Page("Start", "Alpha", "Bridge").
		Page("Alpha", "End").
		Page("Bridge", "End").
		Page("End")
	cfg := DefaultConfig()
	cfg.Blacklist = []graph.Edge{{From: "Alpha", To: "End"}}

	out, err := newFinder(wiki).FindChain(context.Background(), "Start", "End", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Start", "Bridge", "End"}, out.Chain)
}

func TestFindChainCancelled(t *testing.T) {
	wiki := wikitest.New().
		Page("Start", "Alpha").
		Page("Alpha", "Beta").
		Page("Beta", "End").
		Page("End")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := DefaultConfig()
	cfg.Observer = func(e events.Event) {
		if e.Kind == events.NodeExpanded {
			cancel()
		}
	}

	out, err := newFinder(wiki).FindChain(ctx, "Start", "End", cfg)
	require.NoError(t, err)
	assert.True(t, out.Stopped)
	assert.False(t, out.Found)
	assert.Equal(t, 1, out.Expanded)
}

func TestNormalize(t *testing.T) {
	wiki := wikitest.New().
		Page("Dog", "Canine").
		Page("Canine").
		Redirect("Doggo", "Dog").
		Redirect("Hound", "Canine")
	f := newFinder(wiki)
	ctx := context.Background()

	tests := []struct {
		name  string
		chain []string
		want  []string
	}{
		{name: "duplicate collapsed", chain: []string{"Dog", "Canine", "Canine"}, want: []string{"Dog", "Canine"}},
		{name: "redirect back to previous", chain: []string{"Dog", "Doggo"}, want: []string{"Dog"}},
		{name: "redirect canonicalized", chain: []string{"Dog", "Hound"}, want: []string{"Dog", "Canine"}},
		{name: "cycle removed", chain: []string{"dog", "Canine", "Dog"}, want: []string{"Dog", "Canine"}},
		{name: "unknown kept", chain: []string{"Dog", "Nowhere"}, want: []string{"Dog", "Nowhere"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Normalize(ctx, tt.chain))
		})
	}
}
