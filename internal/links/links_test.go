package links

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latebit/wikichain/internal/mediawiki"
	"github.com/latebit/wikichain/internal/wikitest"
)

func TestOutgoingPaginates(t *testing.T) {
	wiki := wikitest.New().Page("A", "B", "C", "D", "E", "C")
	src := NewSource(wiki, Options{})

	got, err := src.Outgoing(context.Background(), "A", All)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "D", "E"}, got)
	assert.Equal(t, 3, wiki.Calls("LinksPage", "A"))
	assert.Zero(t, wiki.Calls("Wikitext"))
}

func TestOutgoingFilteredUsesWikitext(t *testing.T) {
	wiki := wikitest.New().
		Page("Einstein", "Ulm", "Physics").
		SetWikitext("Einstein", "{{Infobox scientist|birth_place=[[Ulm]]}} A [[Physics|physicist]].")
	src := NewSource(wiki, Options{})

	got, err := src.Outgoing(context.Background(), "Einstein", Filter{IncludeInfobox: false, IncludeNavbox: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Physics"}, got)
	assert.Equal(t, 1, wiki.Calls("Wikitext"))
	assert.Zero(t, wiki.Calls("LinksPage"))
}

func TestIncomingPaginates(t *testing.T) {
	wiki := wikitest.New().
		Page("Target").
		Page("P1", "Target").
		Page("P2", "Target").
		Page("P3", "Target").
		Page("Other", "P1")
	src := NewSource(wiki, Options{})

	got, err := src.Incoming(context.Background(), "Target")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3"}, got)
	assert.Equal(t, 2, wiki.Calls("BacklinksPage"))
}

func TestFetchErrorIsReturned(t *testing.T) {
	wiki := wikitest.New().Page("A", "B").Fail("A", errors.New("status 500"))
	src := NewSource(wiki, Options{})

	_, err := src.Outgoing(context.Background(), "A", All)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"A"`)

	_, err = src.Outgoing(context.Background(), "A", Filter{})
	require.Error(t, err)
}

type cancellingAPI struct {
	*wikitest.Wiki
	cancel context.CancelFunc
	pages  int
}

func (c *cancellingAPI) LinksPage(ctx context.Context, title string, cont mediawiki.Continue) (*mediawiki.LinkPage, error) {
	c.pages++
	if c.pages == 1 {
		defer c.cancel()
	}
	return c.Wiki.LinksPage(ctx, title, cont)
}

func TestCancelReturnsPartialLinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &cancellingAPI{Wiki: wikitest.New().Page("A", "B", "C", "D", "E"), cancel: cancel}
	src := NewSource(api, Options{PageDelay: time.Second})

	start := time.Now()
	got, err := src.Outgoing(ctx, "A", All)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, got)
	assert.Equal(t, 1, api.pages)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "page delay must honour cancellation")
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wiki := wikitest.New().Page("A", "B")
	src := NewSource(wiki, Options{})

	got, err := src.Incoming(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, wiki.Calls("BacklinksPage"))

	got, err = src.Outgoing(ctx, "A", Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, wiki.Calls("Wikitext"))
}

func TestFilterFull(t *testing.T) {
	assert.True(t, All.Full())
	assert.False(t, Filter{IncludeInfobox: true}.Full())
	assert.False(t, Filter{IncludeNavbox: true}.Full())
}
