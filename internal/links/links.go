// Package links lists the outgoing and incoming article links of a page.
package links

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/mediawiki"
)

// API is the subset of the MediaWiki client the link source uses.
type API interface {
	LinksPage(ctx context.Context, title string, cont mediawiki.Continue) (*mediawiki.LinkPage, error)
	BacklinksPage(ctx context.Context, title string, cont mediawiki.Continue) (*mediawiki.LinkPage, error)
	Wikitext(ctx context.Context, title string) (string, error)
}

// Filter selects which template-borne links Outgoing returns.
type Filter struct {
	IncludeInfobox bool
	IncludeNavbox  bool
}

// All includes every link on the page.
var All = Filter{IncludeInfobox: true, IncludeNavbox: true}

// Full reports whether no template category is excluded.
func (f Filter) Full() bool {
	return f.IncludeInfobox && f.IncludeNavbox
}

func (f Filter) excluded() []string {
	var names []string
	if !f.IncludeInfobox {
		names = append(names, "Infobox")
	}
	if !f.IncludeNavbox {
		names = append(names, "Navbox")
	}
	return names
}

// Options configures a Source.
type Options struct {
	// PageDelay is slept between consecutive pages of a listing. Zero
	// disables the delay.
	PageDelay time.Duration
	Logger    *slog.Logger
}

// Source fetches link sets through the API.
type Source struct {
	api  API
	opts Options
}

// NewSource creates a link source.
func NewSource(api API, opts Options) *Source {
	opts.Logger = logging.OrDiscard(opts.Logger)
	return &Source{api: api, opts: opts}
}

// Outgoing returns the article titles title links to, de-duplicated in
// first-seen order. With a full filter the indexed link listing is paged
// through; otherwise the page markup is fetched and the excluded template
// blocks are removed before links are extracted.
//
// When ctx is cancelled between pages, the links gathered so far are
// returned without error.
func (s *Source) Outgoing(ctx context.Context, title string, f Filter) ([]string, error) {
	if f.Full() {
		return s.paginate(ctx, "links", title, s.api.LinksPage)
	}
	if ctx.Err() != nil {
		return nil, nil
	}
	text, err := s.api.Wikitext(ctx, title)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("outgoing links of %q: %w", title, err)
	}
	return ExtractLinks(StripTemplates(text, f.excluded()...)), nil
}

// Incoming returns the article titles linking to title.
func (s *Source) Incoming(ctx context.Context, title string) ([]string, error) {
	return s.paginate(ctx, "backlinks", title, s.api.BacklinksPage)
}

type pageFunc func(ctx context.Context, title string, cont mediawiki.Continue) (*mediawiki.LinkPage, error)

func (s *Source) paginate(ctx context.Context, kind, title string, fetch pageFunc) ([]string, error) {
	var (
		out  []string
		seen = make(map[string]bool)
		cont mediawiki.Continue
	)
	for pages := 0; ; pages++ {
		if pages > 0 {
			if err := wait(ctx, s.opts.PageDelay); err != nil {
				return out, nil
			}
		}
		if ctx.Err() != nil {
			return out, nil
		}

		page, err := fetch(ctx, title, cont)
		if err != nil {
			if ctx.Err() != nil {
				return out, nil
			}
			return out, fmt.Errorf("%s of %q: %w", kind, title, err)
		}
		for _, t := range page.Titles {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
		if len(page.Continue) == 0 {
			s.opts.Logger.Debug("fetched links", "kind", kind, "title", title, "pages", pages+1, "count", len(out))
			return out, nil
		}
		cont = page.Continue
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
