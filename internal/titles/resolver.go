// Package titles canonicalizes article titles against the wiki, memoizing
// every answer in a session cache.
package titles

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/latebit/wikichain/internal/cache"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/mediawiki"
)

// API is the remote title query the resolver needs.
type API interface {
	QueryTitles(ctx context.Context, titles []string) (*mediawiki.TitleQuery, error)
}

// Resolution is the outcome of resolving one input title.
type Resolution struct {
	Input     string
	Canonical string // empty when the page does not exist
	Exists    bool
	// Echoed is set when the wiki never answered for Input and Canonical is
	// Input itself rather than a true resolution.
	Echoed bool
}

// RedirectInfo tells whether a title is a redirect and where it points.
type RedirectInfo struct {
	IsRedirect bool
	Target     string
}

// Options configures a Resolver.
type Options struct {
	// MaxBatch bounds titles per request (default mediawiki.MaxTitlesPerQuery).
	MaxBatch int
	// Parallel bounds concurrent batch requests (default 4).
	Parallel int
	Logger   *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.MaxBatch <= 0 || o.MaxBatch > mediawiki.MaxTitlesPerQuery {
		o.MaxBatch = mediawiki.MaxTitlesPerQuery
	}
	if o.Parallel <= 0 {
		o.Parallel = 4
	}
	o.Logger = logging.OrDiscard(o.Logger)
}

// Resolver resolves titles through a shared cache. Every lookup checks the
// cache first and every answer from the wiki is cached before returning.
type Resolver struct {
	api   API
	cache *cache.Cache
	opts  Options
}

// NewResolver returns a resolver backed by api and c. A nil cache gets a fresh one.
func NewResolver(api API, c *cache.Cache, opts Options) *Resolver {
	opts.applyDefaults()
	if c == nil {
		c = cache.New()
	}
	return &Resolver{api: api, cache: c, opts: opts}
}

// Cache returns the resolver's cache.
func (r *Resolver) Cache() *cache.Cache {
	return r.cache
}

// Resolve returns the canonical title of title. exists is false when the
// page does not exist; err is set only for transport or API failures, which
// are not cached.
func (r *Resolver) Resolve(ctx context.Context, title string) (canonical string, exists bool, err error) {
	if e, ok := r.cache.Get(title); ok {
		return e.Canonical, e.Exists, nil
	}

	q, err := r.api.QueryTitles(ctx, []string{title})
	if err != nil {
		return "", false, fmt.Errorf("resolve %q: %w", title, err)
	}
	r.absorb(q, []string{title})

	canonical, exists, known := q.Resolve(title)
	if !known {
		// A response that never mentions the title is treated as missing.
		r.cache.Put(title, "", false)
		return "", false, nil
	}
	return canonical, exists, nil
}

// ResolveBatch resolves titles and returns one Resolution per input, in
// input order. Cache misses are grouped into requests of at most MaxBatch
// titles that run concurrently. A failed group is logged and its titles are
// echoed back; the returned error is only non-nil when ctx is done.
func (r *Resolver) ResolveBatch(ctx context.Context, titles []string) ([]Resolution, error) {
	out := make([]Resolution, len(titles))

	var misses []string
	pending := make(map[string]bool)
	for i, t := range titles {
		out[i].Input = t
		if e, ok := r.cache.Get(t); ok {
			out[i].Canonical, out[i].Exists = e.Canonical, e.Exists
			continue
		}
		if k := cache.Key(t); !pending[k] {
			pending[k] = true
			misses = append(misses, t)
		}
	}

	if len(misses) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Parallel)
		for start := 0; start < len(misses); start += r.opts.MaxBatch {
			group := misses[start:min(start+r.opts.MaxBatch, len(misses))]
			g.Go(func() error {
				q, err := r.api.QueryTitles(gctx, group)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					r.opts.Logger.Warn("batch title resolution failed", "titles", len(group), "err", err)
					return nil
				}
				r.absorb(q, group)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for i := range out {
		if out[i].Exists || out[i].Canonical != "" {
			continue
		}
		if e, ok := r.cache.Get(out[i].Input); ok {
			out[i].Canonical, out[i].Exists = e.Canonical, e.Exists
			continue
		}
		out[i].Canonical, out[i].Exists, out[i].Echoed = out[i].Input, true, true
	}
	return out, nil
}

// RedirectInfo reports whether title is a redirect page and, if so, its target.
func (r *Resolver) RedirectInfo(ctx context.Context, title string) (RedirectInfo, error) {
	if rd, ok := r.cache.GetRedirect(title); ok {
		return RedirectInfo{IsRedirect: rd.IsRedirect, Target: rd.Target}, nil
	}
	q, err := r.api.QueryTitles(ctx, []string{title})
	if err != nil {
		return RedirectInfo{}, fmt.Errorf("redirect info %q: %w", title, err)
	}
	r.absorb(q, []string{title})
	rd, _ := r.cache.GetRedirect(title)
	return RedirectInfo{IsRedirect: rd.IsRedirect, Target: rd.Target}, nil
}

// absorb writes everything a title query taught us into the cache: each
// requested input, plus the normalization and redirect sources it reported.
func (r *Resolver) absorb(q *mediawiki.TitleQuery, inputs []string) {
	for _, in := range inputs {
		canonical, exists, known := q.Resolve(in)
		if known {
			r.cache.Put(in, canonical, exists)
		}
		target, isRedirect := q.RedirectTarget(in)
		if isRedirect || known {
			r.cache.PutRedirect(in, isRedirect, target)
		}
	}
	for _, m := range q.Redirects {
		if canonical, exists, known := q.Resolve(m.From); known {
			r.cache.Put(m.From, canonical, exists)
		}
		r.cache.PutRedirect(m.From, true, m.To)
	}
	for _, p := range q.Pages {
		if p.Missing || p.Invalid {
			r.cache.Put(p.Title, "", false)
			continue
		}
		r.cache.Put(p.Title, p.Title, true)
		if !p.Redirect {
			r.cache.PutRedirect(p.Title, false, "")
		}
	}
}
