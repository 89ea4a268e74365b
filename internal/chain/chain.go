// Package chain drives the search, verify and blacklist loop that turns two
// article titles into a verified chain of links.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/latebit/wikichain/internal/errors"
	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/graph"
	"github.com/latebit/wikichain/internal/links"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/metrics"
	"github.com/latebit/wikichain/internal/titles"
	"github.com/latebit/wikichain/internal/verify"
)

// Resolver is the title resolution the finder needs.
type Resolver interface {
	Resolve(ctx context.Context, title string) (canonical string, exists bool, err error)
	ResolveBatch(ctx context.Context, names []string) ([]titles.Resolution, error)
	RedirectInfo(ctx context.Context, title string) (titles.RedirectInfo, error)
}

// LinkSource fetches neighbours in both directions.
type LinkSource interface {
	Outgoing(ctx context.Context, title string, f links.Filter) ([]string, error)
	Incoming(ctx context.Context, title string) ([]string, error)
}

// Config holds the per-run search settings.
type Config struct {
	MaxDepth  int
	MaxNodes  int
	BatchSize int
	Filter    links.Filter
	// MaxRetries bounds how many times the search is re-run after a failed
	// verification. Zero means no bound.
	MaxRetries int
	// Blacklist seeds the session blacklist.
	Blacklist []graph.Edge
	Observer  events.Observer
}

// DefaultConfig returns the default budgets with every link included.
func DefaultConfig() Config {
	opts := graph.DefaultOptions()
	return Config{
		MaxDepth:   opts.MaxDepth,
		MaxNodes:   opts.MaxNodes,
		BatchSize:  opts.BatchSize,
		Filter:     opts.Filter,
		MaxRetries: 25,
	}
}

// Outcome describes a finished run.
type Outcome struct {
	SessionID string
	Source    string // canonical source
	Target    string // canonical target
	Chain     []string
	Length    int
	Meeting   string
	// Expanded is summed over all attempts; Visited is from the last one.
	Expanded    int
	Visited     int
	Attempts    int
	Blacklisted []graph.Edge
	Found       bool
	// Stopped is set when the context was cancelled before the run finished.
	Stopped bool
	Elapsed time.Duration
}

// Finder finds verified chains. The resolver's cache is shared by every
// run; each run gets its own blacklist.
type Finder struct {
	resolver Resolver
	links    LinkSource
	engine   *graph.Engine
	logger   *slog.Logger
}

// NewFinder creates a finder.
func NewFinder(resolver Resolver, src LinkSource, logger *slog.Logger) *Finder {
	logger = logging.OrDiscard(logger)
	return &Finder{
		resolver: resolver,
		links:    src,
		engine:   graph.NewEngine(resolver, src, logger),
		logger:   logger,
	}
}

// FindChain searches for a chain from source to target, verifies it, and
// retries with the failed edge blacklisted until a chain verifies, no chain
// is found, or the retry bound is hit. Inputs may be titles or article URLs.
//
// A cancelled ctx yields an Outcome with Stopped set and a nil error.
// Missing pages, empty inputs and transport failures during input
// resolution are returned as coded errors.
func (f *Finder) FindChain(ctx context.Context, source, target string, cfg Config) (out *Outcome, err error) {
	start := time.Now()
	out = &Outcome{SessionID: uuid.NewString()}
	defer func() {
		out.Elapsed = time.Since(start)
		metrics.SearchDuration.WithLabelValues(outcomeLabel(out, err)).Observe(out.Elapsed.Seconds())
	}()

	src, dst, err := f.resolveEndpoints(ctx, source, target)
	if err != nil {
		if ctx.Err() != nil {
			out.Stopped = true
			return out, nil
		}
		return out, err
	}
	out.Source, out.Target = src, dst

	bl := graph.NewBlacklist(cfg.Blacklist...)
	verifier := verify.New(f.resolver, f.links, verify.Options{Blacklist: bl, Observer: cfg.Observer, Logger: f.logger})
	opts := graph.Options{
		MaxDepth:  cfg.MaxDepth,
		MaxNodes:  cfg.MaxNodes,
		BatchSize: cfg.BatchSize,
		Filter:    cfg.Filter,
		Blacklist: bl,
		Observer:  cfg.Observer,
	}
	defer func() { out.Blacklisted = bl.Edges() }()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			out.Stopped = true
			return out, nil
		}
		cfg.Observer.Emit(events.Event{Kind: events.AttemptStarted, Attempt: attempt, From: src, To: dst})

		res, err := f.engine.Search(ctx, src, dst, opts)
		out.Attempts = attempt
		out.Expanded += res.Expanded
		out.Visited = res.Visited
		if err != nil {
			return out, err
		}
		if ctx.Err() != nil {
			out.Stopped = true
			return out, nil
		}
		if !res.Found() {
			f.logger.Info("no chain found", "source", src, "target", dst, "attempt", attempt, "expanded", res.Expanded)
			return out, nil
		}

		verdict := verifier.Verify(ctx, res.Path)
		if ctx.Err() != nil {
			out.Stopped = true
			return out, nil
		}
		if verdict.Valid {
			out.Chain = f.Normalize(ctx, res.Path)
			out.Length = len(out.Chain) - 1
			out.Meeting = res.Meeting
			out.Found = true
			return out, nil
		}

		grew := false
		for _, e := range []graph.Edge{verdict.Edge(), verdict.RawEdge()} {
			if bl.Add(e) {
				grew = true
				cfg.Observer.Emit(events.Event{Kind: events.EdgeBlacklisted, From: e.From, To: e.To, Attempt: attempt})
			}
		}
		if !grew {
			return out, errors.New(errors.CodeNoProgress, "failed edge is already blacklisted").
				With(errors.CtxEdge, verdict.Edge().String())
		}
		if cfg.MaxRetries > 0 && attempt > cfg.MaxRetries {
			f.logger.Warn("retry limit reached", "source", src, "target", dst, "attempts", attempt)
			return out, nil
		}
	}
}

// resolveEndpoints normalizes both inputs and resolves them concurrently.
func (f *Finder) resolveEndpoints(ctx context.Context, source, target string) (string, string, error) {
	in := [2]string{titles.Normalize(source), titles.Normalize(target)}
	if in[0] == "" || in[1] == "" {
		return "", "", errors.New(errors.CodeValidation, "source and target titles are required")
	}

	var (
		canonical [2]string
		exists    [2]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range in {
		g.Go(func() (err error) {
			canonical[i], exists[i], err = f.resolver.Resolve(gctx, in[i])
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", errors.Wrap(err, errors.CodeTransport, "resolving input titles")
	}

	var missing []string
	for i := range in {
		if !exists[i] {
			missing = append(missing, in[i])
		}
	}
	if len(missing) > 0 {
		return "", "", errors.New(errors.CodeNotFound, fmt.Sprintf("page not found: %s", strings.Join(missing, ", "))).
			With(errors.CtxSource, in[0]).
			With(errors.CtxTarget, in[1])
	}
	return canonical[0], canonical[1], nil
}

// Normalize canonicalizes every node of chain, drops a node whose original
// form redirects to the node just emitted, and drops repeated nodes. A node
// that cannot be resolved is kept as given.
func (f *Finder) Normalize(ctx context.Context, chain []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range chain {
		canonical, exists, err := f.resolver.Resolve(ctx, raw)
		if err != nil || !exists {
			if err != nil {
				f.logger.Warn("normalize: keeping unresolved title", "title", raw, "err", err)
			}
			canonical = raw
		}
		if len(out) > 0 {
			info, err := f.resolver.RedirectInfo(ctx, raw)
			if err == nil && info.IsRedirect && titles.Equal(info.Target, out[len(out)-1]) {
				continue
			}
		}
		k := graph.Key(canonical)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, canonical)
	}
	return out
}

func outcomeLabel(out *Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case out.Stopped:
		return "stopped"
	case out.Found:
		return "found"
	}
	return "not_found"
}
