// Package verify re-checks every edge of a candidate chain against live
// link data.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/graph"
	"github.com/latebit/wikichain/internal/links"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/titles"
)

// Resolver canonicalizes titles.
type Resolver interface {
	Resolve(ctx context.Context, title string) (canonical string, exists bool, err error)
	ResolveBatch(ctx context.Context, names []string) ([]titles.Resolution, error)
}

// LinkSource fetches outgoing links.
type LinkSource interface {
	Outgoing(ctx context.Context, title string, f links.Filter) ([]string, error)
}

// Reasons reported in a Violation.
const (
	ReasonMissing     = "page does not exist"
	ReasonNoLink      = "link not found"
	ReasonBlacklisted = "edge is blacklisted"
	ReasonError       = "verification error"
)

// Violation is one edge of the chain that could not be confirmed.
type Violation struct {
	Index   int    // position of From in the chain
	From    string // canonical endpoints, or the raw ones when resolution failed
	To      string
	RawFrom string
	RawTo   string
	Reason  string
	Err     error
}

// Edge returns the violating edge.
func (v Violation) Edge() graph.Edge {
	return graph.Edge{From: v.From, To: v.To}
}

// RawEdge returns the violating edge as it appeared in the chain.
func (v Violation) RawEdge() graph.Edge {
	return graph.Edge{From: v.RawFrom, To: v.RawTo}
}

// Verdict is the outcome of verifying a chain. When Valid is false the
// embedded Violation describes the first bad edge.
type Verdict struct {
	Valid bool
	Violation
	// Violations lists every distinct bad edge. Verify fills in only the
	// first; VerifyAll keeps going.
	Violations []Violation
}

// Options configures a Verifier.
type Options struct {
	// Blacklist edges are never confirmed.
	Blacklist *graph.Blacklist
	Observer  events.Observer
	Logger    *slog.Logger
}

// Verifier checks chains edge by edge.
type Verifier struct {
	resolver Resolver
	links    LinkSource
	opts     Options
}

// New creates a verifier.
func New(resolver Resolver, src LinkSource, opts Options) *Verifier {
	opts.Logger = logging.OrDiscard(opts.Logger)
	return &Verifier{resolver: resolver, links: src, opts: opts}
}

// Verify checks each consecutive pair of path in order and stops at the
// first edge it cannot confirm.
func (v *Verifier) Verify(ctx context.Context, path []string) Verdict {
	return v.verify(ctx, path, false)
}

// VerifyAll is like Verify but reports every bad edge. A processing error
// still ends the pass.
func (v *Verifier) VerifyAll(ctx context.Context, path []string) Verdict {
	return v.verify(ctx, path, true)
}

func (v *Verifier) verify(ctx context.Context, path []string, all bool) Verdict {
	faulty := make(map[graph.Edge]bool)
	var violations []Violation

	for i := 0; i+1 < len(path); i++ {
		rawFrom, rawTo := path[i], path[i+1]
		viol, ok := v.checkEdge(ctx, rawFrom, rawTo, faulty)
		if ok {
			continue
		}
		viol.Index, viol.RawFrom, viol.RawTo = i, rawFrom, rawTo
		v.opts.Observer.Emit(events.Event{Kind: events.VerificationFailed, From: viol.From, To: viol.To, Reason: viol.Reason, Err: viol.Err})
		violations = append(violations, viol)
		if !all || viol.Err != nil {
			break
		}
	}

	if len(violations) == 0 {
		return Verdict{Valid: true}
	}
	return Verdict{Violation: violations[0], Violations: violations}
}

// checkEdge confirms rawFrom→rawTo. ok is true when the edge holds or was
// already reported in this pass.
func (v *Verifier) checkEdge(ctx context.Context, rawFrom, rawTo string, faulty map[graph.Edge]bool) (viol Violation, ok bool) {
	fail := func(err error) (Violation, bool) {
		return Violation{From: rawFrom, To: rawTo, Reason: ReasonError, Err: err}, false
	}

	var (
		from, to             string
		fromExists, toExists bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		from, fromExists, err = v.resolver.Resolve(gctx, rawFrom)
		return err
	})
	g.Go(func() (err error) {
		to, toExists, err = v.resolver.Resolve(gctx, rawTo)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	if !fromExists || !toExists {
		return Violation{From: rawFrom, To: rawTo, Reason: ReasonMissing}, false
	}

	if graph.Key(from) == graph.Key(to) {
		return Violation{}, true
	}
	edge := graph.Edge{From: graph.Key(from), To: graph.Key(to)}
	if faulty[edge] {
		return Violation{}, true
	}
	bad := func(reason string) (Violation, bool) {
		faulty[edge] = true
		return Violation{From: from, To: to, Reason: reason}, false
	}

	if v.opts.Blacklist.Has(graph.Edge{From: from, To: to}) {
		return bad(ReasonBlacklisted)
	}

	neighbors, err := v.links.Outgoing(ctx, from, links.All)
	if err != nil {
		return fail(fmt.Errorf("links of %q: %w", from, err))
	}
	if ctx.Err() != nil {
		return fail(ctx.Err())
	}
	for _, nb := range neighbors {
		if titles.Equal(nb, to) {
			return Violation{}, true
		}
	}

	via, err := v.heuristic(ctx, from, to, neighbors)
	if err != nil {
		return fail(err)
	}
	if via != "" {
		v.opts.Logger.Debug("edge confirmed by heuristic", "from", from, "to", to, "via", via)
		return Violation{}, true
	}
	return bad(ReasonNoLink)
}

// heuristic applies the fallback checks in order and names the first that
// confirms from→to, or returns "".
func (v *Verifier) heuristic(ctx context.Context, from, to string, neighbors []string) (string, error) {
	if titles.IsDisambiguation(to) {
		return "disambiguation target", nil
	}

	resolved, err := v.resolveAll(ctx, neighbors)
	if err != nil {
		return "", err
	}
	lowerTo := strings.ToLower(to)
	for _, nb := range resolved {
		lower := strings.ToLower(nb)
		if lower == lowerTo || strings.Contains(lower, lowerTo) || strings.Contains(lowerTo, lower) {
			return "alias", nil
		}
	}

	if titles.HasQualifier(from) || titles.HasQualifier(to) {
		bare := strings.ToLower(titles.StripQualifiers(to))
		for _, nb := range resolved {
			if strings.ToLower(titles.StripQualifiers(nb)) == bare {
				return "qualifier", nil
			}
		}
	}

	if titles.IsDisambiguation(from) {
		return "disambiguation source", nil
	}
	return "", nil
}

// resolveAll returns the canonical forms of the existing neighbours.
func (v *Verifier) resolveAll(ctx context.Context, neighbors []string) ([]string, error) {
	if len(neighbors) == 0 {
		return nil, nil
	}
	res, err := v.resolver.ResolveBatch(ctx, neighbors)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res))
	for _, r := range res {
		if r.Exists && r.Canonical != "" {
			out = append(out, r.Canonical)
		}
	}
	return out, nil
}
