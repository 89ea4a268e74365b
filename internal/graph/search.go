package graph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/latebit/wikichain/internal/errors"
	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/links"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/titles"
)

// Resolver canonicalizes neighbour titles in batches.
type Resolver interface {
	ResolveBatch(ctx context.Context, names []string) ([]titles.Resolution, error)
}

// LinkSource fetches neighbours in either direction.
type LinkSource interface {
	Outgoing(ctx context.Context, title string, f links.Filter) ([]string, error)
	Incoming(ctx context.Context, title string) ([]string, error)
}

// Options configures one search.
type Options struct {
	MaxDepth  int // nodes at this depth are not expanded; negative means default
	MaxNodes  int // expansion budget across both directions (default: 2000)
	BatchSize int // forward neighbours canonicalized per request (default: 50)
	Filter    links.Filter
	Blacklist *Blacklist
	Observer  events.Observer
}

// DefaultOptions returns the budgets used when nothing else is configured.
func DefaultOptions() Options {
	return Options{MaxDepth: 6, MaxNodes: 2000, BatchSize: 50, Filter: links.All}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.MaxDepth < 0 {
		o.MaxDepth = def.MaxDepth
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = def.MaxNodes
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
}

// Result is the outcome of one search. Path is nil when no chain was found.
type Result struct {
	Path     []string
	Length   int // edges in Path
	Meeting  string
	Expanded int
	Visited  int
}

// Found reports whether the search produced a path.
func (r *Result) Found() bool {
	return r != nil && r.Path != nil
}

// Engine runs bidirectional searches.
type Engine struct {
	resolver Resolver
	links    LinkSource
	logger   *slog.Logger
}

// NewEngine creates a search engine.
func NewEngine(resolver Resolver, src LinkSource, logger *slog.Logger) *Engine {
	return &Engine{resolver: resolver, links: src, logger: logging.OrDiscard(logger)}
}

// frontier is one side of the search. Maps are keyed by Key(title).
type frontier struct {
	dir   events.Direction
	queue []string
	depth map[string]int
	prev  map[string]string
	title map[string]string
	order []string
}

func newFrontier(dir events.Direction, root string) *frontier {
	f := &frontier{
		dir:   dir,
		depth: make(map[string]int),
		prev:  make(map[string]string),
		title: make(map[string]string),
	}
	k := Key(root)
	f.depth[k] = 0
	f.title[k] = root
	f.order = append(f.order, k)
	f.queue = append(f.queue, root)
	return f
}

func (f *frontier) visited(k string) bool {
	_, ok := f.depth[k]
	return ok
}

func (f *frontier) pop() string {
	t := f.queue[0]
	f.queue = f.queue[1:]
	return t
}

func (f *frontier) push(title, from string, depth int) {
	k := Key(title)
	f.depth[k] = depth
	f.prev[k] = Key(from)
	f.title[k] = title
	f.order = append(f.order, k)
	f.queue = append(f.queue, title)
}

// search is the state of one Search call.
type search struct {
	*Engine
	opts     Options
	fw, bw   *frontier
	meeting  string
	expanded int
}

// Search looks for a chain of links from source to target. Both should be
// canonical titles. Budget exhaustion and cancellation are not errors: they
// yield a Result without a Path. An error is returned only when a found
// meeting node cannot be walked back to both endpoints.
func (e *Engine) Search(ctx context.Context, source, target string, opts Options) (*Result, error) {
	opts.applyDefaults()

	if Key(source) == Key(target) {
		return &Result{Path: []string{source}, Meeting: source, Visited: 1}, nil
	}

	s := &search{
		Engine: e,
		opts:   opts,
		fw:     newFrontier(events.Forward, source),
		bw:     newFrontier(events.Backward, target),
	}
	s.run(ctx)

	res := &Result{Expanded: s.expanded, Visited: len(s.fw.order) + len(s.bw.order)}
	if s.meeting == "" {
		s.meeting = s.intersection()
		if s.meeting == "" {
			return res, nil
		}
		opts.Observer.Emit(events.Event{Kind: events.MeetingFound, Title: s.fw.title[s.meeting], Expanded: s.expanded, Visited: res.Visited})
	}

	path, err := s.reconstruct(source, target)
	if err != nil {
		return res, err
	}
	res.Path = path
	res.Length = len(path) - 1
	res.Meeting = s.fw.title[s.meeting]
	return res, nil
}

func (s *search) run(ctx context.Context) {
	for len(s.fw.queue) > 0 || len(s.bw.queue) > 0 {
		if ctx.Err() != nil {
			return
		}
		cur, other := s.fw, s.bw
		switch {
		case len(s.fw.queue) == 0:
			cur, other = s.bw, s.fw
		case len(s.bw.queue) == 0:
		case len(s.bw.queue) < len(s.fw.queue):
			cur, other = s.bw, s.fw
		}

		node := cur.pop()
		depth := cur.depth[Key(node)]
		if depth >= s.opts.MaxDepth {
			continue
		}

		neighbors, err := s.neighbors(ctx, cur.dir, node)
		s.expanded++
		if err != nil {
			s.opts.Observer.Emit(events.Event{Kind: events.FetchFailed, Direction: cur.dir, Title: node, Err: err})
			s.logger.Debug("neighbor fetch failed", "direction", cur.dir, "title", node, "err", err)
			neighbors = nil
		}

		if cur.dir == events.Forward {
			s.admitForward(ctx, node, depth, neighbors)
		} else {
			s.admit(ctx, cur, other, node, depth, neighbors)
		}

		s.opts.Observer.Emit(events.Event{
			Kind:          events.NodeExpanded,
			Direction:     cur.dir,
			Title:         node,
			Depth:         depth,
			Neighbors:     len(neighbors),
			Expanded:      s.expanded,
			Visited:       len(s.fw.order) + len(s.bw.order),
			ForwardQueue:  len(s.fw.queue),
			BackwardQueue: len(s.bw.queue),
		})

		if s.meeting != "" {
			s.opts.Observer.Emit(events.Event{
				Kind:     events.MeetingFound,
				Title:    s.fw.title[s.meeting],
				Expanded: s.expanded,
				Visited:  len(s.fw.order) + len(s.bw.order),
			})
			return
		}
		if s.expanded >= s.opts.MaxNodes {
			s.logger.Debug("node budget exhausted", "expanded", s.expanded)
			return
		}
	}
}

func (s *search) neighbors(ctx context.Context, dir events.Direction, title string) ([]string, error) {
	if dir == events.Forward {
		return s.links.Outgoing(ctx, title, s.opts.Filter)
	}
	return s.links.Incoming(ctx, title)
}

// admitForward canonicalizes neighbours chunk by chunk and admits the ones
// that exist. No chunk is requested after a meeting node is found.
func (s *search) admitForward(ctx context.Context, node string, depth int, neighbors []string) {
	for start := 0; start < len(neighbors) && s.meeting == ""; start += s.opts.BatchSize {
		if ctx.Err() != nil {
			return
		}
		chunk := neighbors[start:min(start+s.opts.BatchSize, len(neighbors))]
		resolved, err := s.resolver.ResolveBatch(ctx, chunk)
		if err != nil {
			return
		}
		canonical := make([]string, 0, len(resolved))
		for _, r := range resolved {
			if r.Exists {
				canonical = append(canonical, r.Canonical)
			}
		}
		s.admit(ctx, s.fw, s.bw, node, depth, canonical)
	}
}

// admit enqueues unvisited, non-blacklisted neighbours of node on cur and
// stops at the first one already visited by other.
func (s *search) admit(ctx context.Context, cur, other *frontier, node string, depth int, neighbors []string) {
	for _, nb := range neighbors {
		if ctx.Err() != nil {
			return
		}
		k := Key(nb)
		if cur.visited(k) {
			continue
		}
		edge := Edge{From: node, To: nb}
		if cur.dir == events.Backward {
			edge = Edge{From: nb, To: node}
		}
		if s.opts.Blacklist.Has(edge) {
			continue
		}
		cur.push(nb, node, depth+1)
		if other.visited(k) {
			s.meeting = k
			return
		}
	}
}

// intersection returns the first forward-visited node, in admission order,
// that the backward side also visited.
func (s *search) intersection() string {
	for _, k := range s.fw.order {
		if s.bw.visited(k) {
			return k
		}
	}
	return ""
}

// reconstruct joins the forward walk source→meeting with the backward walk
// meeting→target.
func (s *search) reconstruct(source, target string) ([]string, error) {
	limit := len(s.fw.order) + len(s.bw.order)

	var path []string
	k := s.meeting
	for steps := 0; ; steps++ {
		if steps > limit {
			return nil, s.brokenPath("forward predecessors form a cycle")
		}
		t, ok := s.fw.title[k]
		if !ok {
			return nil, s.brokenPath(fmt.Sprintf("forward predecessor %q was never visited", k))
		}
		path = append(path, t)
		p, ok := s.fw.prev[k]
		if !ok {
			break
		}
		k = p
	}
	if k != Key(source) {
		return nil, s.brokenPath("forward walk does not reach the source")
	}
	slices.Reverse(path)

	k = s.meeting
	for steps := 0; k != Key(target); steps++ {
		if steps > limit {
			return nil, s.brokenPath("backward predecessors form a cycle")
		}
		p, ok := s.bw.prev[k]
		if !ok {
			return nil, s.brokenPath("backward walk does not reach the target")
		}
		t, ok := s.bw.title[p]
		if !ok {
			return nil, s.brokenPath(fmt.Sprintf("backward predecessor %q was never visited", p))
		}
		path = append(path, t)
		k = p
	}
	return path, nil
}

func (s *search) brokenPath(msg string) error {
	return errors.New(errors.CodeInternal, "path reconstruction failed: "+msg).
		With("meeting", s.meeting)
}
