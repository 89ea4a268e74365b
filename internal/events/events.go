// Package events carries one-way progress notifications from the search,
// verification and retry loops to whoever is watching.
package events

import (
	"log/slog"
	"sync"

	"github.com/latebit/wikichain/internal/metrics"
)

// Kind identifies an event.
type Kind int

const (
	// NodeExpanded is emitted after a node's neighbours were fetched.
	NodeExpanded Kind = iota
	// FetchFailed is emitted when a neighbour fetch failed and the node was
	// treated as having no neighbours.
	FetchFailed
	// MeetingFound is emitted when both frontiers reached the same node.
	MeetingFound
	// AttemptStarted is emitted before each search of the retry loop.
	AttemptStarted
	// VerificationFailed is emitted when a candidate chain has a bad edge.
	VerificationFailed
	// EdgeBlacklisted is emitted when an edge is excluded from later searches.
	EdgeBlacklisted
)

var kindNames = [...]string{
	NodeExpanded:       "node_expanded",
	FetchFailed:        "fetch_failed",
	MeetingFound:       "meeting_found",
	AttemptStarted:     "attempt_started",
	VerificationFailed: "verification_failed",
	EdgeBlacklisted:    "edge_blacklisted",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Direction is the side of the bidirectional search.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Event is a progress notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind      Kind
	Direction Direction
	Title     string
	Depth     int
	Neighbors int

	// Frontier statistics at the time of the event.
	Expanded      int
	Visited       int
	ForwardQueue  int
	BackwardQueue int

	From    string
	To      string
	Attempt int
	Reason  string
	Err     error
}

// Observer receives events. A nil Observer drops them.
type Observer func(Event)

// Emit delivers e to o if o is set.
func (o Observer) Emit(e Event) {
	if o != nil {
		o(e)
	}
}

// Multi fans events out to every non-nil observer, in order.
func Multi(observers ...Observer) Observer {
	var live []Observer
	for _, o := range observers {
		if o != nil {
			live = append(live, o)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(e Event) {
		for _, o := range live {
			o(e)
		}
	}
}

// Serialized wraps o so concurrent emitters never call it at the same time.
func Serialized(o Observer) Observer {
	if o == nil {
		return nil
	}
	var mu sync.Mutex
	return func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		o(e)
	}
}

// LogObserver writes events to l. Node expansions are logged at debug level,
// everything else at info, fetch failures at warn.
func LogObserver(l *slog.Logger) Observer {
	if l == nil {
		return nil
	}
	return func(e Event) {
		switch e.Kind {
		case NodeExpanded:
			l.Debug("node expanded", "direction", e.Direction, "title", e.Title, "depth", e.Depth,
				"neighbors", e.Neighbors, "expanded", e.Expanded, "visited", e.Visited)
		case FetchFailed:
			l.Warn("link fetch failed", "direction", e.Direction, "title", e.Title, "err", e.Err)
		case MeetingFound:
			l.Info("meeting node found", "title", e.Title, "expanded", e.Expanded, "visited", e.Visited)
		case AttemptStarted:
			l.Info("search attempt", "attempt", e.Attempt)
		case VerificationFailed:
			l.Info("verification failed", "from", e.From, "to", e.To, "reason", e.Reason)
		case EdgeBlacklisted:
			l.Info("edge blacklisted", "from", e.From, "to", e.To)
		}
	}
}

// MetricsObserver counts expansions and blacklisted edges.
func MetricsObserver() Observer {
	return func(e Event) {
		switch e.Kind {
		case NodeExpanded:
			metrics.NodesExpandedTotal.WithLabelValues(string(e.Direction)).Inc()
		case EdgeBlacklisted:
			metrics.EdgesBlacklistedTotal.Inc()
		}
	}
}
