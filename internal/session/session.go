// Package session wires a configured wiki client into the resolver, link
// source, finder and verifier shared by the wikichain front ends.
package session

import (
	"context"
	"log/slog"

	"github.com/latebit/wikichain/internal/cache"
	"github.com/latebit/wikichain/internal/chain"
	"github.com/latebit/wikichain/internal/config"
	"github.com/latebit/wikichain/internal/events"
	"github.com/latebit/wikichain/internal/graph"
	"github.com/latebit/wikichain/internal/links"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/mediawiki"
	"github.com/latebit/wikichain/internal/titles"
	"github.com/latebit/wikichain/internal/verify"
)

// API is everything a session asks of the wiki.
type API interface {
	titles.API
	links.API
	RandomTitle(ctx context.Context) (string, error)
}

// Session holds one cache, one resolver and one link source. Every search,
// verification and lookup made through it shares the cache.
type Session struct {
	Config   *config.Config
	Logger   *slog.Logger
	API      API
	Resolver *titles.Resolver
	Links    *links.Source
	Finder   *chain.Finder

	closeFn func()
}

// NewClient builds the MediaWiki client described by cfg.
func NewClient(cfg *config.Config, logger *slog.Logger) *mediawiki.Client {
	return mediawiki.NewClient(mediawiki.Options{
		Endpoint:          cfg.Endpoint,
		UserAgent:         cfg.UserAgent,
		RequestTimeout:    cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		HTTP3:             cfg.HTTP3,
		Insecure:          cfg.Insecure,
		Logger:            logger,
	})
}

// Open creates a session talking to the wiki at cfg.Endpoint.
func Open(cfg *config.Config, logger *slog.Logger) *Session {
	client := NewClient(cfg, logger)
	s := New(cfg, client, logger)
	s.closeFn = client.Close
	return s
}

// New creates a session over api. It does not take ownership of api.
func New(cfg *config.Config, api API, logger *slog.Logger) *Session {
	logger = logging.OrDiscard(logger)
	resolver := titles.NewResolver(api, cache.New(), titles.Options{
		MaxBatch: cfg.BatchSize,
		Logger:   logger,
	})
	src := links.NewSource(api, links.Options{PageDelay: cfg.PageDelay, Logger: logger})
	return &Session{
		Config:   cfg,
		Logger:   logger,
		API:      api,
		Resolver: resolver,
		Links:    src,
		Finder:   chain.NewFinder(resolver, src, logger),
	}
}

// Close releases the underlying client, if the session owns one.
func (s *Session) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Filter returns the configured link filter.
func (s *Session) Filter() links.Filter {
	return links.Filter{
		IncludeInfobox: s.Config.IncludeInfobox,
		IncludeNavbox:  s.Config.IncludeNavbox,
	}
}

// Observer fans events out to the log, the metrics and any extra observers.
func (s *Session) Observer(extra ...events.Observer) events.Observer {
	all := append([]events.Observer{events.LogObserver(s.Logger), events.MetricsObserver()}, extra...)
	return events.Multi(all...)
}

// ChainConfig returns the finder settings taken from the configuration.
func (s *Session) ChainConfig(obs events.Observer) chain.Config {
	return chain.Config{
		MaxDepth:   s.Config.MaxDepth,
		MaxNodes:   s.Config.MaxNodes,
		BatchSize:  s.Config.BatchSize,
		Filter:     s.Filter(),
		MaxRetries: s.Config.MaxRetries,
		Observer:   obs,
	}
}

// FindChain runs the finder with the configured budgets.
func (s *Session) FindChain(ctx context.Context, source, target string, obs events.Observer) (*chain.Outcome, error) {
	return s.Finder.FindChain(ctx, source, target, s.ChainConfig(obs))
}

// Verifier returns a verifier sharing the session cache. bl may be nil.
func (s *Session) Verifier(bl *graph.Blacklist, obs events.Observer) *verify.Verifier {
	return verify.New(s.Resolver, s.Links, verify.Options{
		Blacklist: bl,
		Observer:  obs,
		Logger:    s.Logger,
	})
}

// Endpoint returns the API endpoint used for article URLs.
func (s *Session) Endpoint() string {
	return s.Config.Endpoint
}
