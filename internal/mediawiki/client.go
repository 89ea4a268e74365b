// Package mediawiki is a small client for the MediaWiki action API covering
// the title, link, backlink and wikitext queries wikichain needs.
package mediawiki

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/metrics"
	"github.com/latebit/wikichain/internal/ratelimit"
	"github.com/quic-go/quic-go/http3"
)

// DefaultEndpoint is the English Wikipedia action API.
const DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

// PageLimit is the per-request limit used for link and backlink listings.
const PageLimit = "max"

// Options configures client behavior.
type Options struct {
	Endpoint          string
	UserAgent         string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	HTTP3             bool
	Insecure          bool

	// HTTPClient overrides the transport entirely. HTTP3 and Insecure are
	// ignored when it is set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Endpoint == "" {
		o.Endpoint = DefaultEndpoint
	}
	if o.UserAgent == "" {
		o.UserAgent = "wikichain/0.1"
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 15 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	o.Logger = logging.OrDiscard(o.Logger)
}

// Client performs MediaWiki API requests.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *ratelimit.Limiter
	host    string
	closeFn func() error
}

// NewClient creates a new client with the given options.
func NewClient(opts Options) *Client {
	opts.applyDefaults()
	c := &Client{
		opts:    opts,
		limiter: ratelimit.New(opts.RequestsPerSecond, opts.Burst),
		host:    ratelimit.HostOf(opts.Endpoint),
	}

	switch {
	case opts.HTTPClient != nil:
		c.http = opts.HTTPClient
	case opts.HTTP3:
		tr := &http3.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure}, //nolint:gosec // opt-in flag
		}
		c.http = &http.Client{Transport: tr}
		c.closeFn = tr.Close
	default:
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Insecure {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in flag
		}
		c.http = &http.Client{Transport: tr}
		c.closeFn = func() error {
			tr.CloseIdleConnections()
			return nil
		}
	}
	return c
}

// Close releases pooled connections.
func (c *Client) Close() {
	if c.closeFn != nil {
		_ = c.closeFn()
	}
}

// APIError is an error reported by the API in the response body.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	StatusCode int
	Action     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Action, e.StatusCode)
}

// envelope is decoded from every response; the caller's target receives the
// same body.
type envelope struct {
	Error    *APIError         `json:"error"`
	Continue map[string]string `json:"continue"`
}

// get performs a GET for params, decoding the JSON body into out. It returns
// the continuation parameters reported by the response.
func (c *Client) get(ctx context.Context, params url.Values, out any) (map[string]string, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	action := params.Get("action")
	if list := params.Get("list"); list != "" {
		action += "." + list
	} else if prop := params.Get("prop"); prop != "" {
		action += "." + prop
	}

	var cont map[string]string
	err := c.doWithRetry(ctx, action, func() error {
		body, err := c.roundTrip(ctx, action, params)
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}
		if env.Error != nil {
			return env.Error
		}
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode %s response: %w", action, err)
			}
		}
		cont = env.Continue
		return nil
	})
	return cont, err
}

func (c *Client) roundTrip(ctx context.Context, action string, params url.Values) (body []byte, err error) {
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveAPI(action, start, err) }()

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Action: action}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// doWithRetry retries transient failures with exponential backoff + jitter.
func (c *Client) doWithRetry(ctx context.Context, action string, fn func() error) error {
	const baseBackoff = 200 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransientError(err) || attempt == c.opts.MaxRetries-1 {
			break
		}

		backoff := baseBackoff * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
		c.opts.Logger.Debug("retrying api request", "action", action, "attempt", attempt+1, "err", err)
		if err := sleep(ctx, backoff+jitter); err != nil {
			break
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code == "maxlag" || ae.Code == "ratelimited" || ae.Code == "readonly"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return true
	case strings.Contains(errStr, "connection reset"):
		return true
	case strings.HasSuffix(errStr, "EOF"):
		return true
	}
	return false
}
