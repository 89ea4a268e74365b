// Package wikitest provides an in-memory wiki that answers the same calls as
// the MediaWiki client, for tests of the search, verification and chain
// packages.
package wikitest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/latebit/wikichain/internal/mediawiki"
)

type page struct {
	links    []string
	redirect string
	wikitext string
}

// Wiki is a fake link graph. It is safe for concurrent use.
type Wiki struct {
	// PageSize bounds how many titles a link or backlink page returns.
	PageSize int

	mu    sync.Mutex
	pages map[string]*page
	fail  map[string]error
	calls map[string]int
}

// New creates an empty wiki with a page size of 2, so pagination is exercised.
func New() *Wiki {
	return &Wiki{
		PageSize: 2,
		pages:    make(map[string]*page),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Normalize mimics MediaWiki title normalization: underscores become spaces
// and the first letter is upper-cased.
func Normalize(title string) string {
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	r, size := utf8.DecodeRuneInString(title)
	if r == utf8.RuneError {
		return title
	}
	return string(unicode.ToUpper(r)) + title[size:]
}

// Page adds an article linking to links, in order.
func (w *Wiki) Page(title string, links ...string) *Wiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[Normalize(title)] = &page{links: links}
	return w
}

// Redirect adds a redirect page from → to.
func (w *Wiki) Redirect(from, to string) *Wiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[Normalize(from)] = &page{redirect: Normalize(to), links: []string{to}}
	return w
}

// SetWikitext overrides the raw markup returned for title.
func (w *Wiki) SetWikitext(title, text string) *Wiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pages[Normalize(title)]
	if !ok {
		p = &page{}
		w.pages[Normalize(title)] = p
	}
	p.wikitext = text
	return w
}

// Fail makes every call concerning title return err.
func (w *Wiki) Fail(title string, err error) *Wiki {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail[Normalize(title)] = err
	return w
}

// Calls returns how many times method was invoked. With a title it counts
// only calls about that title.
func (w *Wiki) Calls(method string, title ...string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(title) > 0 {
		return w.calls[method+":"+Normalize(title[0])]
	}
	return w.calls[method]
}

func (w *Wiki) record(method, title string) error {
	w.calls[method]++
	w.calls[method+":"+Normalize(title)]++
	return w.fail[Normalize(title)]
}

// QueryTitles implements the title resolution call.
func (w *Wiki) QueryTitles(ctx context.Context, titles []string) (*mediawiki.TitleQuery, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["QueryTitles"]++
	if len(titles) > mediawiki.MaxTitlesPerQuery {
		return nil, fmt.Errorf("too many titles: %d", len(titles))
	}

	q := &mediawiki.TitleQuery{}
	seen := make(map[string]bool)
	for _, t := range titles {
		w.calls["QueryTitles:"+Normalize(t)]++
		if err := w.fail[Normalize(t)]; err != nil {
			return nil, err
		}
		cur := Normalize(t)
		if cur != t {
			q.Normalized = append(q.Normalized, mediawiki.Mapping{From: t, To: cur})
		}
		if p, ok := w.pages[cur]; ok && p.redirect != "" {
			q.Redirects = append(q.Redirects, mediawiki.Mapping{From: cur, To: p.redirect})
			cur = p.redirect
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if _, ok := w.pages[cur]; ok {
			q.Pages = append(q.Pages, mediawiki.PageInfo{Title: cur})
		} else {
			q.Pages = append(q.Pages, mediawiki.PageInfo{Title: cur, Missing: true})
		}
	}
	return q, nil
}

func (w *Wiki) paginate(all []string, cont mediawiki.Continue, key string) (*mediawiki.LinkPage, error) {
	start := 0
	if v, ok := cont[key]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("bad continuation %q", v)
		}
		start = n
	}
	size := w.PageSize
	if size <= 0 {
		size = len(all) + 1
	}
	end := min(start+size, len(all))
	page := &mediawiki.LinkPage{Titles: append([]string(nil), all[start:end]...)}
	if end < len(all) {
		page.Continue = mediawiki.Continue{key: strconv.Itoa(end), "continue": "||"}
	}
	return page, nil
}

// LinksPage implements the outgoing link listing.
func (w *Wiki) LinksPage(ctx context.Context, title string, cont mediawiki.Continue) (*mediawiki.LinkPage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("LinksPage", title); err != nil {
		return nil, err
	}
	p, ok := w.pages[Normalize(title)]
	if !ok {
		return &mediawiki.LinkPage{}, nil
	}
	return w.paginate(p.links, cont, "plcontinue")
}

// BacklinksPage implements the incoming link listing. Backlinks are sorted
// by title.
func (w *Wiki) BacklinksPage(ctx context.Context, title string, cont mediawiki.Continue) (*mediawiki.LinkPage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("BacklinksPage", title); err != nil {
		return nil, err
	}
	target := Normalize(title)
	var all []string
	for name, p := range w.pages {
		for _, l := range p.links {
			if Normalize(l) == target {
				all = append(all, name)
				break
			}
		}
	}
	sort.Strings(all)
	return w.paginate(all, cont, "blcontinue")
}

// Wikitext implements the raw markup call. Pages without explicit markup
// render their links as [[Link]] references.
func (w *Wiki) Wikitext(ctx context.Context, title string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.record("Wikitext", title); err != nil {
		return "", err
	}
	p, ok := w.pages[Normalize(title)]
	if !ok {
		return "", &mediawiki.APIError{Code: "missingtitle", Info: "The page you specified doesn't exist."}
	}
	if p.wikitext != "" {
		return p.wikitext, nil
	}
	var b strings.Builder
	for _, l := range p.links {
		fmt.Fprintf(&b, "[[%s]] ", l)
	}
	return b.String(), nil
}

// RandomTitle returns the alphabetically first article that is not a
// redirect, so tests stay deterministic.
func (w *Wiki) RandomTitle(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls["RandomTitle"]++
	var names []string
	for name, p := range w.pages {
		if p.redirect == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("random: empty wiki")
	}
	sort.Strings(names)
	return names[0], nil
}
