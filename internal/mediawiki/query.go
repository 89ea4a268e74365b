package mediawiki

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MaxTitlesPerQuery is the API's per-request limit on the titles parameter
// for unprivileged clients.
const MaxTitlesPerQuery = 50

// Mapping is a from→to pair reported in the normalized or redirects section.
type Mapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PageInfo describes one page of a title query.
type PageInfo struct {
	PageID   int    `json:"pageid"`
	NS       int    `json:"ns"`
	Title    string `json:"title"`
	Missing  bool   `json:"missing"`
	Invalid  bool   `json:"invalid"`
	Redirect bool   `json:"redirect"`
}

// TitleQuery is the resolved view of a titles= query with redirects followed.
type TitleQuery struct {
	Normalized []Mapping  `json:"normalized"`
	Redirects  []Mapping  `json:"redirects"`
	Pages      []PageInfo `json:"pages"`
}

// Resolve follows normalization and redirects for title and reports the
// final page title. known is false when the response does not mention title.
func (q *TitleQuery) Resolve(title string) (canonical string, exists, known bool) {
	cur := title
	for _, m := range q.Normalized {
		if m.From == cur {
			cur = m.To
			break
		}
	}
	// Redirect chains are resolved server-side; a second hop only appears
	// for double redirects, which are followed until they stop changing.
	for range len(q.Redirects) + 1 {
		next := ""
		for _, m := range q.Redirects {
			if m.From == cur {
				next = m.To
				break
			}
		}
		if next == "" || next == cur {
			break
		}
		cur = next
	}
	for _, p := range q.Pages {
		if p.Title == cur {
			if p.Missing || p.Invalid {
				return "", false, true
			}
			return p.Title, true, true
		}
	}
	return "", false, false
}

// RedirectTarget reports the redirect target of title (after normalization)
// if the response recorded one.
func (q *TitleQuery) RedirectTarget(title string) (string, bool) {
	cur := title
	for _, m := range q.Normalized {
		if m.From == cur {
			cur = m.To
			break
		}
	}
	for _, m := range q.Redirects {
		if m.From == cur {
			return m.To, true
		}
	}
	return "", false
}

// QueryTitles resolves up to MaxTitlesPerQuery titles in one request,
// following redirects server-side.
func (c *Client) QueryTitles(ctx context.Context, titles []string) (*TitleQuery, error) {
	if len(titles) == 0 {
		return &TitleQuery{}, nil
	}
	if len(titles) > MaxTitlesPerQuery {
		return nil, fmt.Errorf("query titles: %d titles exceeds limit of %d", len(titles), MaxTitlesPerQuery)
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", strings.Join(titles, "|"))
	params.Set("redirects", "1")

	var resp struct {
		Query TitleQuery `json:"query"`
	}
	if _, err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	return &resp.Query, nil
}

// Continue carries the opaque continuation parameters between pages.
// A nil or empty Continue means "first page" on input and "done" on output.
type Continue map[string]string

// LinkPage is one page of a link or backlink listing.
type LinkPage struct {
	Titles   []string
	Continue Continue
}

type linkEntry struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

// LinksPage returns one page of namespace-0 outgoing links of title.
func (c *Client) LinksPage(ctx context.Context, title string, cont Continue) (*LinkPage, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("titles", title)
	params.Set("prop", "links")
	params.Set("plnamespace", "0")
	params.Set("pllimit", PageLimit)
	for k, v := range cont {
		params.Set(k, v)
	}

	var resp struct {
		Query struct {
			Pages []struct {
				Title string      `json:"title"`
				Links []linkEntry `json:"links"`
			} `json:"pages"`
		} `json:"query"`
	}
	next, err := c.get(ctx, params, &resp)
	if err != nil {
		return nil, err
	}

	page := &LinkPage{Continue: next}
	for _, p := range resp.Query.Pages {
		for _, l := range p.Links {
			if l.NS == 0 && l.Title != "" {
				page.Titles = append(page.Titles, l.Title)
			}
		}
	}
	return page, nil
}

// BacklinksPage returns one page of namespace-0 pages linking to title.
func (c *Client) BacklinksPage(ctx context.Context, title string, cont Continue) (*LinkPage, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "backlinks")
	params.Set("bltitle", title)
	params.Set("blnamespace", "0")
	params.Set("bllimit", PageLimit)
	for k, v := range cont {
		params.Set(k, v)
	}

	var resp struct {
		Query struct {
			Backlinks []linkEntry `json:"backlinks"`
		} `json:"query"`
	}
	next, err := c.get(ctx, params, &resp)
	if err != nil {
		return nil, err
	}

	page := &LinkPage{Continue: next}
	for _, l := range resp.Query.Backlinks {
		if l.Title != "" {
			page.Titles = append(page.Titles, l.Title)
		}
	}
	return page, nil
}

// Wikitext returns the raw markup of title.
func (c *Client) Wikitext(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("prop", "wikitext")
	params.Set("redirects", "1")

	var resp struct {
		Parse struct {
			Title    string `json:"title"`
			Wikitext string `json:"wikitext"`
		} `json:"parse"`
	}
	if _, err := c.get(ctx, params, &resp); err != nil {
		return "", err
	}
	return resp.Parse.Wikitext, nil
}

// RandomTitle returns the title of a random article.
func (c *Client) RandomTitle(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "random")
	params.Set("rnnamespace", "0")
	params.Set("rnlimit", "1")

	var resp struct {
		Query struct {
			Random []struct {
				Title string `json:"title"`
			} `json:"random"`
		} `json:"query"`
	}
	if _, err := c.get(ctx, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.Random) == 0 {
		return "", fmt.Errorf("random: empty response")
	}
	return resp.Query.Random[0].Title, nil
}

// ArticleURL returns the browser URL of title on the wiki behind endpoint.
func ArticleURL(endpoint, title string) string {
	base := "https://en.wikipedia.org"
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		base = u.Scheme + "://" + u.Host
	}
	return base + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}
