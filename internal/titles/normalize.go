package titles

import (
	"net/url"
	"regexp"
	"strings"
)

// DisambiguationSuffix marks pages that list several candidate articles.
const DisambiguationSuffix = "(disambiguation)"

var parenthetical = regexp.MustCompile(`\s*\([^()]*\)`)

// Normalize turns user input into a title. It accepts bare titles as well
// as article URLs such as https://en.wikipedia.org/wiki/Albert_Einstein.
// Underscores become spaces. An empty result means the input held no title.
func Normalize(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if u, err := url.Parse(input); err == nil && u.Scheme != "" && strings.HasSuffix(u.Hostname(), "wikipedia.org") {
		if rest, ok := strings.CutPrefix(u.EscapedPath(), "/wiki/"); ok {
			if decoded, err := url.PathUnescape(rest); err == nil {
				input = decoded
			} else {
				input = rest
			}
		} else if t := u.Query().Get("title"); t != "" {
			input = t
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(input, "_", " "))
}

// Equal reports whether a and b denote the same node: canonical titles are
// compared case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsDisambiguation reports whether title carries the disambiguation marker.
func IsDisambiguation(title string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(title)), DisambiguationSuffix)
}

// HasQualifier reports whether title contains a parenthetical qualifier.
func HasQualifier(title string) bool {
	return parenthetical.MatchString(title)
}

// StripQualifiers removes every parenthetical qualifier from title.
func StripQualifiers(title string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(title, ""))
}
