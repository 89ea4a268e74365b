package links

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|[^\[\]]*)?\]\]`)

var skippedPrefixes = []string{"file:", "image:", "category:"}

// ExtractLinks returns the targets of the [[Target]] and [[Target|label]]
// references in text, in first-seen order without duplicates. File, image
// and category references are skipped, section anchors are dropped and
// underscores become spaces.
func ExtractLinks(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range linkPattern.FindAllStringSubmatch(text, -1) {
		target := strings.TrimSpace(m[1])
		if skipTarget(target) {
			continue
		}
		if i := strings.IndexByte(target, '#'); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(strings.ReplaceAll(target, "_", " "))
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

func skipTarget(target string) bool {
	lower := strings.ToLower(strings.TrimPrefix(target, ":"))
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// StripTemplates removes every {{Name...}} block whose name starts with one
// of names (case-insensitive), including templates nested inside it.
// Braces are counted so a nested {{...}} does not end the block early. An
// unterminated block is left in place.
func StripTemplates(text string, names ...string) string {
	if len(names) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], "{{") && opensTemplate(text[i+2:], names) {
			if end := closingBraces(text, i); end > 0 {
				i = end
				continue
			}
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

func opensTemplate(rest string, names []string) bool {
	rest = strings.ToLower(strings.TrimLeft(rest, " \t\n"))
	for _, n := range names {
		if strings.HasPrefix(rest, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// closingBraces returns the index just past the "}}" that balances the
// "{{" at start, or -1 if there is none.
func closingBraces(text string, start int) int {
	depth := 0
	for i := start; i < len(text)-1; {
		switch {
		case text[i] == '{' && text[i+1] == '{':
			depth++
			i += 2
		case text[i] == '}' && text[i+1] == '}':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}
