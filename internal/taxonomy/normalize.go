package taxonomy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLength is the shortest token kept for tag ranking
const minTokenLength = 3

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	slugSplit    = regexp.MustCompile(`[^a-z0-9]+`)

	// ß has no canonical decomposition, so it is spelled out before folding.
	germanFold = strings.NewReplacer("ß", "ss", "ẞ", "ss")
)

// foldDiacritics decomposes s (NFD) and drops all combining marks.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Normalize lowercases s, strips diacritics, replaces everything outside
// [a-z0-9\s-] with a space and collapses whitespace.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = germanFold.Replace(strings.ToLower(s))
	s = foldDiacritics(s)
	s = invalidChars.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Slugify turns a display name into its URL-safe identity key.
// "Live-Musik & Wein" -> "live-musik-wein", "Küche" -> "kuche".
func Slugify(name string) string {
	s := slugSplit.ReplaceAllString(Normalize(name), "-")
	return strings.Trim(s, "-")
}

// NormalizeLabels trims the given label names, drops empty ones and removes
// duplicates by slug. The first spelling of each slug wins.
func NormalizeLabels(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, name)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// tokenize splits already normalized text and filters short, numeric and
// stop-word tokens.
func tokenize(normalized string, stop map[string]struct{}) []string {
	if normalized == "" {
		return nil
	}
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength || isNumeric(f) {
			continue
		}
		if _, ok := stop[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
