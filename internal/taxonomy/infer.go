// Package taxonomy derives categories and tags for articles whose editor left
// them empty. It is a keyword heuristic: deterministic, allocation-light and
// safe for concurrent use.
package taxonomy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Field weights for token ranking.
const (
	titleWeight   = 3
	excerptWeight = 2
	bodyWeight    = 1
)

// Result holds inferred label names. Both lists are non-empty.
type Result struct {
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

type compiledPhrase struct {
	re  *regexp.Regexp
	tag string
}

type compiledCategory struct {
	name     string
	keywords []string
}

// Inferrer applies a compiled Rules set. It holds no mutable state.
type Inferrer struct {
	categories      []compiledCategory
	phrases         []compiledPhrase
	stop            map[string]struct{}
	defaultCategory string
	defaultTag      string
	maxCategories   int
	maxTags         int
}

// New compiles rules. Keywords and stop words are normalized the same way
// as input text so rule files may use umlauts and capitals.
func New(rules Rules) (*Inferrer, error) {
	in := &Inferrer{
		stop:            make(map[string]struct{}, len(rules.StopWords)),
		defaultCategory: strings.TrimSpace(rules.DefaultCategory),
		defaultTag:      strings.TrimSpace(rules.DefaultTag),
		maxCategories:   rules.MaxCategories,
		maxTags:         rules.MaxTags,
	}
	if in.defaultCategory == "" {
		in.defaultCategory = defaultCategory
	}
	if in.defaultTag == "" {
		in.defaultTag = defaultTag
	}
	if in.maxCategories <= 0 {
		in.maxCategories = defaultMaxCategories
	}
	if in.maxTags <= 0 {
		in.maxTags = defaultMaxTags
	}

	for _, w := range rules.StopWords {
		if n := Normalize(w); n != "" {
			in.stop[n] = struct{}{}
		}
	}

	for _, rule := range rules.Categories {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, fmt.Errorf("category rule without name")
		}
		c := compiledCategory{name: name}
		for _, kw := range rule.Keywords {
			if n := Normalize(kw); n != "" {
				c.keywords = append(c.keywords, n)
			}
		}
		in.categories = append(in.categories, c)
	}

	for _, rule := range rules.Phrases {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid phrase pattern %q: %w", rule.Pattern, err)
		}
		tag := strings.TrimSpace(rule.Tag)
		if tag == "" {
			return nil, fmt.Errorf("phrase pattern %q has no tag", rule.Pattern)
		}
		in.phrases = append(in.phrases, compiledPhrase{re: re, tag: tag})
	}

	return in, nil
}

// Infer derives category and tag names from the three text fields.
// Empty input yields the default category and tag.
func (in *Inferrer) Infer(title, excerpt, body string) Result {
	nTitle := Normalize(title)
	nExcerpt := Normalize(excerpt)
	nBody := Normalize(body)
	merged := strings.Join(nonEmpty(nTitle, nExcerpt, nBody), " ")

	return Result{
		Categories: in.inferCategories(merged),
		Tags:       in.inferTags(merged, nTitle, nExcerpt, nBody),
	}
}

// Tokenize normalizes text and returns the tokens that count towards tag
// ranking.
func (in *Inferrer) Tokenize(text string) []string {
	return tokenize(Normalize(text), in.stop)
}

func (in *Inferrer) inferCategories(merged string) []string {
	var names []string
	for _, c := range in.categories {
		if len(names) == in.maxCategories {
			break
		}
		for _, kw := range c.keywords {
			if strings.Contains(merged, kw) {
				names = append(names, c.name)
				break
			}
		}
	}
	if len(names) == 0 {
		return []string{in.defaultCategory}
	}
	return names
}

func (in *Inferrer) inferTags(merged, title, excerpt, body string) []string {
	var candidates []string
	if merged != "" {
		for _, p := range in.phrases {
			if p.re.MatchString(merged) {
				candidates = append(candidates, p.tag)
			}
		}
	}
	candidates = append(candidates, in.rankTokens(title, excerpt, body)...)

	tags := make([]string, 0, in.maxTags)
	seen := make(map[string]bool, len(candidates))
	for _, tag := range candidates {
		if len(tags) == in.maxTags {
			break
		}
		key := Slugify(tag)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return []string{in.defaultTag}
	}
	return tags
}

// rankTokens orders distinct tokens by summed field weight, highest first,
// ties broken lexicographically.
func (in *Inferrer) rankTokens(title, excerpt, body string) []string {
	weights := make(map[string]int)
	fields := []struct {
		text   string
		weight int
	}{
		{title, titleWeight},
		{excerpt, excerptWeight},
		{body, bodyWeight},
	}
	for _, f := range fields {
		for _, tok := range tokenize(f.text, in.stop) {
			weights[tok] += f.weight
		}
	}

	ranked := make([]string, 0, len(weights))
	for tok := range weights {
		ranked = append(ranked, tok)
	}
	sort.Slice(ranked, func(i, j int) bool {
		wi, wj := weights[ranked[i]], weights[ranked[j]]
		if wi != wj {
			return wi > wj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var defaultInferrer = mustNew(DefaultRules())

func mustNew(rules Rules) *Inferrer {
	in, err := New(rules)
	if err != nil {
		panic(err)
	}
	return in
}

// Infer runs the built-in rules.
func Infer(title, excerpt, body string) Result {
	return defaultInferrer.Infer(title, excerpt, body)
}

// Default returns the inferrer for the built-in rules.
func Default() *Inferrer {
	return defaultInferrer
}
