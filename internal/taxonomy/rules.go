package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CategoryRule assigns Name when any keyword is a substring of the
// normalized text.
type CategoryRule struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// PhraseRule emits Tag when Pattern matches the normalized text.
type PhraseRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Tag     string `yaml:"tag" json:"tag"`
}

// Rules is the data driving inference. Order of Categories and Phrases is
// significant: it is the output order.
type Rules struct {
	Categories      []CategoryRule `yaml:"categories" json:"categories"`
	Phrases         []PhraseRule   `yaml:"phrases" json:"phrases"`
	StopWords       []string       `yaml:"stop_words" json:"stop_words"`
	DefaultCategory string         `yaml:"default_category" json:"default_category"`
	DefaultTag      string         `yaml:"default_tag" json:"default_tag"`
	MaxCategories   int            `yaml:"max_categories" json:"max_categories"`
	MaxTags         int            `yaml:"max_tags" json:"max_tags"`
}

const (
	defaultCategory      = "Magazin"
	defaultTag           = "Restaurant"
	defaultMaxCategories = 3
	defaultMaxTags       = 8
)

// DefaultRules returns the built-in tables for the restaurant magazine.
func DefaultRules() Rules {
	return Rules{
		Categories: []CategoryRule{
			{Name: "Events", Keywords: []string{"live", "musik", "konzert", "event", "veranstaltung", "party", "feier", "festival", "lesung"}},
			{Name: "Kulinarik", Keywords: []string{"rezept", "gericht", "speisekarte", "menu", "kuche", "koch", "saison", "spezialitat", "fisch", "fleisch", "vegetar", "vegan", "dessert"}},
			{Name: "Getränke", Keywords: []string{"wein", "cocktail", "bier", "aperitif", "getrank", "sommelier", "spirituose", "kaffee"}},
			{Name: "Region", Keywords: []string{"regional", "region", "lokal", "erzeuger", "bauernhof", "wochenmarkt", "heimat", "bodensee"}},
			{Name: "Hinter den Kulissen", Keywords: []string{"mitarbeiter", "ausbildung", "gastgeber", "portrat", "interview", "kuchenchef", "jubilaum"}},
			{Name: "Feste & Feiertage", Keywords: []string{"weihnacht", "ostern", "silvester", "valentinstag", "muttertag", "advent", "pfingsten"}},
		},
		Phrases: []PhraseRule{
			{Pattern: `\blive[\s-]?musik\b`, Tag: "Live-Musik"},
			{Pattern: `\bboden[\s-]?see\b`, Tag: "Bodensee"},
			{Pattern: `\bregional\w*\s+kuche\b`, Tag: "Regionale Küche"},
			{Pattern: `\bmediterran\w*`, Tag: "Mediterran"},
			{Pattern: `\b(?:sonntags?[\s-]?)?brunch\b`, Tag: "Brunch"},
			{Pattern: `\bweihnacht\w*`, Tag: "Weihnachten"},
		},
		StopWords: []string{
			// German function words
			"aber", "alle", "als", "auch", "auf", "aus", "bei", "bis", "das", "dass", "dem", "den", "der", "des",
			"die", "dies", "diese", "diesem", "diesen", "dieser", "ein", "eine", "einem", "einen", "einer", "eines",
			"euch", "fur", "gibt", "hat", "haben", "ihr", "ihre", "ist", "jetzt", "kann", "mehr", "mit", "nach",
			"nicht", "noch", "nur", "oder", "sich", "sie", "sind", "uber", "und", "uns", "unser", "unsere",
			"unserem", "unseren", "unserer", "vom", "von", "vor", "war", "was", "wie", "wir", "wird", "zum", "zur",
			"ganz", "sehr", "schon", "immer", "wieder", "heute", "morgen", "beim", "durch", "ohne", "gegen",
			// English leftovers in bilingual posts
			"and", "the", "for", "with", "our", "you", "your",
			// brand words
			"seeblick", "restaurant",
		},
		DefaultCategory: defaultCategory,
		DefaultTag:      defaultTag,
		MaxCategories:   defaultMaxCategories,
		MaxTags:         defaultMaxTags,
	}
}

// LoadRules reads a YAML rule file. Keys missing from the file keep the
// value from DefaultRules.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read taxonomy rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse taxonomy rules %s: %w", path, err)
	}
	return rules, nil
}
