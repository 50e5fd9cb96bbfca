package taxonomy

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \t\n ", ""},
		{"lowercase and umlauts", "Grüne Küche", "grune kuche"},
		{"eszett", "Straßenfest", "strassenfest"},
		{"punctuation becomes space", "Wein, Käse & Brot!", "wein kase brot"},
		{"hyphen kept", "Live-Musik", "live-musik"},
		{"accents", "Crème brûlée à la maison", "creme brulee a la maison"},
		{"collapse whitespace", "a   b\t\tc", "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Live-Musik":          "live-musik",
		"Feste & Feiertage":   "feste-feiertage",
		"  Getränke ":         "getranke",
		"Hinter den Kulissen": "hinter-den-kulissen",
		"--":                  "",
		"Regionale Küche":     "regionale-kuche",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeLabels(t *testing.T) {
	got := NormalizeLabels([]string{" Wein ", "", "wein", "Küche", "KUCHE", "   "})
	want := []string{"Wein", "Küche"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeLabels() = %v, want %v", got, want)
	}

	if got := NormalizeLabels(nil); got != nil {
		t.Errorf("NormalizeLabels(nil) = %v, want nil", got)
	}
}

func TestTokenize(t *testing.T) {
	got := Default().Tokenize("Der Koch und die 2024 Saison im Seeblick: ab heute Spargel")
	want := []string{"koch", "saison", "spargel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestInfer_Defaults(t *testing.T) {
	for _, in := range [][3]string{
		{"", "", ""},
		{"   ", "\n", "\t"},
		{"und der die", "", "12 345"},
	} {
		res := Infer(in[0], in[1], in[2])
		if !reflect.DeepEqual(res.Categories, []string{"Magazin"}) {
			t.Errorf("Infer(%q) categories = %v, want [Magazin]", in, res.Categories)
		}
		if !reflect.DeepEqual(res.Tags, []string{"Restaurant"}) {
			t.Errorf("Infer(%q) tags = %v, want [Restaurant]", in, res.Tags)
		}
	}
}

func TestInfer_Deterministic(t *testing.T) {
	title := "Spargelzeit am Bodensee"
	excerpt := "Regionale Küche trifft Wein von nebenan"
	body := "Unser Küchenchef kocht Spargel, Fisch und Kartoffeln. Dazu gibt es Live Musik und Wein."

	first := Infer(title, excerpt, body)
	for i := 0; i < 20; i++ {
		if got := Infer(title, excerpt, body); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestInfer_CategoryKeyword(t *testing.T) {
	res := Infer("Live-Musik heute Abend", "", "")
	if !contains(res.Categories, "Events") {
		t.Errorf("expected Events category, got %v", res.Categories)
	}
	if res.Tags[0] != "Live-Musik" {
		t.Errorf("expected phrase tag first, got %v", res.Tags)
	}
}

func TestInfer_CategoryOrderAndCap(t *testing.T) {
	// matches Events, Kulinarik, Getränke and Region; table order wins, capped at 3
	res := Infer("Konzert mit Menü und Wein", "", "regionale Erzeuger")
	want := []string{"Events", "Kulinarik", "Getränke"}
	if !reflect.DeepEqual(res.Categories, want) {
		t.Errorf("categories = %v, want %v", res.Categories, want)
	}
}

func TestInfer_TitleWeightBeatsBodyFrequency(t *testing.T) {
	res := Infer("Spargel", "", "Kartoffeln und Kartoffeln")
	if len(res.Tags) < 2 {
		t.Fatalf("expected two tags, got %v", res.Tags)
	}
	if res.Tags[0] != "spargel" || res.Tags[1] != "kartoffeln" {
		t.Errorf("tags = %v, want [spargel kartoffeln ...]", res.Tags)
	}
}

func TestInfer_TiesBrokenLexicographically(t *testing.T) {
	res := Infer("", "", "zander barsch forelle")
	want := []string{"barsch", "forelle", "zander"}
	if !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("tags = %v, want %v", res.Tags, want)
	}
}

func TestInfer_StopWordsExcluded(t *testing.T) {
	body := strings.Repeat("und der die das ", 50) + "Spargel"
	res := Infer("Und die Der", "der und die", body)
	for _, stop := range []string{"und", "der", "die", "das"} {
		if contains(res.Tags, stop) {
			t.Errorf("stop word %q in tags %v", stop, res.Tags)
		}
	}
	if !contains(res.Tags, "spargel") {
		t.Errorf("expected spargel in tags, got %v", res.Tags)
	}
}

func TestInfer_TagCapAndDedup(t *testing.T) {
	res := Infer(
		"Weihnachtsmenü mit Live Musik",
		"Brunch am Bodensee",
		"mediterrane Vorspeisen, regionale Küche, live-musik, Gans Rotkohl Klöße Maronen Glühwein Punsch",
	)
	if len(res.Tags) != 8 {
		t.Fatalf("expected 8 tags, got %d: %v", len(res.Tags), res.Tags)
	}
	wantPrefix := []string{"Live-Musik", "Bodensee", "Regionale Küche", "Mediterran", "Brunch", "Weihnachten"}
	if !reflect.DeepEqual(res.Tags[:len(wantPrefix)], wantPrefix) {
		t.Errorf("phrase tags = %v, want %v", res.Tags[:len(wantPrefix)], wantPrefix)
	}
	seen := map[string]bool{}
	for _, tag := range res.Tags {
		if seen[Slugify(tag)] {
			t.Errorf("duplicate tag %q in %v", tag, res.Tags)
		}
		seen[Slugify(tag)] = true
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	rules := DefaultRules()
	rules.Phrases = append(rules.Phrases, PhraseRule{Pattern: `(unclosed`, Tag: "X"})
	if _, err := New(rules); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestNew_NormalizesKeywords(t *testing.T) {
	in, err := New(Rules{
		Categories: []CategoryRule{{Name: "Süßes", Keywords: []string{"Törtchen"}}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res := in.Infer("Neue TÖRTCHEN im Café", "", "")
	if !reflect.DeepEqual(res.Categories, []string{"Süßes"}) {
		t.Errorf("categories = %v, want [Süßes]", res.Categories)
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("testdata/rules.yaml")
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if rules.DefaultCategory != "Journal" {
		t.Errorf("DefaultCategory = %q, want Journal", rules.DefaultCategory)
	}
	if len(rules.Categories) != 1 || rules.Categories[0].Name != "Frühstück" {
		t.Errorf("Categories = %+v", rules.Categories)
	}
	// phrases not present in the file keep their defaults
	if len(rules.Phrases) != len(DefaultRules().Phrases) {
		t.Errorf("Phrases = %d, want defaults", len(rules.Phrases))
	}

	in, err := New(rules)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res := in.Infer("Frühstück auf der Terrasse", "", "")
	if !reflect.DeepEqual(res.Categories, []string{"Frühstück"}) {
		t.Errorf("categories = %v", res.Categories)
	}
	if res2 := in.Infer("", "", ""); res2.Categories[0] != "Journal" {
		t.Errorf("default category = %v, want Journal", res2.Categories)
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules("testdata/does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
