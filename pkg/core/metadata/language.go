package metadata

import (
	"strings"

	"golang.org/x/text/cases"
)

// LanguageInfo holds details for a specific language.
type LanguageInfo struct {
	Code2   string   // ISO 639-1 Code (e.g., "id", "en")
	Code3   string   // ISO 639-2/3 Code (e.g., "ind", "eng")
	Name    string   // English name (e.g., "Indonesian")
	Aliases []string // Extra names the catalog is known to use
}

// APIName is the language value sent to the catalog ("indonesian").
func (l LanguageInfo) APIName() string {
	return strings.ToLower(l.Name)
}

// Synonyms returns every lower-case spelling that identifies this language.
func (l LanguageInfo) Synonyms() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range append([]string{l.Code2, l.Code3, l.Name}, l.Aliases...) {
		s = Fold(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// languagesDB maps every lower-case code, name and alias to its language.
var languagesDB = map[string]LanguageInfo{}

func init() {
	languages := []LanguageInfo{
		{Code2: "id", Code3: "ind", Name: "Indonesian", Aliases: []string{"indonesia", "bahasa indonesia"}},
		{Code2: "en", Code3: "eng", Name: "English"},
		{Code2: "ms", Code3: "msa", Name: "Malay", Aliases: []string{"bahasa melayu"}},
		{Code2: "ar", Code3: "ara", Name: "Arabic"},
		{Code2: "bn", Code3: "ben", Name: "Bengali"},
		{Code2: "pt", Code3: "por", Name: "Portuguese", Aliases: []string{"brazilian portuguese"}},
		{Code2: "zh", Code3: "zho", Name: "Chinese", Aliases: []string{"chinese bg code", "big 5 code"}},
		{Code2: "nl", Code3: "nld", Name: "Dutch"},
		{Code2: "fr", Code3: "fra", Name: "French", Aliases: []string{"fre"}},
		{Code2: "de", Code3: "deu", Name: "German", Aliases: []string{"ger"}},
		{Code2: "el", Code3: "ell", Name: "Greek", Aliases: []string{"gre"}},
		{Code2: "he", Code3: "heb", Name: "Hebrew"},
		{Code2: "hi", Code3: "hin", Name: "Hindi"},
		{Code2: "it", Code3: "ita", Name: "Italian"},
		{Code2: "ja", Code3: "jpn", Name: "Japanese"},
		{Code2: "ko", Code3: "kor", Name: "Korean"},
		{Code2: "fa", Code3: "fas", Name: "Farsi/Persian", Aliases: []string{"persian", "farsi"}},
		{Code2: "pl", Code3: "pol", Name: "Polish"},
		{Code2: "ru", Code3: "rus", Name: "Russian"},
		{Code2: "es", Code3: "spa", Name: "Spanish"},
		{Code2: "th", Code3: "tha", Name: "Thai"},
		{Code2: "tr", Code3: "tur", Name: "Turkish"},
		{Code2: "vi", Code3: "vie", Name: "Vietnamese"},
	}

	for _, lang := range languages {
		for _, key := range lang.Synonyms() {
			// First definition wins for a shared key.
			if _, exists := languagesDB[key]; !exists {
				languagesDB[key] = lang
			}
		}
	}
}

// LookupLanguage resolves a code, English name or alias, case-insensitively.
func LookupLanguage(code string) (LanguageInfo, bool) {
	lang, ok := languagesDB[Fold(strings.TrimSpace(code))]
	return lang, ok
}

// Fold lower-cases s for comparison using Unicode case folding.
func Fold(s string) string {
	return cases.Fold().String(s)
}
