package manifest

import (
	"fmt"

	"golang.org/x/text/language"
)

// Catalog is a bundled message catalog. Exactly one is selected per
// build, there is no runtime language switching.
type Catalog struct {
	Tag language.Tag

	InnoName         string // name in the [Languages] section
	InnoMessagesFile string
	WixCulture       string
	LCID             int
}

var catalogs = []Catalog{
	{language.English, "english", `compiler:Default.isl`, "en-US", 1033},
	{language.Japanese, "japanese", `compiler:Languages\Japanese.isl`, "ja-JP", 1041},
	{language.German, "german", `compiler:Languages\German.isl`, "de-DE", 1031},
	{language.French, "french", `compiler:Languages\French.isl`, "fr-FR", 1036},
	{language.Spanish, "spanish", `compiler:Languages\Spanish.isl`, "es-ES", 3082},
	{language.Italian, "italian", `compiler:Languages\Italian.isl`, "it-IT", 1040},
	{language.Dutch, "dutch", `compiler:Languages\Dutch.isl`, "nl-NL", 1043},
	{language.Polish, "polish", `compiler:Languages\Polish.isl`, "pl-PL", 1045},
	{language.BrazilianPortuguese, "brazilianportuguese", `compiler:Languages\BrazilianPortuguese.isl`, "pt-BR", 1046},
	{language.Russian, "russian", `compiler:Languages\Russian.isl`, "ru-RU", 1049},
}

var catalogMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(catalogs))
	for i, c := range catalogs {
		tags[i] = c.Tag
	}
	return language.NewMatcher(tags)
}()

// ResolveLanguage picks the bundled catalog for a BCP-47 tag. Only a
// confident match counts, the matcher's fallback to the first catalog
// is an error.
func ResolveLanguage(tag string) (Catalog, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return Catalog{}, fmt.Errorf("parsing language \"%s\": %w", tag, err)
	}

	_, idx, confidence := catalogMatcher.Match(t)
	if confidence < language.High {
		return Catalog{}, fmt.Errorf("no bundled catalog for language \"%s\"", tag)
	}

	return catalogs[idx], nil
}

// CatalogByInnoName looks up a catalog by its [Languages] name.
func CatalogByInnoName(name string) (Catalog, bool) {
	for _, c := range catalogs {
		if c.InnoName == name {
			return c, true
		}
	}
	return Catalog{}, false
}
