package dashboard

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ecoscope/ecoscope/internal/session"
)

// supportedLanguages are the choices offered on the sign-up form.
var supportedLanguages = []language.Tag{
	language.English,
	language.Hindi,
	language.Spanish,
	language.French,
	language.German,
	language.Chinese,
	language.Japanese,
	language.Bengali,
}

var englishNames = display.English.Languages()

// displayOverrides replaces CLDR names with the ones offered on the form.
var displayOverrides = map[string]string{
	"bn": "Bengali",
}

func languageName(base language.Base) string {
	if name, ok := displayOverrides[base.String()]; ok {
		return name
	}
	return englishNames.Name(base)
}

// normalizeLanguage maps a BCP 47 tag or an English language name to the
// English display name. Unrecognised input is returned trimmed.
func normalizeLanguage(input string) string {
	in := strings.TrimSpace(input)
	if in == "" {
		return session.DefaultLanguage
	}
	for _, tag := range supportedLanguages {
		base, _ := tag.Base()
		name := languageName(base)
		if strings.EqualFold(name, in) || strings.EqualFold(englishNames.Name(base), in) {
			return name
		}
	}
	tag, err := language.Parse(in)
	if err != nil {
		return in
	}
	// Bases below High confidence are guesses, e.g. "und" infers English.
	base, conf := tag.Base()
	if conf < language.High {
		return in
	}
	if name := languageName(base); name != "" {
		return name
	}
	return in
}
