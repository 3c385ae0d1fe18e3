package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName collapses whitespace and title-cases names the field-service stores in a single case
// ("JOHN SMITH", "mary ann"). Mixed-case input is assumed intentional and only trimmed.
func DisplayName(raw string) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" || !singleCase(name) {
		return name
	}
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(name))
}

func singleCase(value string) bool {
	var upper, lower bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
		if upper && lower {
			return false
		}
	}
	return true
}
