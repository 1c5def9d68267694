package notes

import (
	"regexp"
	"unicode/utf8"

	"github.com/gosimple/slug"
)

// MaxSlugLength bounds both derived and explicit slugs, in characters.
const MaxSlugLength = 100

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Derive turns a title into a URL-safe slug: non-Latin scripts are
// transliterated, letters lowercased, words hyphen-joined and punctuation
// dropped. The result is cut to MaxSlugLength characters.
func Derive(title string) string {
	return truncate(slug.Make(title), MaxSlugLength)
}

// ValidSlug reports whether s is acceptable as an explicit slug.
func ValidSlug(s string) bool {
	return s != "" && utf8.RuneCountInString(s) <= MaxSlugLength && slugPattern.MatchString(s)
}

// truncate keeps at most n code points of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
