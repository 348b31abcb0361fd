package provision

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Latin letters that do not decompose under NFD.
var transliterate = strings.NewReplacer(
	"ø", "o", "æ", "ae", "œ", "oe", "ß", "ss", "đ", "d", "ð", "d", "ł", "l", "þ", "th", "ı", "i",
)

// TablePrefix derives the short namespace for a tenant's tables: the first
// letter of each of the first three words, or the first two letters of a
// single-word name. Accents are folded and the result is lower-cased. Any
// other non-ASCII rune separates words.
func TablePrefix(name string) (string, error) {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		transliterate.Replace(strings.ToLower(name)))
	if err != nil {
		return "", fmt.Errorf("normalize tenant name: %w", err)
	}
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	if len(words) == 0 {
		return "", fmt.Errorf("%w: tenant name %q has no letters", ErrInvalidRequest, name)
	}

	var b strings.Builder
	if len(words) == 1 {
		w := []rune(words[0])
		b.WriteString(string(w[:min(2, len(w))]))
		return b.String(), nil
	}
	for _, w := range words[:min(3, len(words))] {
		b.WriteRune([]rune(w)[0])
	}
	return b.String(), nil
}
