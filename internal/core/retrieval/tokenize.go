package retrieval

import (
	"strings"
	"unicode"
)

// Tokenize lowercases s and splits it into runs of letters and digits.
// A single hyphen between two word characters is kept, so form and visa
// identifiers such as "f-1", "1040-nr" and "w-2" survive as one token.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	pendingHyphen := false
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
		pendingHyphen = false
	}

	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen {
				b.WriteByte('-')
				pendingHyphen = false
			}
			b.WriteRune(r)
			continue
		}
		if r == '-' && b.Len() > 0 && !pendingHyphen {
			pendingHyphen = true
			continue
		}
		flush()
	}
	flush()
	return tokens
}
