package fingerprint

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Languages whose line comments start with '#'.
var hashCommentLanguages = map[string]bool{
	"python": true,
	"ruby":   true,
	"shell":  true,
}

// Normalize strips comments and collapses whitespace using C-style comment
// rules. String literals are copied verbatim.
func Normalize(code string) string {
	return NormalizeLanguage(code, "")
}

// NormalizeLanguage is Normalize with language-specific comment syntax.
func NormalizeLanguage(code, language string) string {
	hashComments := hashCommentLanguages[language]

	var b strings.Builder
	b.Grow(len(code))
	space := false
	emit := func(c byte) {
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteByte(c)
	}

	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			end := skipString(code, i)
			for j := i; j < end; j++ {
				emit(code[j])
			}
			i = end - 1
		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			i = skipLine(code, i)
			space = true
		case c == '/' && i+1 < len(code) && code[i+1] == '*':
			end := strings.Index(code[i+2:], "*/")
			if end < 0 {
				i = len(code)
			} else {
				i += end + 3
			}
			space = true
		case c == '#' && hashComments:
			i = skipLine(code, i)
			space = true
		case isSpace(c):
			space = true
		default:
			emit(c)
		}
	}
	return b.String()
}

// Hash is the checksum of the normalized code. Equal normalized text always
// yields an equal hash.
func Hash(code string) string {
	return HashNormalized(Normalize(code))
}

func HashNormalized(normalized string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}

// skipString returns the index just past the literal starting at i. An
// unterminated literal runs to the end of the input.
func skipString(code string, i int) int {
	quote := code[i]
	if quote != '`' && strings.HasPrefix(code[i:], strings.Repeat(string(quote), 3)) {
		delim := code[i : i+3]
		if end := strings.Index(code[i+3:], delim); end >= 0 {
			return i + 3 + end + 3
		}
		return len(code)
	}
	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(code)
}

// skipLine returns the index of the newline ending the line at i.
func skipLine(code string, i int) int {
	end := strings.IndexByte(code[i:], '\n')
	if end < 0 {
		return len(code)
	}
	return i + end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
