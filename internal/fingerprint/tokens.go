package fingerprint

import "strings"

// Generic markers that replace identifier and literal values.
const (
	TokenIdentifier = "IDENTIFIER"
	TokenString     = "STRING_LITERAL"
	TokenNumber     = "NUMERIC_LITERAL"
)

var keywords = map[string]bool{
	// Go
	"func": true, "return": true, "if": true, "else": true, "for": true,
	"range": true, "switch": true, "case": true, "default": true, "break": true,
	"continue": true, "goto": true, "fallthrough": true, "defer": true,
	"go": true, "select": true, "chan": true, "map": true, "struct": true,
	"interface": true, "type": true, "var": true, "const": true, "package": true,
	"import": true, "nil": true, "true": true, "false": true,
	// Python
	"def": true, "class": true, "elif": true, "try": true, "except": true,
	"finally": true, "with": true, "lambda": true, "yield": true, "assert": true,
	"raise": true, "pass": true, "del": true, "global": true, "nonlocal": true,
	"and": true, "or": true, "not": true, "is": true, "from": true, "in": true,
	"as": true, "while": true, "None": true, "True": true, "False": true,
	"async": true, "await": true,
	// JavaScript/TypeScript/Java/Kotlin
	"function": true, "new": true, "this": true, "super": true, "let": true,
	"extends": true, "implements": true, "export": true, "throw": true,
	"catch": true, "instanceof": true, "typeof": true, "void": true,
	"delete": true, "do": true, "null": true, "undefined": true, "static": true,
	"public": true, "private": true, "protected": true, "fun": true, "val": true,
	"when": true, "throws": true, "enum": true, "of": true,
}

// Longest operators first so that scanning is greedy.
var operators = []string{
	">>>=", "===", "!==", "**=", "<<=", ">>=", "...", ">>>", "??=",
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "+=", "-=", "*=", "/=",
	"%=", "&=", "|=", "^=", "++", "--", "->", "=>", "::", ":=", "**", "??",
	"?.", "..",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "&", "|", "^", "~", "?",
	":", "(", ")", "[", "]", "{", "}", ",", ";", ".", "@",
}

// IsKeyword reports whether word is a structural keyword kept verbatim by the
// tokenizer.
func IsKeyword(word string) bool {
	return keywords[word]
}

// Tokenize returns the token multiset of code after normalization.
// Identifiers collapse to IDENTIFIER and literal values to STRING_LITERAL or
// NUMERIC_LITERAL; keywords and operators are counted as themselves.
func Tokenize(code string) map[string]int {
	return countTokens(Normalize(code))
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokKeyword
	tokString
	tokNumber
	tokOperator
	tokOther
)

type token struct {
	kind tokenKind
	text string
}

func (t token) marker() string {
	switch t.kind {
	case tokIdent:
		return TokenIdentifier
	case tokString:
		return TokenString
	case tokNumber:
		return TokenNumber
	default:
		return t.text
	}
}

func lex(code string) []token {
	var toks []token
	for i := 0; i < len(code); {
		c := code[i]
		switch {
		case isSpace(c):
			i++
		case c == '"' || c == '\'' || c == '`':
			end := skipString(code, i)
			toks = append(toks, token{kind: tokString, text: code[i:end]})
			i = end
		case isDigit(c) || (c == '.' && i+1 < len(code) && isDigit(code[i+1])):
			end := i + 1
			for end < len(code) && (isIdentPart(code[end]) || code[end] == '.') {
				end++
			}
			toks = append(toks, token{kind: tokNumber, text: code[i:end]})
			i = end
		case isIdentStart(c):
			end := i + 1
			for end < len(code) && isIdentPart(code[end]) {
				end++
			}
			word := code[i:end]
			kind := tokIdent
			if keywords[word] {
				kind = tokKeyword
			}
			toks = append(toks, token{kind: kind, text: word})
			i = end
		default:
			op := matchOperator(code[i:])
			if op == "" {
				toks = append(toks, token{kind: tokOther, text: code[i : i+1]})
				i++
				continue
			}
			toks = append(toks, token{kind: tokOperator, text: op})
			i += len(op)
		}
	}
	return toks
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
