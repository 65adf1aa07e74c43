// Package similarity scores pairs of code blocks structurally and pairs of
// embeddings semantically. All scores are in [0,1].
package similarity

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dpolishuk/codesense/internal/models"
)

// Weights of the structural score components. They need not sum to one; the
// score is divided by their sum.
type Weights struct {
	Skeleton float64
	Tokens   float64
	Length   float64
}

func DefaultWeights() Weights {
	return Weights{Skeleton: 0.4, Tokens: 0.4, Length: 0.2}
}

// DefaultTrivialPrefixes are accessor and handler verbs whose shared use says
// little about duplicated logic.
var DefaultTrivialPrefixes = []string{
	"get", "set", "is", "has", "on", "toggle", "add", "remove",
	"create", "update", "delete", "handle",
}

const DefaultTrivialDelta = 0.1

type Engine struct {
	weights         Weights
	trivialPrefixes []string
	trivialDelta    float64
}

type Option func(*Engine)

func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

func WithTrivialPrefixes(prefixes []string, delta float64) Option {
	return func(e *Engine) {
		e.trivialPrefixes = prefixes
		e.trivialDelta = delta
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights:         DefaultWeights(),
		trivialPrefixes: DefaultTrivialPrefixes,
		trivialDelta:    DefaultTrivialDelta,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Structural compares two fingerprinted blocks. Equal hashes short-circuit to
// 1.0.
func (e *Engine) Structural(a, b *models.CodeBlock) float64 {
	if a.Hash != "" && a.Hash == b.Hash {
		return 1.0
	}

	total := e.weights.Skeleton + e.weights.Tokens + e.weights.Length
	if total <= 0 {
		return 0
	}

	var skeleton float64
	if equalSkeletons(a.Skeleton, b.Skeleton) {
		skeleton = 1
	}
	score := e.weights.Skeleton*skeleton +
		e.weights.Tokens*Jaccard(a.Tokens, b.Tokens) +
		e.weights.Length*LengthRatio(utf8.RuneCountInString(a.Code), utf8.RuneCountInString(b.Code))
	return clamp(score / total)
}

// Semantic is the cosine similarity of two embeddings.
func (e *Engine) Semantic(a, b []float32) float64 {
	return Cosine(a, b)
}

// Threshold returns the acceptance threshold for a pair of names. Names sharing
// a trivial verb prefix must clear base plus the configured delta.
func (e *Engine) Threshold(base float64, nameA, nameB string) float64 {
	if e.trivialDelta == 0 {
		return base
	}
	pa := verbPrefix(nameA, e.trivialPrefixes)
	if pa != "" && pa == verbPrefix(nameB, e.trivialPrefixes) {
		return base + e.trivialDelta
	}
	return base
}

// Cosine returns the cosine similarity of a and b, clamped to [0,1]. Length
// mismatches, empty or all-zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Jaccard is the weighted Jaccard index of two token multisets: the sum of
// per-token minimum counts over the sum of maximum counts.
func Jaccard(a, b map[string]int) float64 {
	var inter, union int
	for tok, ca := range a {
		cb := b[tok]
		inter += min(ca, cb)
		union += max(ca, cb)
	}
	for tok, cb := range b {
		if _, ok := a[tok]; !ok {
			union += cb
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// LengthRatio is min/max of two lengths, 0 when either is empty.
func LengthRatio(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return float64(min(a, b)) / float64(max(a, b))
}

func equalSkeletons(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// verbPrefix returns the trivial prefix that name starts with, provided the
// prefix ends at a word boundary ("getUser", "get_user", "get").
func verbPrefix(name string, prefixes []string) string {
	lower := strings.ToLower(name)
	best := ""
	for _, p := range prefixes {
		if len(p) <= len(best) || !strings.HasPrefix(lower, p) {
			continue
		}
		if len(name) == len(p) {
			best = p
			continue
		}
		next, _ := utf8.DecodeRuneInString(name[len(p):])
		if unicode.IsUpper(next) || unicode.IsDigit(next) || next == '_' || next == '-' {
			best = p
		}
	}
	return best
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
