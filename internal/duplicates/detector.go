// Package duplicates finds similar code block pairs, classifies them and
// attaches the resulting warnings to the entity tree.
package duplicates

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/similarity"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStructuralThreshold = 0.7
	DefaultSemanticThreshold   = 0.85
	DefaultSemanticTopK        = 10

	snippetLength = 160
)

// Classify maps a score onto its band. Scores under the lowest band are
// still "similar functionality": they passed a threshold configured below
// 0.70.
func Classify(score float64) models.Classification {
	switch {
	case score >= 0.95:
		return models.ClassExactDuplicate
	case score >= 0.85:
		return models.ClassVerySimilar
	default:
		return models.ClassSimilar
	}
}

// Side is one block of a match.
type Side struct {
	BlockID    string `json:"blockId"`
	EntityID   string `json:"entityId"`
	EntityName string `json:"entityName"`
	MethodName string `json:"methodName,omitempty"`
	FilePath   string `json:"filePath"`
	Snippet    string `json:"snippet"`
}

func sideOf(b *models.CodeBlock) Side {
	return Side{
		BlockID:    b.ID(),
		EntityID:   b.EntityID,
		EntityName: b.EntityName,
		MethodName: b.MethodName,
		FilePath:   b.FilePath,
		Snippet:    snippet(b.Code),
	}
}

// Match is an unordered pair of similar blocks. A holds the
// lexicographically smaller block id.
type Match struct {
	A              Side                  `json:"a"`
	B              Side                  `json:"b"`
	Score          float64               `json:"score"`
	Classification models.Classification `json:"classification"`
	Signal         models.Signal         `json:"signal"`
}

func (m Match) key() string {
	return m.A.BlockID + "\x00" + m.B.BlockID
}

func newMatch(a, b *models.CodeBlock, score float64, signal models.Signal) Match {
	sa, sb := sideOf(a), sideOf(b)
	if sb.BlockID < sa.BlockID {
		sa, sb = sb, sa
	}
	return Match{A: sa, B: sb, Score: score, Classification: Classify(score), Signal: signal}
}

type Config struct {
	StructuralThreshold float64
	SemanticThreshold   float64
	SemanticTopK        int
}

func DefaultConfig() Config {
	return Config{
		StructuralThreshold: DefaultStructuralThreshold,
		SemanticThreshold:   DefaultSemanticThreshold,
		SemanticTopK:        DefaultSemanticTopK,
	}
}

// VectorIndex is the query side of the vector store.
type VectorIndex interface {
	Query(vector []float32, topK int, threshold float64) []vectorstore.Match
}

type Detector struct {
	engine *similarity.Engine
	cfg    Config
	logger logrus.FieldLogger
}

func NewDetector(engine *similarity.Engine, cfg Config, logger logrus.FieldLogger) *Detector {
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = DefaultSemanticTopK
	}
	return &Detector{engine: engine, cfg: cfg, logger: logger.WithField("component", "duplicates")}
}

// eligible reports whether two blocks may be matched at all. Blocks of the
// same entity never are: an entity body contains its own methods.
func eligible(a, b *models.CodeBlock) bool {
	return !models.SameBlock(a, b) && a.EntityID != b.EntityID
}

func displayName(b *models.CodeBlock) string {
	if b.MethodName != "" {
		return b.MethodName
	}
	return b.EntityName
}

// Structural compares every pair of blocks.
func (d *Detector) Structural(blocks []models.CodeBlock) []Match {
	var matches []Match
	for i := range blocks {
		for j := i + 1; j < len(blocks); j++ {
			a, b := &blocks[i], &blocks[j]
			if !eligible(a, b) {
				continue
			}
			score := d.engine.Structural(a, b)
			if score < d.engine.Threshold(d.cfg.StructuralThreshold, displayName(a), displayName(b)) {
				continue
			}
			matches = append(matches, newMatch(a, b, score, models.SignalStructural))
		}
	}
	d.logger.WithFields(logrus.Fields{"blocks": len(blocks), "matches": len(matches)}).Debug("structural comparison done")
	return matches
}

// Semantic queries the index with each block's embedding. vectors is keyed by
// block id; blocks without a vector, or with the all-zero fallback, are
// skipped. Hits on entries that do not belong to blocks are ignored, so stale
// entries from earlier runs never produce warnings. SemanticTopK counts only
// eligible hits of the current run.
func (d *Detector) Semantic(blocks []models.CodeBlock, vectors map[string][]float32, index VectorIndex) []Match {
	byEntry := make(map[string]*models.CodeBlock, len(blocks))
	for i := range blocks {
		byEntry[vectorstore.EntryID(blocks[i].ID())] = &blocks[i]
	}

	var matches []Match
	for i := range blocks {
		a := &blocks[i]
		vec := vectors[a.ID()]
		if isZero(vec) {
			continue
		}
		kept := 0
		for _, hit := range index.Query(vec, 0, d.cfg.SemanticThreshold) {
			if kept == d.cfg.SemanticTopK {
				break
			}
			b, ok := byEntry[hit.Entry.ID]
			if !ok || !eligible(a, b) {
				continue
			}
			if hit.Score < d.engine.Threshold(d.cfg.SemanticThreshold, displayName(a), displayName(b)) {
				continue
			}
			kept++
			matches = append(matches, newMatch(a, b, hit.Score, models.SignalSemantic))
		}
	}
	return matches
}

// Merge combines match lists, reporting each unordered pair once with its
// highest score, sorted by descending score.
func Merge(lists ...[]Match) []Match {
	best := make(map[string]Match)
	for _, list := range lists {
		for _, m := range list {
			k := m.key()
			if prev, seen := best[k]; seen && prev.Score >= m.Score {
				continue
			}
			best[k] = m
		}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].key() < out[j].key()
	})
	return out
}

// Filter keeps the matches scoring at least minScore.
func Filter(matches []Match, minScore float64) []Match {
	out := []Match{}
	for _, m := range matches {
		if m.Score >= minScore {
			out = append(out, m)
		}
	}
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func snippet(code string) string {
	code = strings.TrimSpace(code)
	if utf8.RuneCountInString(code) <= snippetLength {
		return code
	}
	r := []rune(code)
	return string(r[:snippetLength]) + "..."
}
