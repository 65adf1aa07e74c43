package duplicates

import (
	"sort"

	"github.com/dpolishuk/codesense/internal/models"
)

// Attach returns a copy of forest in which both entities of every match carry
// a warning pointing at the other side. A warning for a method block is
// attached to its owning entity with MethodName set to the local method.
// Matches must already be sorted; warnings keep that order.
func Attach(forest []models.Entity, matches []Match) []models.Entity {
	byEntity := make(map[string][]models.SimilarityWarning)
	for _, m := range matches {
		byEntity[m.A.EntityID] = append(byEntity[m.A.EntityID], warningFor(m.A, m.B, m))
		byEntity[m.B.EntityID] = append(byEntity[m.B.EntityID], warningFor(m.B, m.A, m))
	}

	out := make([]models.Entity, len(forest))
	for i := range forest {
		out[i] = attach(forest[i], byEntity)
	}
	return out
}

func attach(e models.Entity, byEntity map[string][]models.SimilarityWarning) models.Entity {
	if ws := byEntity[e.Key()]; len(ws) > 0 {
		e.SimilarityWarnings = append(append([]models.SimilarityWarning(nil), e.SimilarityWarnings...), ws...)
		sort.SliceStable(e.SimilarityWarnings, func(i, j int) bool {
			return e.SimilarityWarnings[i].Score > e.SimilarityWarnings[j].Score
		})
	}
	if len(e.Children) > 0 {
		children := make([]models.Entity, len(e.Children))
		for i := range e.Children {
			children[i] = attach(e.Children[i], byEntity)
		}
		e.Children = children
	}
	return e
}

func warningFor(self, other Side, m Match) models.SimilarityWarning {
	return models.SimilarityWarning{
		SimilarToID:    other.BlockID,
		MethodName:     self.MethodName,
		Score:          m.Score,
		Classification: m.Classification,
		Signal:         m.Signal,
		FilePath:       other.FilePath,
		Snippet:        other.Snippet,
	}
}

// Warnings counts the warnings of a forest.
func Warnings(forest []models.Entity) int {
	n := 0
	models.WalkForest(forest, func(e *models.Entity) { n += len(e.SimilarityWarnings) })
	return n
}
