package analysis

import (
	"time"

	"github.com/dpolishuk/codesense/internal/duplicates"
	"github.com/dpolishuk/codesense/internal/models"
)

type Stats struct {
	Entities          int           `json:"entities"`
	Skipped           int           `json:"skipped"`
	Merged            int           `json:"merged"`
	Blocks            int           `json:"blocks"`
	Indexed           int           `json:"indexed"`
	Reused            int           `json:"reused"`
	EmbedFallbacks    int           `json:"embedFallbacks"`
	CacheHits         int           `json:"cacheHits"`
	Described         int           `json:"described"`
	DescribeFallbacks int           `json:"describeFallbacks"`
	Warnings          int           `json:"warnings"`
	Duration          time.Duration `json:"duration"`
}

// Report is the result of one run.
type Report struct {
	Project string             `json:"project"`
	Forest  []models.Entity    `json:"forest"`
	Matches []duplicates.Match `json:"matches"`
	Index   []models.IndexItem `json:"index"`
	Stats   Stats              `json:"stats"`
}

// Entity finds an entity of the report by its index slug.
func (r *Report) Entity(slug string) (*models.Entity, bool) {
	i := 0
	var found *models.Entity
	models.WalkForest(r.Forest, func(e *models.Entity) {
		if found == nil && i < len(r.Index) && r.Index[i].Slug == slug {
			found = e
		}
		i++
	})
	return found, found != nil
}

// Duplicates returns the matches scoring at least minScore.
func (r *Report) Duplicates(minScore float64) []duplicates.Match {
	return duplicates.Filter(r.Matches, minScore)
}
