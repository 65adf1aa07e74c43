package models

import (
	"strconv"
	"strings"
	"unicode"
)

// IndexItem is one row of the persisted entity index document.
type IndexItem struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	FilePath string `json:"filePath"`
}

// BuildIndex lists every entity of the forest in pre-order with a unique,
// URL-friendly slug.
func BuildIndex(forest []Entity) []IndexItem {
	items := []IndexItem{}
	taken := make(map[string]bool)
	next := make(map[string]int)
	WalkForest(forest, func(e *Entity) {
		base := Slugify(e.Name)
		slug := base
		for n := next[base]; taken[slug]; n++ {
			slug = base + "-" + strconv.Itoa(n+2)
			next[base] = n + 1
		}
		taken[slug] = true
		items = append(items, IndexItem{Name: e.Name, Slug: slug, FilePath: e.FilePath})
	})
	return items
}

// Slugify converts an identifier such as "UserProfileCard" or "load_user"
// into "user-profile-card" / "load-user".
func Slugify(name string) string {
	var b strings.Builder
	prevLower := false
	pendingDash := false
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				pendingDash = true
			}
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			prevLower = true
		default:
			pendingDash = true
			prevLower = false
		}
	}
	if b.Len() == 0 {
		return "entity"
	}
	return b.String()
}
