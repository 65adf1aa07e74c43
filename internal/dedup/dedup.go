// Package dedup collapses an entity forest in which the same entity was
// reported by several parse entry points into one tree with a single node per
// (name, filePath) key.
package dedup

import (
	"slices"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/sirupsen/logrus"
)

type Stats struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Merged int `json:"merged"`
}

type Deduplicator struct {
	policy Policy
	logger logrus.FieldLogger
}

func New(policy Policy, logger logrus.FieldLogger) *Deduplicator {
	if len(policy.Criteria) == 0 {
		policy = DefaultPolicy()
	}
	return &Deduplicator{policy: policy, logger: logger.WithField("component", "dedup")}
}

// node is the flattened view of every instance sharing one key.
type node struct {
	instances []*models.Entity
	children  []string
}

// Dedup returns a new forest in which every key occurs exactly once. Method
// sets of all instances of a key are unioned by name, children of all
// instances are unioned by key, and each key is placed under the first parent
// that reaches it in a depth-first walk from the roots. The input is not
// modified.
func (d *Deduplicator) Dedup(forest []models.Entity) ([]models.Entity, Stats) {
	var (
		nodes = make(map[string]*node)
		roots []string
		stats Stats
	)

	var flatten func(e *models.Entity) string
	flatten = func(e *models.Entity) string {
		stats.Input++
		key := e.Key()
		n, ok := nodes[key]
		if !ok {
			n = &node{}
			nodes[key] = n
		}
		n.instances = append(n.instances, e)
		for i := range e.Children {
			child := flatten(&e.Children[i])
			if child != key && !slices.Contains(n.children, child) {
				n.children = append(n.children, child)
			}
		}
		return key
	}
	for i := range forest {
		key := flatten(&forest[i])
		if !slices.Contains(roots, key) {
			roots = append(roots, key)
		}
	}

	// Place each key once, first encounter wins. The visited set also breaks
	// key-level cycles such as A under B under A.
	placed := make(map[string][]string)
	visited := make(map[string]bool)
	var place func(key string)
	place = func(key string) {
		visited[key] = true
		for _, child := range nodes[key].children {
			if visited[child] {
				continue
			}
			placed[key] = append(placed[key], child)
			place(child)
		}
	}
	var topLevel []string
	for _, key := range roots {
		if visited[key] {
			continue
		}
		topLevel = append(topLevel, key)
		place(key)
	}

	var build func(key string) models.Entity
	build = func(key string) models.Entity {
		e := d.merge(nodes[key].instances)
		for _, child := range placed[key] {
			e.Children = append(e.Children, build(child))
		}
		return e
	}
	out := make([]models.Entity, 0, len(topLevel))
	for _, key := range topLevel {
		out = append(out, build(key))
	}

	stats.Output = len(nodes)
	stats.Merged = stats.Input - stats.Output
	d.logger.WithFields(logrus.Fields{
		"input":  stats.Input,
		"output": stats.Output,
		"merged": stats.Merged,
	}).Debug("deduplicated entity forest")
	return out, stats
}

// merge builds the canonical entity of one key. Children are attached by the
// caller. The policy picks the base instance; description and props are
// resolved per field, keeping the longest description and the largest prop
// set, with ties going to the base.
func (d *Deduplicator) merge(instances []*models.Entity) models.Entity {
	base := instances[0]
	for _, inst := range instances[1:] {
		if d.policy.richer(inst, base) {
			base = inst
		}
	}

	e := models.Entity{
		Name:               base.Name,
		FilePath:           base.FilePath,
		Kind:               base.Kind,
		Props:              cloneStrings(base.Props),
		Params:             cloneStrings(base.Params),
		ReturnType:         base.ReturnType,
		SourceCode:         base.SourceCode,
		Description:        base.Description,
		SimilarityWarnings: append([]models.SimilarityWarning(nil), base.SimilarityWarnings...),
		StartLine:          base.StartLine,
		EndLine:            base.EndLine,
	}
	for _, inst := range instances {
		if inst == base {
			continue
		}
		if e.SourceCode == "" {
			e.SourceCode = inst.SourceCode
			e.StartLine, e.EndLine = inst.StartLine, inst.EndLine
		}
		if len(inst.Description) > len(e.Description) {
			e.Description = inst.Description
		}
		if len(inst.Props) > len(e.Props) {
			e.Props = cloneStrings(inst.Props)
		}
	}
	e.Methods = d.unionMethods(instances, base)
	if len(e.SimilarityWarnings) == 0 {
		e.SimilarityWarnings = nil
	}
	return e
}

// unionMethods keeps every method name seen on any instance, in first-seen
// order. The base instance's version of a method is preferred unless it has
// no code.
func (d *Deduplicator) unionMethods(instances []*models.Entity, base *models.Entity) []models.Entity {
	var (
		order []string
		pick  = make(map[string]*models.Entity)
	)
	for _, inst := range instances {
		for i := range inst.Methods {
			m := &inst.Methods[i]
			prev, seen := pick[m.Name]
			if !seen {
				order = append(order, m.Name)
				pick[m.Name] = m
				continue
			}
			if m.SourceCode != "" && (prev.SourceCode == "" || inst == base) {
				pick[m.Name] = m
			}
		}
	}

	if len(order) == 0 {
		return nil
	}
	out := make([]models.Entity, 0, len(order))
	for _, name := range order {
		m := *pick[name]
		m.Params = cloneStrings(m.Params)
		m.Props = cloneStrings(m.Props)
		m.Methods = nil
		m.Children = nil
		m.SimilarityWarnings = append([]models.SimilarityWarning(nil), m.SimilarityWarnings...)
		if len(m.SimilarityWarnings) == 0 {
			m.SimilarityWarnings = nil
		}
		out = append(out, m)
	}
	return out
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
