package db

import (
	"context"
	"fmt"

	"github.com/dpolishuk/codesense/internal/analysis"
	"github.com/dpolishuk/codesense/internal/duplicates"
	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// GraphWriter mirrors reports as (:Project)-[:CONTAINS]->(:Entity) trees with
// HAS_METHOD and SIMILAR_TO edges. It implements analysis.GraphSink.
type GraphWriter struct {
	client *Neo4jClient
	logger logrus.FieldLogger
}

func NewGraphWriter(client *Neo4jClient, logger logrus.FieldLogger) *GraphWriter {
	return &GraphWriter{client: client, logger: logger.WithField("component", "graph")}
}

// WriteAnalysis replaces the stored graph of project with report.
func (w *GraphWriter) WriteAnalysis(ctx context.Context, project string, report *analysis.Report) error {
	entities, methods := entityRows(report.Forest)
	similar := similarityRows(report.Matches)

	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := clearProject(ctx, tx, project); err != nil {
			return nil, err
		}

		steps := []struct {
			name   string
			query  string
			params map[string]any
		}{
			{"project", `
				MERGE (p:Project {name: $project})
				SET p.entities = $entities,
				    p.blocks = $blocks,
				    p.matches = $matches,
				    p.warnings = $warnings,
				    p.updatedAt = datetime()
			`, map[string]any{
				"entities": report.Stats.Entities,
				"blocks":   report.Stats.Blocks,
				"matches":  len(report.Matches),
				"warnings": report.Stats.Warnings,
			}},
			{"entities", `
				UNWIND $rows AS e
				CREATE (n:Entity {project: $project, key: e.key})
				SET n.id = e.id,
				    n.name = e.name,
				    n.kind = e.kind,
				    n.filePath = e.filePath,
				    n.description = e.description,
				    n.props = e.props,
				    n.startLine = e.startLine,
				    n.endLine = e.endLine,
				    n.warnings = e.warnings
			`, map[string]any{"rows": entities}},
			{"roots", `
				UNWIND $rows AS e
				WITH e WHERE e.parent IS NULL
				MATCH (p:Project {name: $project})
				MATCH (n:Entity {project: $project, key: e.key})
				MERGE (p)-[:CONTAINS]->(n)
			`, map[string]any{"rows": entities}},
			{"children", `
				UNWIND $rows AS e
				WITH e WHERE e.parent IS NOT NULL
				MATCH (parent:Entity {project: $project, key: e.parent})
				MATCH (n:Entity {project: $project, key: e.key})
				MERGE (parent)-[:CONTAINS]->(n)
			`, map[string]any{"rows": entities}},
			{"methods", `
				UNWIND $rows AS m
				MATCH (owner:Entity {project: $project, key: m.owner})
				CREATE (x:Method {project: $project, id: m.id})
				SET x.name = m.name,
				    x.params = m.params,
				    x.returnType = m.returnType,
				    x.startLine = m.startLine,
				    x.endLine = m.endLine
				MERGE (owner)-[:HAS_METHOD]->(x)
			`, map[string]any{"rows": methods}},
			{"similarities", `
				UNWIND $rows AS s
				MATCH (a:Entity {project: $project, key: s.a})
				MATCH (b:Entity {project: $project, key: s.b})
				MERGE (a)-[r:SIMILAR_TO {blockA: s.blockA, blockB: s.blockB}]->(b)
				SET r.score = s.score,
				    r.classification = s.classification,
				    r.signal = s.signal
			`, map[string]any{"rows": similar}},
		}

		for _, step := range steps {
			step.params["project"] = project
			if _, err := tx.Run(ctx, step.query, step.params); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", step.name, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write analysis of %s: %w", project, err)
	}

	w.logger.WithFields(logrus.Fields{
		"project":  project,
		"entities": len(entities),
		"methods":  len(methods),
		"similar":  len(similar),
	}).Info("Wrote analysis graph")
	return nil
}

// ClearProject removes every node written for project.
func (w *GraphWriter) ClearProject(ctx context.Context, project string) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, clearProject(ctx, tx, project)
	})
	return err
}

func clearProject(ctx context.Context, tx neo4j.ManagedTransaction, project string) error {
	query := `
		MATCH (n {project: $project})
		WHERE n:Entity OR n:Method
		DETACH DELETE n
	`
	if _, err := tx.Run(ctx, query, map[string]any{"project": project}); err != nil {
		return fmt.Errorf("failed to clear project: %w", err)
	}
	return nil
}

// entityRows flattens a forest into UNWIND parameter rows. Roots have a nil
// parent.
func entityRows(forest []models.Entity) (entities, methods []map[string]any) {
	entities = []map[string]any{}
	methods = []map[string]any{}

	var visit func(e *models.Entity, parent any)
	visit = func(e *models.Entity, parent any) {
		key := e.Key()
		entities = append(entities, map[string]any{
			"key":         key,
			"id":          vectorstore.EntryID(key),
			"parent":      parent,
			"name":        e.Name,
			"kind":        string(e.Kind),
			"filePath":    e.FilePath,
			"description": e.Description,
			"props":       nonNil(e.Props),
			"startLine":   e.StartLine,
			"endLine":     e.EndLine,
			"warnings":    len(e.SimilarityWarnings),
		})
		for i := range e.Methods {
			m := &e.Methods[i]
			methods = append(methods, map[string]any{
				"owner":      key,
				"id":         vectorstore.EntryID(key + "#" + m.Name),
				"name":       m.Name,
				"params":     nonNil(m.Params),
				"returnType": m.ReturnType,
				"startLine":  m.StartLine,
				"endLine":    m.EndLine,
			})
		}
		for i := range e.Children {
			visit(&e.Children[i], key)
		}
	}
	for i := range forest {
		visit(&forest[i], nil)
	}
	return entities, methods
}

func similarityRows(matches []duplicates.Match) []map[string]any {
	rows := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, map[string]any{
			"a":              m.A.EntityID,
			"b":              m.B.EntityID,
			"blockA":         m.A.BlockID,
			"blockB":         m.B.BlockID,
			"score":          m.Score,
			"classification": string(m.Classification),
			"signal":         string(m.Signal),
		})
	}
	return rows
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
