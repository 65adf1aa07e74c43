package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphReader struct {
	client *Neo4jClient
}

func NewGraphReader(client *Neo4jClient) *GraphReader {
	return &GraphReader{client: client}
}

// Duplicate is a stored SIMILAR_TO edge.
type Duplicate struct {
	EntityA        string  `json:"entityA"`
	EntityB        string  `json:"entityB"`
	BlockA         string  `json:"blockA"`
	BlockB         string  `json:"blockB"`
	FilePathA      string  `json:"filePathA"`
	FilePathB      string  `json:"filePathB"`
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
	Signal         string  `json:"signal"`
}

type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
}

type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ListDuplicates returns the SIMILAR_TO edges of project scoring at least
// minScore, best first.
func (r *GraphReader) ListDuplicates(ctx context.Context, project string, minScore float64) ([]Duplicate, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:Entity {project: $project})-[s:SIMILAR_TO]->(b:Entity)
			WHERE s.score >= $minScore
			RETURN a.key AS entityA, b.key AS entityB,
			       s.blockA AS blockA, s.blockB AS blockB,
			       a.filePath AS filePathA, b.filePath AS filePathB,
			       s.score AS score, s.classification AS classification, s.signal AS signal
			ORDER BY s.score DESC, s.blockA, s.blockB
		`
		records, err := tx.Run(ctx, query, map[string]any{"project": project, "minScore": minScore})
		if err != nil {
			return nil, err
		}

		dups := []Duplicate{}
		for records.Next(ctx) {
			rec := records.Record()
			dups = append(dups, Duplicate{
				EntityA:        str(rec, "entityA"),
				EntityB:        str(rec, "entityB"),
				BlockA:         str(rec, "blockA"),
				BlockB:         str(rec, "blockB"),
				FilePathA:      str(rec, "filePathA"),
				FilePathB:      str(rec, "filePathB"),
				Score:          number(rec, "score"),
				Classification: str(rec, "classification"),
				Signal:         str(rec, "signal"),
			})
		}
		if err := records.Err(); err != nil {
			return nil, err
		}
		return dups, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicates: %w", err)
	}
	return result.([]Duplicate), nil
}

// GetGraph returns the entity tree and similarity edges of project for
// visualization.
func (r *GraphReader) GetGraph(ctx context.Context, project string) (*GraphData, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n:Entity {project: $project})
			OPTIONAL MATCH (n)-[rel:CONTAINS|SIMILAR_TO]->(m:Entity)
			RETURN n, type(rel) AS relType, m, rel.score AS score
		`
		records, err := tx.Run(ctx, query, map[string]any{"project": project})
		if err != nil {
			return nil, err
		}

		nodesMap := make(map[string]GraphNode)
		edgesMap := make(map[string]GraphEdge)
		var order []string

		addNode := func(raw any) string {
			node, ok := raw.(neo4j.Node)
			if !ok {
				return ""
			}
			props := node.GetProperties()
			id, _ := props["id"].(string)
			if _, exists := nodesMap[id]; !exists {
				name, _ := props["name"].(string)
				kind, _ := props["kind"].(string)
				nodesMap[id] = GraphNode{
					ID:    id,
					Label: name,
					Type:  kind,
					Props: map[string]any{
						"key":      props["key"],
						"filePath": props["filePath"],
						"warnings": props["warnings"],
					},
				}
				order = append(order, id)
			}
			return id
		}

		var edgeOrder []string
		for records.Next(ctx) {
			rec := records.Record()
			nRaw, _ := rec.Get("n")
			source := addNode(nRaw)

			mRaw, _ := rec.Get("m")
			if mRaw == nil {
				continue
			}
			target := addNode(mRaw)
			relType := str(rec, "relType")

			edgeID := fmt.Sprintf("%s-%s->%s", source, relType, target)
			if _, exists := edgesMap[edgeID]; !exists {
				edgesMap[edgeID] = GraphEdge{
					ID:     edgeID,
					Source: source,
					Target: target,
					Type:   relType,
				}
				edgeOrder = append(edgeOrder, edgeID)
			}
		}
		if err := records.Err(); err != nil {
			return nil, err
		}

		nodes := make([]GraphNode, 0, len(order))
		for _, id := range order {
			nodes = append(nodes, nodesMap[id])
		}
		edges := make([]GraphEdge, 0, len(edgeOrder))
		for _, id := range edgeOrder {
			edges = append(edges, edgesMap[id])
		}
		return &GraphData{Nodes: nodes, Edges: edges}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	return result.(*GraphData), nil
}

func str(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func number(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
