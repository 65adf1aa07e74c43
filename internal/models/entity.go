package models

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of entity variants the engine understands.
type Kind string

const (
	KindComponent Kind = "component"
	KindClass     Kind = "class"
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
)

var ErrUnknownKind = errors.New("unknown entity kind")

// ParseKind maps a parser-supplied kind string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindComponent:
		return KindComponent, nil
	case KindClass, "interface", "struct":
		return KindClass, nil
	case KindFunction:
		return KindFunction, nil
	case KindMethod:
		return KindMethod, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// RawMethod is a method record as produced by a language-aware parser.
type RawMethod struct {
	Name       string   `json:"name"`
	Params     []string `json:"params,omitempty"`
	ReturnType string   `json:"returnType,omitempty"`
	Code       string   `json:"code"`
	StartLine  int      `json:"startLine,omitempty"`
	EndLine    int      `json:"endLine,omitempty"`
}

// RawEntity is the parser input contract: an ordered forest of loosely
// validated records. Nothing downstream of Ingest sees this type.
type RawEntity struct {
	Name       string      `json:"name"`
	Kind       string      `json:"kind"`
	FilePath   string      `json:"filePath"`
	SourceText string      `json:"sourceText"`
	Props      []string    `json:"props,omitempty"`
	Methods    []RawMethod `json:"methods,omitempty"`
	Children   []RawEntity `json:"children,omitempty"`
	StartLine  int         `json:"startLine,omitempty"`
	EndLine    int         `json:"endLine,omitempty"`
}

// Entity is a validated node of the entity tree.
type Entity struct {
	Name               string              `json:"name"`
	FilePath           string              `json:"filePath"`
	Kind               Kind                `json:"kind"`
	Props              []string            `json:"props,omitempty"`
	Params             []string            `json:"params,omitempty"`
	ReturnType         string              `json:"returnType,omitempty"`
	Methods            []Entity            `json:"methods,omitempty"`
	SourceCode         string              `json:"sourceCode"`
	Children           []Entity            `json:"children,omitempty"`
	Description        string              `json:"description,omitempty"`
	SimilarityWarnings []SimilarityWarning `json:"similarityWarnings,omitempty"`
	StartLine          int                 `json:"startLine,omitempty"`
	EndLine            int                 `json:"endLine,omitempty"`
}

// Key identifies an entity across parse entry points.
func (e *Entity) Key() string {
	return EntityKey(e.Name, e.FilePath)
}

func EntityKey(name, filePath string) string {
	return name + ":" + filePath
}

// Walk visits e and every descendant entity in pre-order. Methods are not
// visited; they belong to their owner.
func (e *Entity) Walk(fn func(*Entity)) {
	fn(e)
	for i := range e.Children {
		e.Children[i].Walk(fn)
	}
}

// WalkForest applies Walk to every root of a forest.
func WalkForest(forest []Entity, fn func(*Entity)) {
	for i := range forest {
		forest[i].Walk(fn)
	}
}

// Ingest validates a parser forest. Malformed records are dropped together
// with their subtrees and reported as warnings; the rest of the batch is kept.
func Ingest(raw []RawEntity) ([]Entity, []string) {
	var warnings []string
	forest := ingestLevel(raw, "", &warnings)
	return forest, warnings
}

func ingestLevel(raw []RawEntity, parent string, warnings *[]string) []Entity {
	out := make([]Entity, 0, len(raw))
	for i := range raw {
		e, err := ingestOne(&raw[i], warnings)
		if err != nil {
			where := fmt.Sprintf("entity #%d", i)
			if parent != "" {
				where = fmt.Sprintf("child #%d of %s", i, parent)
			}
			*warnings = append(*warnings, fmt.Sprintf("skipping %s: %v", where, err))
			continue
		}
		out = append(out, e)
	}
	return out
}

func ingestOne(r *RawEntity, warnings *[]string) (Entity, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Entity{}, errors.New("missing name")
	}
	if strings.TrimSpace(r.FilePath) == "" {
		return Entity{}, fmt.Errorf("%s: missing file path", name)
	}
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return Entity{}, fmt.Errorf("%s: %w", name, err)
	}

	e := Entity{
		Name:       name,
		FilePath:   r.FilePath,
		Kind:       kind,
		Props:      append([]string(nil), r.Props...),
		SourceCode: r.SourceText,
		StartLine:  r.StartLine,
		EndLine:    r.EndLine,
	}
	for j, m := range r.Methods {
		mname := strings.TrimSpace(m.Name)
		if mname == "" {
			*warnings = append(*warnings, fmt.Sprintf("skipping method #%d of %s: missing name", j, e.Key()))
			continue
		}
		e.Methods = append(e.Methods, Entity{
			Name:       mname,
			FilePath:   r.FilePath,
			Kind:       KindMethod,
			Params:     append([]string(nil), m.Params...),
			ReturnType: m.ReturnType,
			SourceCode: m.Code,
			StartLine:  m.StartLine,
			EndLine:    m.EndLine,
		})
	}
	e.Children = ingestLevel(r.Children, e.Key(), warnings)
	if len(e.Children) == 0 {
		e.Children = nil
	}
	return e, nil
}
