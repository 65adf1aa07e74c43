package indexer

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/pkg/treesitter"
	sitter "github.com/smacker/go-tree-sitter"
)

// Extractor turns one source file into the raw entity forest the analysis
// consumes. It wraps a tree-sitter parser and is therefore not safe for
// concurrent use.
type Extractor struct {
	parser *treesitter.Parser
}

func NewExtractor() *Extractor {
	return &Extractor{
		parser: treesitter.NewParser(),
	}
}

func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses content and returns its top-level entities. Classes carry
// their methods; functions and classes declared inside functions become
// children of the enclosing entity.
func (e *Extractor) Extract(ctx context.Context, content []byte, language string, filePath string) ([]models.RawEntity, error) {
	g, ok := grammars[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	tree, err := e.parser.Parse(ctx, content, language)
	if err != nil {
		return nil, fmt.Errorf("failed to parse code: %w", err)
	}
	defer tree.Close()

	w := &walker{g: g, src: content, filePath: filePath, language: language}
	roots := w.collect(tree.RootNode(), nil)
	if language == "go" {
		roots = w.attachReceivers(roots)
	}
	return roots, nil
}

type walker struct {
	g        *grammar
	src      []byte
	filePath string
	language string

	// Go methods, attached to their receiver type once the file is walked.
	receivers []receiverMethod
}

type receiverMethod struct {
	receiver string
	method   models.RawMethod
}

// collect walks the named children of node. owner is the class whose body is
// being walked, nil elsewhere.
func (w *walker) collect(node *sitter.Node, owner *models.RawEntity) []models.RawEntity {
	var out []models.RawEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}

		switch {
		case w.g.isClass(child):
			if ent, ok := w.class(child); ok {
				out = append(out, ent)
			}

		case w.g.receiverMethod != "" && child.Type() == w.g.receiverMethod:
			if m, recv, ok := w.goMethod(child); ok {
				w.receivers = append(w.receivers, receiverMethod{receiver: recv, method: m})
			}

		case w.g.functions[child.Type()]:
			if owner != nil {
				if m, ok := w.method(child); ok {
					owner.Methods = append(owner.Methods, m)
				}
				continue
			}
			if ent, ok := w.function(child, child, w.name(child)); ok {
				out = append(out, ent)
			}

		case w.g.bindings[child.Type()] && owner == nil:
			out = append(out, w.bindings(child)...)

		default:
			out = append(out, w.collect(child, owner)...)
		}
	}
	return out
}

func (w *walker) class(node *sitter.Node) (models.RawEntity, bool) {
	name := w.name(node)
	if name == "" {
		return models.RawEntity{}, false
	}
	ent := models.RawEntity{
		Name:       name,
		Kind:       string(models.KindClass),
		FilePath:   w.filePath,
		SourceText: node.Content(w.src),
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
	}
	if w.isComponent(name, node) {
		ent.Kind = string(models.KindComponent)
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		body = findChild(node, "class_body")
	}
	if body != nil {
		ent.Children = w.collect(body, &ent)
	}
	return ent, true
}

// function builds a function entity. decl spans the whole declaration used
// as source text; fn is the function node itself (they differ for
// `const f = () => ...`).
func (w *walker) function(decl, fn *sitter.Node, name string) (models.RawEntity, bool) {
	if name == "" {
		return models.RawEntity{}, false
	}
	ent := models.RawEntity{
		Name:       name,
		Kind:       string(models.KindFunction),
		FilePath:   w.filePath,
		SourceText: decl.Content(w.src),
		StartLine:  int(decl.StartPoint().Row) + 1,
		EndLine:    int(decl.EndPoint().Row) + 1,
	}
	if w.isComponent(name, fn) {
		ent.Kind = string(models.KindComponent)
		ent.Props = w.props(fn)
	}
	if body := fn.ChildByFieldName("body"); body != nil {
		ent.Children = w.collect(body, nil)
	}
	return ent, true
}

func (w *walker) method(node *sitter.Node) (models.RawMethod, bool) {
	name := w.name(node)
	if name == "" {
		return models.RawMethod{}, false
	}
	return models.RawMethod{
		Name:       name,
		Params:     w.params(node),
		ReturnType: w.returnType(node),
		Code:       node.Content(w.src),
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
	}, true
}

func (w *walker) goMethod(node *sitter.Node) (models.RawMethod, string, bool) {
	m, ok := w.method(node)
	if !ok {
		return m, "", false
	}
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return m, "", false
	}
	var typeName string
	treesitter.Walk(recv, func(n *sitter.Node) {
		if typeName == "" && n.Type() == "type_identifier" {
			typeName = n.Content(w.src)
		}
	})
	return m, typeName, typeName != ""
}

// attachReceivers moves collected Go methods onto their receiver types. A
// receiver declared in another file gets a bare class entity in this file.
func (w *walker) attachReceivers(roots []models.RawEntity) []models.RawEntity {
	index := make(map[string]int, len(roots))
	for i := range roots {
		if roots[i].Kind == string(models.KindClass) {
			index[roots[i].Name] = i
		}
	}
	for _, rm := range w.receivers {
		i, ok := index[rm.receiver]
		if !ok {
			roots = append(roots, models.RawEntity{
				Name:     rm.receiver,
				Kind:     string(models.KindClass),
				FilePath: w.filePath,
			})
			i = len(roots) - 1
			index[rm.receiver] = i
		}
		roots[i].Methods = append(roots[i].Methods, rm.method)
	}
	return roots
}

// bindings extracts functions bound to variables: `const Button = () => ...`.
func (w *walker) bindings(node *sitter.Node) []models.RawEntity {
	var out []models.RawEntity
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl == nil || decl.Type() != "variable_declarator" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value == nil || !w.g.functions[value.Type()] {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		if ent, ok := w.function(node, value, nameNode.Content(w.src)); ok {
			out = append(out, ent)
		}
	}
	return out
}

func (w *walker) name(node *sitter.Node) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(w.src)
	}
	for _, t := range w.g.nameTypes {
		if n := findChild(node, t); n != nil {
			return n.Content(w.src)
		}
	}
	return ""
}

func (w *walker) params(node *sitter.Node) []string {
	list := node.ChildByFieldName("parameters")
	if list == nil {
		list = findChild(node, "function_value_parameters")
	}
	if list == nil {
		return nil
	}
	var params []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p == nil || p.Type() == "comment" {
			continue
		}
		params = append(params, strings.TrimSpace(p.Content(w.src)))
	}
	return params
}

func (w *walker) returnType(node *sitter.Node) string {
	for _, field := range []string{"result", "return_type", "type"} {
		if n := node.ChildByFieldName(field); n != nil {
			return strings.TrimSpace(strings.TrimPrefix(n.Content(w.src), ":"))
		}
	}
	return ""
}

// isComponent reports whether a JavaScript or TypeScript function or class is
// a UI component: a capitalized name whose body renders JSX.
func (w *walker) isComponent(name string, node *sitter.Node) bool {
	if !w.g.jsx || name == "" || !unicode.IsUpper([]rune(name)[0]) {
		return false
	}
	found := false
	treesitter.Walk(node, func(n *sitter.Node) {
		switch n.Type() {
		case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
			found = true
		}
	})
	return found
}

// props reads the prop names of a component from its first parameter when it
// is destructured: `function Button({label, onClick})`.
func (w *walker) props(fn *sitter.Node) []string {
	list := fn.ChildByFieldName("parameters")
	if list == nil {
		return nil
	}
	var pattern *sitter.Node
	for i := 0; i < int(list.NamedChildCount()) && pattern == nil; i++ {
		treesitter.Walk(list.NamedChild(i), func(n *sitter.Node) {
			if pattern == nil && n.Type() == "object_pattern" {
				pattern = n
			}
		})
	}
	if pattern == nil {
		return nil
	}

	var props []string
	for i := 0; i < int(pattern.NamedChildCount()); i++ {
		p := pattern.NamedChild(i)
		switch p.Type() {
		case "shorthand_property_identifier_pattern":
			props = append(props, p.Content(w.src))
		case "pair_pattern", "object_assignment_pattern":
			key := p.ChildByFieldName("key")
			if key == nil {
				key = p.ChildByFieldName("left")
			}
			if key != nil {
				props = append(props, key.Content(w.src))
			}
		}
	}
	return props
}

func findChild(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}
