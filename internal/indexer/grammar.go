package indexer

import sitter "github.com/smacker/go-tree-sitter"

// grammar lists the node types that declare entities in one tree-sitter
// grammar.
type grammar struct {
	classes   map[string]bool
	functions map[string]bool
	// bindings are declarations whose declarators may bind a function.
	bindings map[string]bool
	// receiverMethod is the Go method declaration node type.
	receiverMethod string
	// nameTypes are tried in order when a node has no "name" field.
	nameTypes []string
	jsx       bool
}

func set(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

var jsGrammar = &grammar{
	classes:   set("class_declaration", "abstract_class_declaration", "interface_declaration"),
	functions: set("function_declaration", "generator_function_declaration", "method_definition", "arrow_function", "function_expression", "function"),
	bindings:  set("lexical_declaration", "variable_declaration"),
	jsx:       true,
}

var grammars = map[string]*grammar{
	"go": {
		classes:        set("type_spec"),
		functions:      set("function_declaration"),
		receiverMethod: "method_declaration",
	},
	"python": {
		classes:   set("class_definition"),
		functions: set("function_definition"),
	},
	"javascript": jsGrammar,
	"typescript": jsGrammar,
	"tsx":        jsGrammar,
	"java": {
		classes:   set("class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
		functions: set("method_declaration", "constructor_declaration"),
	},
	"kotlin": {
		classes:   set("class_declaration", "object_declaration"),
		functions: set("function_declaration"),
		nameTypes: []string{"simple_identifier", "type_identifier"},
	},
}

// isClass reports whether node declares a class-like entity. Go type specs
// count only when they declare a struct or interface.
func (g *grammar) isClass(node *sitter.Node) bool {
	if !g.classes[node.Type()] {
		return false
	}
	if node.Type() != "type_spec" {
		return true
	}
	t := node.ChildByFieldName("type")
	return t != nil && (t.Type() == "struct_type" || t.Type() == "interface_type")
}
