package fingerprint

import (
	"context"

	"github.com/dpolishuk/codesense/pkg/treesitter"
	sitter "github.com/smacker/go-tree-sitter"
)

// Structural markers.
const (
	MarkIf       = "IF"
	MarkFor      = "FOR"
	MarkWhile    = "WHILE"
	MarkSwitch   = "SWITCH"
	MarkTry      = "TRY"
	MarkCatch    = "CATCH"
	MarkFunction = "FUNCTION"
	MarkClass    = "CLASS"
	MarkCall     = "CALL"
	MarkReturn   = "RETURN"
	MarkVar      = "VAR"
	MarkThrow    = "THROW"
	MarkAwait    = "AWAIT"
)

// nodeMarkers maps tree-sitter node types of all supported grammars onto
// markers. Unlisted node types carry no structural meaning.
var nodeMarkers = map[string]string{
	"if_statement":  MarkIf,
	"if_expression": MarkIf,
	"elif_clause":   MarkIf,

	"for_statement":          MarkFor,
	"for_in_statement":       MarkFor,
	"enhanced_for_statement": MarkFor,

	"while_statement":    MarkWhile,
	"do_statement":       MarkWhile,
	"do_while_statement": MarkWhile,

	"switch_statement":            MarkSwitch,
	"switch_expression":           MarkSwitch,
	"expression_switch_statement": MarkSwitch,
	"type_switch_statement":       MarkSwitch,
	"match_statement":             MarkSwitch,
	"when_expression":             MarkSwitch,

	"try_statement":  MarkTry,
	"try_expression": MarkTry,
	"catch_clause":   MarkCatch,
	"except_clause":  MarkCatch,

	"function_declaration":           MarkFunction,
	"function_definition":            MarkFunction,
	"function_expression":            MarkFunction,
	"function":                       MarkFunction,
	"generator_function_declaration": MarkFunction,
	"arrow_function":                 MarkFunction,
	"method_definition":              MarkFunction,
	"method_declaration":             MarkFunction,
	"constructor_declaration":        MarkFunction,
	"func_literal":                   MarkFunction,
	"lambda":                         MarkFunction,
	"lambda_expression":              MarkFunction,
	"anonymous_function":             MarkFunction,

	"class_declaration":     MarkClass,
	"class_definition":      MarkClass,
	"interface_declaration": MarkClass,

	"call_expression":            MarkCall,
	"call":                       MarkCall,
	"method_invocation":          MarkCall,
	"new_expression":             MarkCall,
	"object_creation_expression": MarkCall,

	"return_statement": MarkReturn,

	"variable_declaration":       MarkVar,
	"lexical_declaration":        MarkVar,
	"var_declaration":            MarkVar,
	"short_var_declaration":      MarkVar,
	"const_declaration":          MarkVar,
	"local_variable_declaration": MarkVar,
	"property_declaration":       MarkVar,
	"assignment":                 MarkVar,

	"throw_statement": MarkThrow,
	"raise_statement": MarkThrow,

	"await_expression": MarkAwait,
	"await":            MarkAwait,
}

var keywordMarkers = map[string]string{
	"if":       MarkIf,
	"elif":     MarkIf,
	"for":      MarkFor,
	"while":    MarkWhile,
	"do":       MarkWhile,
	"switch":   MarkSwitch,
	"when":     MarkSwitch,
	"try":      MarkTry,
	"catch":    MarkCatch,
	"except":   MarkCatch,
	"function": MarkFunction,
	"func":     MarkFunction,
	"def":      MarkFunction,
	"fun":      MarkFunction,
	"lambda":   MarkFunction,
	"=>":       MarkFunction,
	"class":    MarkClass,
	"return":   MarkReturn,
	"var":      MarkVar,
	"let":      MarkVar,
	"const":    MarkVar,
	"val":      MarkVar,
	":=":       MarkVar,
	"throw":    MarkThrow,
	"raise":    MarkThrow,
	"await":    MarkAwait,
}

// declaring keywords are followed by a name that is not a call.
var declaringKeywords = map[string]bool{
	"function": true, "func": true, "def": true, "fun": true, "class": true,
}

// Skeleton derives the ordered marker sequence of code. When language has a
// tree-sitter grammar the syntax tree is walked; otherwise, or when parsing
// fails, keywords are scanned instead.
func Skeleton(ctx context.Context, code, language string) []string {
	if treesitter.Supported(language) {
		if marks, err := treeSkeleton(ctx, code, language); err == nil {
			return marks
		}
	}
	return KeywordSkeleton(code)
}

func treeSkeleton(ctx context.Context, code, language string) ([]string, error) {
	parser := treesitter.NewParser()
	defer parser.Close()

	tree, err := parser.Parse(ctx, []byte(code), language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	marks := []string{}
	treesitter.Walk(tree.RootNode(), func(n *sitter.Node) {
		if m, ok := nodeMarkers[n.Type()]; ok {
			marks = append(marks, m)
		}
	})
	return marks, nil
}

// KeywordSkeleton is the tree-less fallback: keywords map to markers and an
// identifier followed by "(" counts as a call unless it is being declared.
func KeywordSkeleton(code string) []string {
	toks := lex(Normalize(code))
	marks := []string{}
	for i, tok := range toks {
		switch tok.kind {
		case tokKeyword, tokOperator:
			if m, ok := keywordMarkers[tok.text]; ok {
				marks = append(marks, m)
			}
		case tokIdent:
			if i+1 < len(toks) && toks[i+1].text == "(" {
				if i > 0 && declaringKeywords[toks[i-1].text] {
					continue
				}
				marks = append(marks, MarkCall)
			}
		}
	}
	return marks
}
