package fingerprint

import (
	"context"
	"testing"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line comment", "a := 1 // set a\nb := 2", "a := 1 b := 2"},
		{"block comment", "x /* hidden\nstill */ + y", "x + y"},
		{"whitespace runs", "  return\t\ta  +\n\n b  ", "return a + b"},
		{"comment markers in strings", `s := "// not a comment" + '/* nor */'`, `s := "// not a comment" + '/* nor */'`},
		{"unterminated block", "a /* open", "a"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizePythonComments(t *testing.T) {
	code := "def f(x):\n    # double it\n    return x * 2  # done"
	assert.Equal(t, "def f(x): return x * 2", NormalizeLanguage(code, "python"))
	assert.Equal(t, "a = '#not'", NormalizeLanguage("a = '#not'  # trailing", "python"))
}

func TestHashStableAndNormalized(t *testing.T) {
	code := "function add(a,b){return a+b} // sum"
	h1 := Hash(code)
	h2 := Hash(code)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)

	assert.Equal(t, Hash(code), Hash("function   add(a,b){return a+b}"))
	assert.Equal(t, Hash(Normalize(code)), Hash(code))
	assert.NotEqual(t, Hash(code), Hash("function add(a,b){return a-b}"))
}

func TestTokenizeCollapsesIdentifiersAndLiterals(t *testing.T) {
	a := Tokenize(`function greet(name){return "hi " + name + 1}`)
	b := Tokenize(`function hello(who){return 'yo ' + who + 42}`)
	assert.Equal(t, a, b)

	assert.Equal(t, 1, a["function"])
	assert.Equal(t, 1, a["return"])
	assert.Equal(t, 3, a[TokenIdentifier])
	assert.Equal(t, 1, a[TokenString])
	assert.Equal(t, 1, a[TokenNumber])
	assert.Equal(t, 2, a["+"])
}

func TestTokenizeOperatorsGreedy(t *testing.T) {
	toks := Tokenize("a === b && c >>= 2")
	assert.Equal(t, 1, toks["==="])
	assert.Equal(t, 1, toks["&&"])
	assert.Equal(t, 1, toks[">>="])
	assert.Zero(t, toks["="])
}

func TestKeywordSkeleton(t *testing.T) {
	assert.Equal(t, []string{MarkFunction, MarkReturn}, KeywordSkeleton("function add(a,b){return a+b}"))
	assert.Equal(t, []string{MarkFunction, MarkCall}, KeywordSkeleton("function log(x){console.log(x)}"))
	assert.Equal(t,
		[]string{MarkFunction, MarkVar, MarkFor, MarkIf, MarkCall, MarkReturn},
		KeywordSkeleton("def f(xs):\n  let t = 0\n  for x in xs:\n    if ok(x): pass\n  return t"),
	)
}

func TestTreeSkeleton(t *testing.T) {
	ctx := context.Background()

	add := Skeleton(ctx, "function add(a,b){return a+b}", "javascript")
	sum := Skeleton(ctx, "function sum(x,y){return x+y}", "javascript")
	assert.Equal(t, []string{MarkFunction, MarkReturn}, add)
	assert.Equal(t, add, sum)

	logFn := Skeleton(ctx, "function log(x){console.log(x)}", "javascript")
	assert.Equal(t, []string{MarkFunction, MarkCall}, logFn)

	goCode := "package p\nfunc f(xs []int) int {\n\tt := 0\n\tfor _, x := range xs {\n\t\tif x > 0 {\n\t\t\tt += x\n\t\t}\n\t}\n\treturn t\n}\n"
	assert.Equal(t, []string{MarkFunction, MarkVar, MarkFor, MarkIf, MarkReturn}, Skeleton(ctx, goCode, "go"))
}

func TestSkeletonFallsBackForUnknownLanguage(t *testing.T) {
	got := Skeleton(context.Background(), "function add(a,b){return a+b}", "cobol")
	assert.Equal(t, KeywordSkeleton("function add(a,b){return a+b}"), got)
}

func TestBlocks(t *testing.T) {
	logger, _ := test.NewNullLogger()
	fp := New(logger)

	forest := []models.Entity{
		{
			Name: "Cart", FilePath: "cart.js", Kind: models.KindClass,
			SourceCode: "class Cart { total() { return 1 } }",
			Methods: []models.Entity{
				{Name: "total", Kind: models.KindMethod, SourceCode: "total() { return 1 }", StartLine: 3, EndLine: 5},
				{Name: "empty", Kind: models.KindMethod, SourceCode: "  "},
			},
			Children: []models.Entity{
				{Name: "helper", FilePath: "cart.js", Kind: models.KindFunction, SourceCode: "function helper(){}"},
			},
		},
		{Name: "Blank", FilePath: "blank.js", Kind: models.KindFunction},
	}

	blocks := fp.Blocks(context.Background(), forest)
	require.Len(t, blocks, 3)

	assert.Equal(t, "Cart:cart.js", blocks[0].EntityID)
	assert.Empty(t, blocks[0].MethodName)

	assert.Equal(t, "total", blocks[1].MethodName)
	assert.Equal(t, "Cart:cart.js#total", blocks[1].ID())
	assert.Equal(t, 3, blocks[1].StartLine)
	assert.Equal(t, Hash("total() { return 1 }"), blocks[1].Hash)
	assert.NotEmpty(t, blocks[1].Skeleton)

	assert.Equal(t, "helper:cart.js", blocks[2].EntityID)
}
