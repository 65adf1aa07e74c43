package dedup

import (
	"testing"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeduplicator(t *testing.T, p Policy) *Deduplicator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return New(p, logger)
}

func ent(name, path string, children ...models.Entity) models.Entity {
	return models.Entity{Name: name, FilePath: path, Kind: models.KindComponent, SourceCode: "<" + name + "/>", Children: children}
}

func method(name, code string) models.Entity {
	return models.Entity{Name: name, Kind: models.KindMethod, SourceCode: code}
}

func keys(forest []models.Entity) []string {
	var out []string
	models.WalkForest(forest, func(e *models.Entity) { out = append(out, e.Key()) })
	return out
}

func methodNames(e models.Entity) []string {
	var out []string
	for _, m := range e.Methods {
		out = append(out, m.Name)
	}
	return out
}

func TestDedupCollapsesRepeatedKeys(t *testing.T) {
	// App renders Header twice; Header is also reported as a root of its own.
	forest := []models.Entity{
		ent("App", "app.jsx", ent("Header", "header.jsx", ent("Logo", "logo.jsx")), ent("Header", "header.jsx")),
		ent("Header", "header.jsx", ent("Nav", "nav.jsx")),
	}

	out, stats := newDeduplicator(t, DefaultPolicy()).Dedup(forest)

	assert.Equal(t, []string{"App:app.jsx", "Header:header.jsx", "Logo:logo.jsx", "Nav:nav.jsx"}, keys(out))
	require.Len(t, out, 1)
	require.Len(t, out[0].Children, 1)
	header := out[0].Children[0]
	assert.Len(t, header.Children, 2, "children of every Header instance are unioned")
	assert.Equal(t, Stats{Input: 6, Output: 4, Merged: 2}, stats)
}

func TestDedupUnionsMethods(t *testing.T) {
	a := ent("Cart", "cart.js")
	a.Kind = models.KindClass
	a.Methods = []models.Entity{method("add", "add(){}"), method("total", "")}
	b := ent("Cart", "cart.js")
	b.Kind = models.KindClass
	b.Methods = []models.Entity{method("total", "total(){return 1}"), method("clear", "clear(){}")}

	out, _ := newDeduplicator(t, DefaultPolicy()).Dedup([]models.Entity{a, b})

	require.Len(t, out, 1)
	assert.Equal(t, []string{"add", "total", "clear"}, methodNames(out[0]))
	assert.Equal(t, "total(){return 1}", out[0].Methods[1].SourceCode)
}

func TestDedupIdempotent(t *testing.T) {
	withMethods := ent("List", "list.jsx")
	withMethods.Methods = []models.Entity{method("render", "render(){}")}
	withMethods.Props = []string{"items"}

	forest := []models.Entity{
		ent("Page", "page.jsx", withMethods, ent("Item", "item.jsx")),
		ent("List", "list.jsx", ent("Item", "item.jsx"), ent("Empty", "empty.jsx")),
		ent("Footer", "footer.jsx"),
	}

	d := newDeduplicator(t, DefaultPolicy())
	once, _ := d.Dedup(forest)
	twice, stats := d.Dedup(once)

	assert.Equal(t, once, twice)
	assert.Zero(t, stats.Merged)
}

func TestDedupBreaksKeyCycles(t *testing.T) {
	forest := []models.Entity{
		ent("A", "a.js", ent("B", "b.js", ent("A", "a.js"))),
		ent("B", "b.js", ent("A", "a.js", ent("B", "b.js"))),
		ent("Self", "self.js", ent("Self", "self.js")),
	}

	out, _ := newDeduplicator(t, DefaultPolicy()).Dedup(forest)

	assert.Equal(t, []string{"A:a.js", "B:b.js", "Self:self.js"}, keys(out))
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Children[0].Children)
	assert.Empty(t, out[1].Children)
}

func TestDedupPolicy(t *testing.T) {
	propsRich := ent("Btn", "btn.jsx")
	propsRich.Props = []string{"label", "onClick", "disabled"}
	propsRich.SourceCode = "short"

	sourceRich := ent("Btn", "btn.jsx")
	sourceRich.Props = []string{"label"}
	sourceRich.SourceCode = "a much longer body"
	sourceRich.Description = "A button"

	forest := []models.Entity{sourceRich, propsRich}

	out, _ := newDeduplicator(t, Policy{Criteria: []Criterion{ByProps}}).Dedup(forest)
	assert.Equal(t, []string{"label", "onClick", "disabled"}, out[0].Props)
	assert.Equal(t, "short", out[0].SourceCode)
	assert.Equal(t, "A button", out[0].Description, "empty fields are filled from other instances")

	out, _ = newDeduplicator(t, Policy{Criteria: []Criterion{BySource}}).Dedup(forest)
	assert.Equal(t, []string{"label", "onClick", "disabled"}, out[0].Props, "props are resolved apart from the base")
	assert.Equal(t, "a much longer body", out[0].SourceCode)
}

func TestDedupKeepsRicherDescriptionAndProps(t *testing.T) {
	methodRich := ent("Btn", "btn.jsx")
	methodRich.Methods = []models.Entity{method("click", "click(){}"), method("focus", "focus(){}")}
	methodRich.Description = "Btn"
	methodRich.Props = []string{"a"}

	described := ent("Btn", "btn.jsx")
	described.Description = "A button that submits the checkout form"
	described.Props = []string{"a", "b", "c"}

	out, _ := newDeduplicator(t, DefaultPolicy()).Dedup([]models.Entity{methodRich, described})
	require.Len(t, out, 1)
	assert.Equal(t, []string{"click", "focus"}, methodNames(out[0]))
	assert.Equal(t, "A button that submits the checkout form", out[0].Description)
	assert.Equal(t, []string{"a", "b", "c"}, out[0].Props)

	out, _ = newDeduplicator(t, DefaultPolicy()).Dedup([]models.Entity{described, methodRich})
	assert.Equal(t, "A button that submits the checkout form", out[0].Description, "independent of order")
	assert.Equal(t, []string{"a", "b", "c"}, out[0].Props)
}

func TestDedupDoesNotModifyInput(t *testing.T) {
	a := ent("A", "a.js", ent("B", "b.js"))
	a.Props = []string{"x"}
	forest := []models.Entity{a, ent("A", "a.js", ent("C", "c.js"))}

	out, _ := newDeduplicator(t, DefaultPolicy()).Dedup(forest)
	out[0].Props[0] = "changed"
	out[0].Children = append(out[0].Children, ent("D", "d.js"))

	assert.Equal(t, "x", forest[0].Props[0])
	assert.Len(t, forest[0].Children, 1)
	assert.Len(t, forest[1].Children, 1)
}

func TestDedupEmpty(t *testing.T) {
	out, stats := newDeduplicator(t, DefaultPolicy()).Dedup(nil)
	assert.Empty(t, out)
	assert.Equal(t, Stats{}, stats)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]string{"Props", " source "})
	require.NoError(t, err)
	assert.Equal(t, []Criterion{ByProps, BySource}, p.Criteria)

	p, err = ParsePolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)

	_, err = ParsePolicy([]string{"size"})
	assert.Error(t, err)
}
