package duplicates

import (
	"testing"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachSymmetric(t *testing.T) {
	forest := []models.Entity{
		{Name: "App", FilePath: "App.js", Kind: models.KindComponent, Children: []models.Entity{
			{Name: "Cart", FilePath: "Cart.js", Kind: models.KindClass},
		}},
		{Name: "Basket", FilePath: "Basket.js", Kind: models.KindClass},
	}
	cart := block("Cart", "total", "total(){return 1}")
	basket := block("Basket", "", "function sum(){return 1}")
	app := block("App", "", "function App(){}")

	matches := Merge([]Match{
		newMatch(&cart, &basket, 0.97, models.SignalStructural),
		newMatch(&app, &basket, 0.8, models.SignalSemantic),
	})

	out := Attach(forest, matches)

	cartWarnings := out[0].Children[0].SimilarityWarnings
	require.Len(t, cartWarnings, 1)
	assert.Equal(t, "Basket:Basket.js", cartWarnings[0].SimilarToID)
	assert.Equal(t, "total", cartWarnings[0].MethodName)
	assert.Equal(t, "Basket.js", cartWarnings[0].FilePath)
	assert.Equal(t, models.ClassExactDuplicate, cartWarnings[0].Classification)

	basketWarnings := out[1].SimilarityWarnings
	require.Len(t, basketWarnings, 2)
	assert.Equal(t, "Cart:Cart.js#total", basketWarnings[0].SimilarToID)
	assert.Empty(t, basketWarnings[0].MethodName)
	assert.Equal(t, "App:App.js", basketWarnings[1].SimilarToID)

	assert.Len(t, out[0].SimilarityWarnings, 1)
	assert.Equal(t, 4, Warnings(out))

	assert.Empty(t, forest[1].SimilarityWarnings, "input forest is not modified")
	assert.Empty(t, forest[0].Children[0].SimilarityWarnings)
}

func TestAttachNeverPointsAtOwnBlocks(t *testing.T) {
	forest := []models.Entity{{Name: "Cart", FilePath: "Cart.js", Kind: models.KindClass}}
	blocks := []models.CodeBlock{
		block("Cart", "", "function f(a){return a}"),
		block("Cart", "f", "function f(a){return a}"),
	}
	matches := Merge(newDetector(t, DefaultConfig()).Structural(blocks))
	out := Attach(forest, matches)

	for _, w := range out[0].SimilarityWarnings {
		assert.NotContains(t, []string{"Cart:Cart.js", "Cart:Cart.js#f"}, w.SimilarToID)
	}
	assert.Empty(t, out[0].SimilarityWarnings)
}
