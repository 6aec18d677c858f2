package collate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcdoc/parser"
	"mcdoc/registry"
	"mcdoc/resolver"
	"mcdoc/validate"
)

const recipeSchema = `dispatch minecraft:resource[test_recipe] to struct TestRecipe {
	ingredient: #[id(registry="item")] string,
	result: #[id(registry="item")] string
}`

func buildCollator(t *testing.T) *DocumentCollator {
	t.Helper()
	file, errs := parser.Parse(recipeSchema)
	require.Nil(t, errs)

	r := resolver.New()
	r.AddModule("m0", file)
	set, err := r.ResolveAll()
	require.NoError(t, err)

	store := registry.NewStore()
	require.NoError(t, store.Load("item", "1.20", []byte(`["minecraft:stone","minecraft:diamond"]`)))

	c := New(validate.New(set, store))
	c.DefaultType = "test_recipe"
	return c
}

func TestAnalyzeAggregatesValidAndInvalid(t *testing.T) {
	c := buildCollator(t)
	files := map[string][]byte{
		"data/minecraft/test_recipe/a.json": []byte(`{"ingredient":"minecraft:stone","result":"minecraft:diamond"}`),
		"data/minecraft/test_recipe/b.json": []byte(`{"ingredient":"minecraft:stone"}`),
	}

	out, err := c.Analyze(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 2, out.TotalFiles)
	assert.Equal(t, 1, out.ValidFiles)
	assert.Len(t, out.Errors, 1)
	assert.Equal(t, "data/minecraft/test_recipe/b.json", out.Errors[0].Path)
	assert.ElementsMatch(t, []string{"minecraft:stone", "minecraft:diamond"}, out.Dependencies["item"])
}

func TestAnalyzeInvalidJSONReportsFileLevelError(t *testing.T) {
	c := buildCollator(t)
	files := map[string][]byte{
		"data/minecraft/test_recipe/bad.json": []byte(`{not json`),
	}

	out, err := c.Analyze(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 0, out.ValidFiles)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0].Error.Message, "invalid JSON")
}

func TestAnalyzeConcurrentMatchesSerial(t *testing.T) {
	c := buildCollator(t)
	c.Concurrency = 4
	files := map[string][]byte{
		"data/minecraft/test_recipe/a.json": []byte(`{"ingredient":"minecraft:stone","result":"minecraft:diamond"}`),
		"data/minecraft/test_recipe/b.json": []byte(`{"ingredient":"minecraft:stone","result":"minecraft:diamond"}`),
		"data/minecraft/test_recipe/c.json": []byte(`{"ingredient":"minecraft:stone"}`),
	}

	out, err := c.Analyze(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalFiles)
	assert.Equal(t, 2, out.ValidFiles)
}

func TestDefaultPathTypeResolver(t *testing.T) {
	kind, ok := DefaultPathTypeResolver("data/minecraft/recipe/diamond_sword.json")
	require.True(t, ok)
	assert.Equal(t, "recipe", kind)

	_, ok = DefaultPathTypeResolver("not_a_datapack_path.json")
	assert.False(t, ok)
}
