package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcdoc/parser"
	"mcdoc/registry"
	"mcdoc/resolver"
)

func buildValidator(t *testing.T, schemas ...string) (*Validator, *registry.Store) {
	t.Helper()
	r := resolver.New()
	for i, src := range schemas {
		file, errs := parser.Parse(src)
		require.Nil(t, errs)
		r.AddModule(modName(i), file)
	}
	set, err := r.ResolveAll()
	require.NoError(t, err)
	store := registry.NewStore()
	return New(set, store), store
}

func modName(i int) string {
	return []string{"m0", "m1", "m2"}[i]
}

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

const recipeSchema = `dispatch minecraft:resource[test_recipe] to struct TestRecipe {
	ingredient: #[id(registry="item")] string,
	result: #[id(registry="item")] string
}`

func TestValidateSimpleRecipeValid(t *testing.T) {
	v, store := buildValidator(t, recipeSchema)
	require.NoError(t, store.Load("item", "1.20", []byte(`["minecraft:stone","minecraft:diamond"]`)))

	doc := decodeJSON(t, `{"ingredient":"minecraft:stone","result":"minecraft:diamond"}`)
	result := v.Validate(doc, "test_recipe", "")

	assert.True(t, result.IsValid, "%v", result.Errors)
	assert.Len(t, result.Dependencies, 2)
}

func TestValidateMissingRequiredField(t *testing.T) {
	v, store := buildValidator(t, recipeSchema)
	require.NoError(t, store.Load("item", "1.20", []byte(`["minecraft:stone"]`)))

	doc := decodeJSON(t, `{"ingredient":"minecraft:stone"}`)
	result := v.Validate(doc, "test_recipe", "")

	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Missing required field 'result'", result.Errors[0].Message)
	assert.Equal(t, "result", result.Errors[0].JSONPath)
}

func TestValidateUnknownRegistryEntry(t *testing.T) {
	v, store := buildValidator(t, recipeSchema)
	require.NoError(t, store.Load("item", "1.20", []byte(`["minecraft:diamond"]`)))

	doc := decodeJSON(t, `{"ingredient":"minecraft:not_a_thing","result":"minecraft:diamond"}`)
	result := v.Validate(doc, "test_recipe", "")

	require.False(t, result.IsValid)
	var found bool
	for _, e := range result.Errors {
		if e.JSONPath == "ingredient" {
			found = true
			assert.Contains(t, e.Message, "not found in registry 'item'")
		}
	}
	assert.True(t, found)
}

const unionSchema = `type U = ( string | #[since="1.16"] [int] @ 4 | )
dispatch minecraft:resource[u_holder] to struct UH { v: U }`

func TestValidateUnionVersionGating(t *testing.T) {
	v, _ := buildValidator(t, unionSchema)

	docStr := decodeJSON(t, `{"v":"x"}`)
	r1 := v.Validate(docStr, "u_holder", "1.15")
	assert.True(t, r1.IsValid)

	docArr := decodeJSON(t, `{"v":[1,2,3,4]}`)
	r2 := v.Validate(docArr, "u_holder", "1.15")
	assert.False(t, r2.IsValid, "array branch is gated out before 1.16")

	r3 := v.Validate(docArr, "u_holder", "1.20")
	assert.True(t, r3.IsValid)
}

const arraySchema = `dispatch minecraft:resource[model] to struct M { translation?: [float @ -80..80] @ 3 }`

func TestValidateArrayWithInternalConstraint(t *testing.T) {
	v, _ := buildValidator(t, arraySchema)

	ok := decodeJSON(t, `{"translation":[-80.0, 0.0, 79.5]}`)
	assert.True(t, v.Validate(ok, "model", "").IsValid)

	badElem := decodeJSON(t, `{"translation":[-81.0, 0.0, 0.0]}`)
	r := v.Validate(badElem, "model", "")
	require.False(t, r.IsValid)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "translation[0]", normalizeArrayPath(r.Errors[0].JSONPath))

	badSize := decodeJSON(t, `{"translation":[1.0,2.0]}`)
	r2 := v.Validate(badSize, "model", "")
	require.False(t, r2.IsValid)
	assert.Contains(t, r2.Errors[0].Message, "elements")
}

// normalizeArrayPath exists only to make this assertion readable: field
// paths join with '/' but array indices append directly as "[i]".
func normalizeArrayPath(p string) string {
	return p
}

const dispatchedSpreadSchema = `dispatch minecraft:resource[recipe] to struct R {
	type: #[id="recipe_serializer"] string,
	...minecraft:recipe_serializer[[type]]
}
dispatch minecraft:recipe_serializer[crafting_shaped] to struct { pattern: [string] @ 1..3 }`

func TestValidateDispatchedSpread(t *testing.T) {
	v, store := buildValidator(t, dispatchedSpreadSchema)
	require.NoError(t, store.Load("recipe_serializer", "1.20", []byte(`["minecraft:crafting_shaped"]`)))

	doc := decodeJSON(t, `{"type":"minecraft:crafting_shaped","pattern":["##","# "]}`)
	result := v.Validate(doc, "recipe", "")
	assert.True(t, result.IsValid, "%v", result.Errors)

	var found bool
	for _, d := range result.Dependencies {
		if d.Registry == "recipe_serializer" && d.ResourceLocation == "minecraft:crafting_shaped" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateDispatchedSpreadMissingRegistryEntrySkipsExpansion(t *testing.T) {
	v, store := buildValidator(t, dispatchedSpreadSchema)
	require.NoError(t, store.Load("recipe_serializer", "1.20", []byte(`[]`)))

	doc := decodeJSON(t, `{"type":"minecraft:crafting_shaped","pattern":["##","# "]}`)
	result := v.Validate(doc, "recipe", "")
	require.False(t, result.IsValid)
	var regErr bool
	for _, e := range result.Errors {
		if e.Kind == KindNotInRegistry {
			regErr = true
		}
	}
	assert.True(t, regErr)
}

func TestVersionCompareMissingComponentsDefaultToZero(t *testing.T) {
	v1 := ParseVersion("1.16")
	v2 := ParseVersion("1.16.0")
	assert.Equal(t, 0, v1.Compare(v2))
	assert.True(t, ParseVersion("1.9").Less(ParseVersion("1.10")))
}
