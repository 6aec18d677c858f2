package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcdoc/ast"
	"mcdoc/parser"
)

func mustParse(t *testing.T, src string) *ast.McDocFile {
	t.Helper()
	file, errs := parser.Parse(src)
	require.Nil(t, errs)
	return file
}

func TestResolveAllBuildsTypeIndex(t *testing.T) {
	r := New()
	r.AddModule("data/recipe", mustParse(t, `struct TestRecipe { ingredient: string }`))

	set, err := r.ResolveAll()
	require.NoError(t, err)
	_, ok := set.LookupType("data/recipe/TestRecipe")
	assert.True(t, ok)
}

func TestResolveAllBuildsDispatchIndex(t *testing.T) {
	r := New()
	r.AddModule("data/recipe", mustParse(t, `dispatch minecraft:resource[test_recipe] to struct TestRecipe { ingredient: string }`))

	set, err := r.ResolveAll()
	require.NoError(t, err)
	ty, ok := set.LookupDispatch("resource", "test_recipe")
	require.True(t, ok)
	_, isStruct := ty.(ast.StructType)
	assert.True(t, isStruct)
}

func TestResolveAllDispatchFallsBackToUnknown(t *testing.T) {
	r := New()
	r.AddModule("m", mustParse(t, `dispatch minecraft:resource[%unknown] to struct Fallback { a: string }`))
	set, err := r.ResolveAll()
	require.NoError(t, err)

	ty, ok := set.LookupDispatch("resource", "anything_else")
	require.True(t, ok)
	st := ty.(ast.StructType)
	require.Len(t, st.Members, 1)
}

func TestResolveAllOrderIsTopological(t *testing.T) {
	r := New()
	r.AddModule("a", mustParse(t, `use ::b::Thing
struct A { x: string }`))
	r.AddModule("b", mustParse(t, `struct Thing { y: string }`))

	set, err := r.ResolveAll()
	require.NoError(t, err)
	assert.Contains(t, set.ResolutionOrder, "a")
	assert.Contains(t, set.ResolutionOrder, "b")

	var bIdx, aIdx int
	for i, m := range set.ResolutionOrder {
		if m == "b" {
			bIdx = i
		}
		if m == "a" {
			aIdx = i
		}
	}
	assert.Less(t, bIdx, aIdx, "b must resolve before a, which imports it")
}

func TestResolveAllDetectsMissingModule(t *testing.T) {
	r := New()
	r.AddModule("a", mustParse(t, `use ::missing::Thing
struct A { x: string }`))

	set, err := r.ResolveAll()
	require.NoError(t, err)
	require.Len(t, set.ModuleErrors, 1)
	assert.Equal(t, "missing", set.ModuleErrors[0].Module)
	assert.Equal(t, "a", set.ModuleErrors[0].From)

	// the importer itself is blocked and does not contribute to TypeIndex
	assert.NotContains(t, set.ResolutionOrder, "a")
	_, ok := set.LookupType("a/A")
	assert.False(t, ok)
}

func TestResolveAllOnlyBlocksAffectedImporterAndDependents(t *testing.T) {
	r := New()
	r.AddModule("a", mustParse(t, `use ::missing::Thing
struct A { x: string }`))
	r.AddModule("b", mustParse(t, `use ::a::A
struct B { y: string }`))
	r.AddModule("c", mustParse(t, `struct C { z: string }`))

	set, err := r.ResolveAll()
	require.NoError(t, err)
	require.Len(t, set.ModuleErrors, 1)

	// a is directly blocked, b transitively blocked (it imports a)
	assert.NotContains(t, set.ResolutionOrder, "a")
	assert.NotContains(t, set.ResolutionOrder, "b")
	_, bOk := set.LookupType("b/B")
	assert.False(t, bOk)

	// c does not depend on the broken module and still resolves
	assert.Contains(t, set.ResolutionOrder, "c")
	_, cOk := set.LookupType("c/C")
	assert.True(t, cOk)
}

func TestResolveAllDetectsCircularDependency(t *testing.T) {
	r := New()
	r.AddModule("a", mustParse(t, `use ::b::Thing
struct A { x: string }`))
	r.AddModule("b", mustParse(t, `use ::a::A
struct Thing { y: string }`))

	_, err := r.ResolveAll()
	require.Error(t, err)
	var cyclic *ErrCircularDependency
	require.ErrorAs(t, err, &cyclic)
	assert.GreaterOrEqual(t, len(cyclic.Cycle), 2)
}

func TestExpandSpreadResolvesViaDispatchIndex(t *testing.T) {
	r := New()
	r.AddModule("m", mustParse(t, `dispatch minecraft:recipe_serializer[crafting_shaped] to struct { pattern: [string] @ 1..3 }`))
	set, err := r.ResolveAll()
	require.NoError(t, err)

	ty, ok := set.ExpandSpread("minecraft", "recipe_serializer", "crafting_shaped")
	require.True(t, ok)
	_, isStruct := ty.(ast.StructType)
	assert.True(t, isStruct)

	// idempotent: expanding again yields an equivalent type
	ty2, ok2 := set.ExpandSpread("minecraft", "recipe_serializer", "crafting_shaped")
	require.True(t, ok2)
	assert.Equal(t, ty, ty2)
}
