// Package validate walks a JSON document against a resolved MCDOC schema,
// accumulating errors and registry dependencies.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mcdoc/ast"
	"mcdoc/registry"
	"mcdoc/resolver"
)

// ErrorKind is the flat, closed set of validation failure categories.
type ErrorKind string

const (
	KindMissingField      ErrorKind = "MissingField"
	KindTypeMismatch      ErrorKind = "TypeMismatch"
	KindConstraintFailed  ErrorKind = "ConstraintFailed"
	KindUnionMismatch     ErrorKind = "UnionMismatch"
	KindUnknownRegistry   ErrorKind = "UnknownRegistry"
	KindNotInRegistry     ErrorKind = "NotInRegistry"
	KindUnresolvedSchema  ErrorKind = "UnresolvedSchema"
	KindUnresolvedType    ErrorKind = "UnresolvedType"
	KindInvalidResourceId ErrorKind = "InvalidResourceId"
)

// Error is one validation diagnostic.
type Error struct {
	File     string
	JSONPath string
	Message  string
	Kind     ErrorKind
	Pos      *ast.Pos
	// Detail holds the concatenated per-branch messages of a failed
	// union, populated always but surfaced only by verbose callers.
	Detail []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.JSONPath, e.Message)
}

// Result is the outcome of validating one document.
type Result struct {
	IsValid      bool
	Errors       []*Error
	Dependencies []registry.Dep
}

// Validator type-checks JSON values against a ResolvedModuleSet, cross-
// referencing a registry.Store for `#[id]`-annotated string fields.
type Validator struct {
	Resolved   *resolver.ResolvedModuleSet
	Registries *registry.Store
}

func New(resolved *resolver.ResolvedModuleSet, registries *registry.Store) *Validator {
	return &Validator{Resolved: resolved, Registries: registries}
}

// accum is the per-call mutable state the validator owns; it is never
// shared across calls or goroutines.
type accum struct {
	version *Version
	errors  []*Error
	deps    []registry.Dep
}

func (a *accum) clone() *accum {
	return &accum{version: a.version}
}

func (a *accum) addError(path string, kind ErrorKind, msg string) {
	a.errors = append(a.errors, &Error{JSONPath: path, Message: msg, Kind: kind})
}

// Validate resolves resourceType through the "resource" dispatch and
// recursively checks value against it, then cross-checks every collected
// dependency against the loaded registries.
func (v *Validator) Validate(value any, resourceType string, version string) Result {
	a := &accum{}
	if version != "" {
		ver := ParseVersion(version)
		a.version = &ver
	}

	rootTy, ok := v.Resolved.LookupDispatch("resource", resourceType)
	if !ok {
		a.addError("", KindUnresolvedSchema, fmt.Sprintf("No MCDOC schema found for resource type %s", resourceType))
	} else {
		v.walk(value, rootTy, "", a)
	}

	for _, dep := range registry.Scan(value, nil) {
		if !containsDep(a.deps, dep) {
			a.deps = append(a.deps, dep)
		}
	}

	v.crossCheckDependencies(a)

	return Result{IsValid: len(a.errors) == 0, Errors: a.errors, Dependencies: a.deps}
}

func containsDep(deps []registry.Dep, d registry.Dep) bool {
	for _, existing := range deps {
		if existing.JSONPath == d.JSONPath && existing.ResourceLocation == d.ResourceLocation {
			return true
		}
	}
	return false
}

func (v *Validator) crossCheckDependencies(a *accum) {
	for _, dep := range a.deps {
		if dep.Registry == "unknown" || dep.Registry == "" {
			continue
		}
		ok, err := v.Registries.Validate(dep.Registry, dep.ResourceLocation, dep.IsTag, "")
		if err != nil {
			a.addError(dep.JSONPath, KindUnknownRegistry, err.Error())
			continue
		}
		if !ok {
			a.addError(dep.JSONPath, KindNotInRegistry,
				fmt.Sprintf("%s not found in registry '%s'", dep.ResourceLocation, dep.Registry))
		}
	}
}

// Scan exposes registry.Scan directly, per the external interface's
// `Validator.scan(json, path->registry map)` operation.
func (v *Validator) Scan(value any, pathToRegistry registry.PathMapping) []registry.Dep {
	return registry.Scan(value, pathToRegistry)
}

func (v *Validator) walk(value any, ty ast.TypeExpr, path string, a *accum) {
	switch t := ty.(type) {
	case ast.SimpleType:
		v.walkSimple(value, t, path, a)
	case ast.LiteralType:
		v.walkLiteral(value, t, path, a)
	case ast.ConstrainedType:
		v.walk(value, t.Base, path, a)
		checkRange(value, t.Range, path, a)
	case ast.ArrayType:
		v.walkArray(value, t, path, a)
	case ast.StructType:
		v.walkStruct(value, t.Members, path, a)
	case ast.UnionType:
		v.walkUnion(value, t.Variants, path, a)
	case ast.ReferenceType:
		v.walkReferenceOrName(value, importPathName(t.Path), path, a)
	case ast.GenericType:
		v.walkReferenceOrName(value, t.Name, path, a)
	case ast.SpreadType:
		v.walkSpread(value, t.Namespace, t.Registry, t.DynamicKey, path, a)
	default:
		a.addError(path, KindTypeMismatch, fmt.Sprintf("unsupported type expression %T", ty))
	}
}

func importPathName(p ast.ImportPath) string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

func (v *Validator) walkReferenceOrName(value any, name string, path string, a *accum) {
	if ty, ok := v.Resolved.LookupTypeByName(name); ok {
		v.walk(value, ty, path, a)
		return
	}
	v.walkSimple(value, ast.SimpleType{Name: name}, path, a)
}

func (v *Validator) walkSimple(value any, t ast.SimpleType, path string, a *accum) {
	switch t.Name {
	case "string":
		if _, ok := value.(string); !ok {
			a.addError(path, KindTypeMismatch, "expected a string")
		}
	case "int", "integer":
		n, ok := value.(float64)
		if !ok {
			a.addError(path, KindTypeMismatch, "expected an integer")
			return
		}
		if n != math.Trunc(n) {
			a.addError(path, KindTypeMismatch, "expected an integer, got a fractional number")
		}
	case "float", "number":
		if _, ok := value.(float64); !ok {
			a.addError(path, KindTypeMismatch, "expected a number")
		}
	case "boolean", "bool":
		if _, ok := value.(bool); !ok {
			a.addError(path, KindTypeMismatch, "expected a boolean")
		}
	case "null":
		if value != nil {
			a.addError(path, KindTypeMismatch, "expected null")
		}
	default:
		if ty, ok := v.Resolved.LookupTypeByName(t.Name); ok {
			v.walk(value, ty, path, a)
			return
		}
		if !isAlphanumericIdent(t.Name) {
			a.addError(path, KindUnresolvedType, fmt.Sprintf("unknown type %q", t.Name))
		}
		// else: accepted as an external type the schema set doesn't define.
	}
}

func isAlphanumericIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func (v *Validator) walkLiteral(value any, t ast.LiteralType, path string, a *accum) {
	if !literalEquals(t.Value, value) {
		a.addError(path, KindTypeMismatch, fmt.Sprintf("expected literal %s", literalString(t.Value)))
	}
}

func literalEquals(lit ast.Literal, value any) bool {
	switch l := lit.(type) {
	case ast.StringLiteral:
		s, ok := value.(string)
		return ok && s == l.Value
	case ast.NumberLiteral:
		n, ok := value.(float64)
		return ok && n == l.Value
	case ast.BoolLiteral:
		b, ok := value.(bool)
		return ok && b == l.Value
	default:
		return false
	}
}

func literalString(lit ast.Literal) string {
	switch l := lit.(type) {
	case ast.StringLiteral:
		return strconv.Quote(l.Value)
	case ast.NumberLiteral:
		return strconv.FormatFloat(l.Value, 'g', -1, 64)
	case ast.BoolLiteral:
		return strconv.FormatBool(l.Value)
	default:
		return "?"
	}
}

func checkRange(value any, r ast.RangeConstraint, path string, a *accum) {
	n, ok := value.(float64)
	if !ok {
		return // constraint on a non-numeric value is unchecked
	}
	if r.Min != nil && n < *r.Min {
		a.addError(path, KindConstraintFailed, fmt.Sprintf("%g is below the minimum of %g", n, *r.Min))
	}
	if r.Max != nil && n > *r.Max {
		a.addError(path, KindConstraintFailed, fmt.Sprintf("%g is above the maximum of %g", n, *r.Max))
	}
}

func (v *Validator) walkArray(value any, t ast.ArrayType, path string, a *accum) {
	arr, ok := value.([]any)
	if !ok {
		a.addError(path, KindTypeMismatch, "expected an array")
		return
	}
	if t.Constraint != nil {
		n := float64(len(arr))
		if t.Constraint.Min != nil && n < *t.Constraint.Min {
			a.addError(path, KindConstraintFailed, fmt.Sprintf("array has %d elements, minimum is %g", len(arr), *t.Constraint.Min))
		}
		if t.Constraint.Max != nil && n > *t.Constraint.Max {
			a.addError(path, KindConstraintFailed, fmt.Sprintf("array has %d elements, maximum is %g", len(arr), *t.Constraint.Max))
		}
	}
	for i, elem := range arr {
		v.walk(elem, t.Elem, fmt.Sprintf("%s[%d]", path, i), a)
	}
}

func (v *Validator) walkUnion(value any, variants []ast.TypeExpr, path string, a *accum) {
	var details []string
	for _, variant := range variants {
		trial := a.clone()
		v.walk(value, variant, path, trial)
		if len(trial.errors) == 0 {
			a.deps = append(a.deps, trial.deps...)
			return
		}
		for _, e := range trial.errors {
			details = append(details, e.Error())
		}
	}
	a.errors = append(a.errors, &Error{
		JSONPath: path,
		Message:  "JSON does not match any of the expected types",
		Kind:     KindUnionMismatch,
		Detail:   details,
	})
}

func (v *Validator) walkStruct(value any, members []ast.Member, path string, a *accum) {
	obj, ok := value.(map[string]any)
	if !ok {
		a.addError(path, KindTypeMismatch, "expected an object")
		return
	}
	for _, m := range members {
		switch member := m.(type) {
		case *ast.FieldMember:
			v.walkFieldMember(obj, member, path, a)
		case *ast.DynamicFieldMember:
			v.walkDynamicFieldMember(obj, member, path, a)
		case *ast.SpreadMember:
			v.walkSpreadMember(obj, member, path, a)
		}
	}
}

func fieldPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

func (v *Validator) walkFieldMember(obj map[string]any, m *ast.FieldMember, path string, a *accum) {
	if !v.fieldApplies(m.Annotations, a) {
		return
	}
	fp := fieldPath(path, m.Name)
	val, present := obj[m.Name]
	if !present {
		if !m.Optional {
			a.addError(fp, KindMissingField, fmt.Sprintf("Missing required field '%s'", m.Name))
		}
		return
	}

	if ann, ok := ast.LookupAnnotation(m.Annotations, "id"); ok {
		if s, ok := val.(string); ok {
			v.emitIDDependency(ann, s, fp, a)
		}
	}

	v.walk(val, m.Type, fp, a)
}

// emitIDDependency records a dependency for a `#[id(...)]`/`#[id=...]`
// annotated string field.
func (v *Validator) emitIDDependency(ann ast.Annotation, value, path string, a *accum) {
	registryName := ""
	switch d := ann.Data.(type) {
	case ast.SimpleAnnotation:
		registryName = d.Value
	case ast.ComplexAnnotation:
		if r, ok := d.Params["registry"]; ok {
			registryName = r.Str
		}
	}
	if registryName == "" {
		return
	}
	isTag := strings.HasPrefix(value, "#")
	loc := value
	a.deps = append(a.deps, registry.Dep{
		Registry:         registryName,
		ResourceLocation: loc,
		JSONPath:         path,
		IsTag:            isTag,
	})
}

// fieldApplies applies §4.5's version-gating semantics for #[since]/#[until].
func (v *Validator) fieldApplies(anns []ast.Annotation, a *accum) bool {
	if a.version == nil {
		return true
	}
	if since, ok := ast.LookupAnnotation(anns, "since"); ok {
		if s, ok := since.Data.(ast.SimpleAnnotation); ok {
			if a.version.Less(ParseVersion(s.Value)) {
				return false
			}
		}
	}
	if until, ok := ast.LookupAnnotation(anns, "until"); ok {
		if s, ok := until.Data.(ast.SimpleAnnotation); ok {
			if a.version.AtLeast(ParseVersion(s.Value)) {
				return false
			}
		}
	}
	return true
}

// walkDynamicFieldMember validates every value in obj against ValueType.
// Per §4.5, key validation only happens when KeyType is exactly
// Simple("string") — since every JSON object key already is a string,
// there is nothing further to check; richer key constraints are accepted
// but unchecked. Per §9's open question, a key carrying an #[id] annotation
// does emit a dependency for each key string.
func (v *Validator) walkDynamicFieldMember(obj map[string]any, m *ast.DynamicFieldMember, path string, a *accum) {
	for k, val := range obj {
		v.walk(val, m.ValueType, fieldPath(path, k), a)
	}

	if ann, ok := ast.LookupAnnotation(m.KeyAnnotations, "id"); ok {
		for k := range obj {
			v.emitIDDependency(ann, k, fieldPath(path, k), a)
		}
	}
}

func (v *Validator) walkSpreadMember(obj map[string]any, m *ast.SpreadMember, path string, a *accum) {
	if m.InlineStruct != nil {
		v.walkStruct(obj, m.InlineStruct.Members, path, a)
		return
	}
	if m.DynamicKey == nil {
		return
	}
	raw, present := obj[m.DynamicKey.Name]
	if !present {
		return
	}
	discriminator, ok := raw.(string)
	if !ok {
		return
	}
	ty, ok := v.Resolved.ExpandSpread(m.Namespace, m.Registry, discriminator)
	if !ok {
		return
	}
	if st, ok := ty.(ast.StructType); ok {
		v.walkStruct(obj, st.Members, path, a)
		return
	}
	v.walk(obj, ty, path, a)
}

func (v *Validator) walkSpread(value any, namespace, registryName string, dyn *ast.DynRef, path string, a *accum) {
	if dyn == nil {
		return
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return
	}
	raw, present := obj[dyn.Name]
	if !present {
		return
	}
	discriminator, ok := raw.(string)
	if !ok {
		return
	}
	ty, ok := v.Resolved.ExpandSpread(namespace, registryName, discriminator)
	if !ok {
		return
	}
	v.walk(value, ty, path, a)
}
