// Package resolver links parsed MCDOC files into a ResolvedModuleSet:
// cross-module imports are ordered topologically, every named declaration
// is indexed by qualified name, and every dispatch is indexed by
// (registry, key) for the validator to query.
package resolver

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"mcdoc/ast"
)

// ErrModuleNotFound is returned when an import cannot be resolved to a
// loaded module.
type ErrModuleNotFound struct {
	Module string
	From   string
}

func (e *ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module %q not found (imported from %q)", e.Module, e.From)
}

// ErrCircularDependency is returned when the module graph contains a
// cycle. Cycle lists module paths starting and ending on the same node.
type ErrCircularDependency struct {
	Cycle []string
}

func (e *ErrCircularDependency) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

// ErrDispatchCollision is recorded, not returned, when a later dispatch
// declaration overwrites an earlier one targeting the same (registry,
// key): the later one wins, per §4.3 point 5.
type ErrDispatchCollision struct {
	Registry string
	Key      string
	Unknown  bool
}

func (e *ErrDispatchCollision) Error() string {
	key := e.Key
	if e.Unknown {
		key = "%unknown"
	}
	return fmt.Sprintf("dispatch %s[%s] declared more than once; the later declaration wins", e.Registry, key)
}

// Resolver accumulates modules and produces a ResolvedModuleSet.
type Resolver struct {
	modules map[string]*ast.McDocFile
}

func New() *Resolver {
	return &Resolver{modules: map[string]*ast.McDocFile{}}
}

// AddModule registers a parsed file under a normalized module path
// ("/"-separated, no leading or trailing slash).
func (r *Resolver) AddModule(path string, file *ast.McDocFile) {
	r.modules[normalizePath(path)] = file
}

func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	return p
}

// ResolvedModuleSet owns every parsed file plus the indices built over
// them. It is immutable once ResolveAll returns successfully.
type ResolvedModuleSet struct {
	Modules         map[string]*ast.McDocFile
	ResolutionOrder []string
	TypeIndex       map[string]ast.TypeExpr
	DispatchIndex   map[dispatchKey]ast.TypeExpr
	dispatchCache   *lru.Cache[dispatchKey, ast.TypeExpr]
	// ModuleErrors records one ErrModuleNotFound per unresolved import.
	// Per §4.3 point 3 and §7, a missing import blocks only the
	// importer and its transitive dependents — not the whole resolve.
	ModuleErrors []*ErrModuleNotFound
	// DispatchCollisions records one ErrDispatchCollision per dispatch
	// declaration that overwrote an earlier one targeting the same key.
	DispatchCollisions []*ErrDispatchCollision
}

type dispatchKey struct {
	registry string
	key      string
	unknown  bool
}

// ResolveAll builds the ResolvedModuleSet for every module added so far.
// A missing import blocks only the affected importer and its transitive
// dependents (recorded in ModuleErrors); every other module still
// resolves normally. Only a genuine cycle aborts resolution entirely.
func (r *Resolver) ResolveAll() (*ResolvedModuleSet, error) {
	order, moduleErrs, err := r.topologicalOrder()
	if err != nil {
		return nil, err
	}

	cache, _ := lru.New[dispatchKey, ast.TypeExpr](2048)
	set := &ResolvedModuleSet{
		Modules:         r.modules,
		ResolutionOrder: order,
		TypeIndex:       map[string]ast.TypeExpr{},
		DispatchIndex:   map[dispatchKey]ast.TypeExpr{},
		dispatchCache:   cache,
		ModuleErrors:    moduleErrs,
	}

	for _, path := range order {
		file := r.modules[path]
		for _, decl := range file.Decls {
			indexDecl(set, path, decl)
		}
	}
	return set, nil
}

func qualify(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}

func indexDecl(set *ResolvedModuleSet, path string, decl ast.Decl) {
	switch d := decl.(type) {
	case *ast.StructDecl:
		set.TypeIndex[qualify(path, d.Name)] = ast.StructType{Members: d.Members, Pos: d.Pos}
	case *ast.EnumDecl:
		set.TypeIndex[qualify(path, d.Name)] = enumAsType(d)
	case *ast.TypeDecl:
		set.TypeIndex[qualify(path, d.Name)] = d.Type
	case *ast.DispatchDecl:
		for _, target := range d.Targets {
			key := dispatchKey{registry: d.Source.Registry, key: target.Name, unknown: target.IsUnknown}
			if _, exists := set.DispatchIndex[key]; exists {
				set.DispatchCollisions = append(set.DispatchCollisions, &ErrDispatchCollision{
					Registry: key.registry, Key: key.key, Unknown: key.unknown,
				})
			}
			set.DispatchIndex[key] = d.TargetType
		}
	}
}

// enumAsType renders an EnumDecl as the union of its literal variant
// values, so the validator can treat enum references uniformly with
// other TypeExpr values.
func enumAsType(d *ast.EnumDecl) ast.TypeExpr {
	variants := make([]ast.TypeExpr, 0, len(d.Variants))
	for _, v := range d.Variants {
		if v.Value != nil {
			variants = append(variants, ast.LiteralType{Value: v.Value, Pos: d.Pos})
		} else {
			variants = append(variants, ast.LiteralType{Value: ast.StringLiteral{Value: v.Name}, Pos: d.Pos})
		}
	}
	if len(variants) == 1 {
		return variants[0]
	}
	return ast.UnionType{Variants: variants, Pos: d.Pos}
}

// topologicalOrder runs Kahn's algorithm over the import graph, excluding
// any module whose import chain is missing a target. Those modules (and
// everything that transitively imports them) are reported via the
// returned ModuleErrors-building slice rather than aborting resolution of
// the rest of the graph, per §4.3 point 3 and §7. A genuine cycle among
// the remaining modules still aborts with ErrCircularDependency, recovered
// via DFS.
func (r *Resolver) topologicalOrder() ([]string, []*ErrModuleNotFound, error) {
	edges := map[string][]string{} // module -> modules it imports
	directlyBlocked := map[string]bool{}
	var moduleErrs []*ErrModuleNotFound
	for path, file := range r.modules {
		for _, imp := range file.Imports {
			target, ok := resolveImportPath(path, imp.Path)
			if !ok {
				continue
			}
			if _, exists := r.modules[target]; !exists {
				moduleErrs = append(moduleErrs, &ErrModuleNotFound{Module: target, From: path})
				directlyBlocked[path] = true
				continue
			}
			edges[path] = append(edges[path], target)
		}
	}

	// Propagate blocking to transitive dependents: any module that
	// imports (directly or transitively) a module with a missing import
	// cannot resolve safely either.
	rev := map[string][]string{} // module -> modules that import it
	for path, deps := range edges {
		for _, dep := range deps {
			rev[dep] = append(rev[dep], path)
		}
	}
	blocked := map[string]bool{}
	var blockedQueue []string
	for m := range directlyBlocked {
		blocked[m] = true
		blockedQueue = append(blockedQueue, m)
	}
	for len(blockedQueue) > 0 {
		n := blockedQueue[0]
		blockedQueue = blockedQueue[1:]
		for _, dependent := range rev[n] {
			if !blocked[dependent] {
				blocked[dependent] = true
				blockedQueue = append(blockedQueue, dependent)
			}
		}
	}

	// Kahn's over the non-blocked residual graph: a module is ready once
	// every (non-blocked) module it imports has already been resolved.
	remaining := map[string]int{}
	for path := range r.modules {
		if blocked[path] {
			continue
		}
		n := 0
		for _, dep := range edges[path] {
			if !blocked[dep] {
				n++
			}
		}
		remaining[path] = n
	}

	revOK := map[string][]string{}
	for path, deps := range edges {
		if blocked[path] {
			continue
		}
		for _, dep := range deps {
			if !blocked[dep] {
				revOK[dep] = append(revOK[dep], path)
			}
		}
	}

	var queue []string
	for path, n := range remaining {
		if n == 0 {
			queue = append(queue, path)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dependent := range revOK[n] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) == len(remaining) {
		return order, moduleErrs, nil
	}

	var residual []string
	visited := map[string]bool{}
	for _, n := range order {
		visited[n] = true
	}
	for path := range remaining {
		if !visited[path] {
			residual = append(residual, path)
		}
	}
	cycle := findCycle(residual, edges)
	return nil, moduleErrs, &ErrCircularDependency{Cycle: cycle}
}

func findCycle(nodes []string, edges map[string][]string) []string {
	visited := map[string]bool{}
	onStack := map[string]bool{}
	var path []string

	var dfs func(n string) []string
	dfs = func(n string) []string {
		visited[n] = true
		onStack[n] = true
		path = append(path, n)
		for _, dep := range edges[n] {
			if onStack[dep] {
				// found the closing edge; slice path from dep's first
				// occurrence and close the loop.
				for i, p := range path {
					if p == dep {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, dep)
					}
				}
			}
			if !visited[dep] {
				if c := dfs(dep); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		onStack[n] = false
		return nil
	}

	for _, n := range nodes {
		if !visited[n] {
			if c := dfs(n); c != nil {
				return c
			}
		}
	}
	return nodes
}

// resolveImportPath turns an ImportPath relative to the importing module
// into a normalized module path. Absolute paths drop their last segment
// (the referenced name) to form the module path; relative (`super::`)
// paths resolve against the importer's parent segment.
func resolveImportPath(from string, p ast.ImportPath) (string, bool) {
	if len(p.Segments) == 0 {
		return "", false
	}
	segs := p.Segments[:len(p.Segments)-1]
	if p.Absolute {
		return strings.Join(segs, "/"), true
	}
	parent := parentModule(from)
	if parent == "" {
		return strings.Join(segs, "/"), true
	}
	return parent + "/" + strings.Join(segs, "/"), true
}

func parentModule(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// LookupDispatch returns the concrete type for a discriminator value,
// falling back to the registry's %unknown target when no specific key
// matches.
func (s *ResolvedModuleSet) LookupDispatch(registryName, key string) (ast.TypeExpr, bool) {
	specific := dispatchKey{registry: registryName, key: key}
	if v, ok := s.dispatchCache.Get(specific); ok {
		return v, true
	}
	if t, ok := s.DispatchIndex[specific]; ok {
		s.dispatchCache.Add(specific, t)
		return t, true
	}
	unknown := dispatchKey{registry: registryName, unknown: true}
	if t, ok := s.DispatchIndex[unknown]; ok {
		return t, true
	}
	return nil, false
}

// LookupType resolves a qualified name (module/path + declaration name)
// against the TypeIndex.
func (s *ResolvedModuleSet) LookupType(qualifiedName string) (ast.TypeExpr, bool) {
	t, ok := s.TypeIndex[qualifiedName]
	return t, ok
}

// LookupTypeByName resolves a bare (unqualified) type name as used by
// Simple(ident) type expressions: it tries an exact TypeIndex key first,
// then falls back to matching any qualified entry whose final path
// segment equals name. Schema directories are expected not to collide on
// declaration names across modules.
func (s *ResolvedModuleSet) LookupTypeByName(name string) (ast.TypeExpr, bool) {
	if t, ok := s.TypeIndex[name]; ok {
		return t, ok
	}
	suffix := "/" + name
	for k, t := range s.TypeIndex {
		if strings.HasSuffix(k, suffix) {
			return t, true
		}
	}
	return nil, false
}

// ExpandSpread resolves a spread's dynamic discriminator value to a
// concrete type via the DispatchIndex, keyed by (registry, value).
// Namespace is accepted for symmetry with the grammar but, per the
// source this spec is grounded on, dispatch matching is scoped by
// registry name alone.
func (s *ResolvedModuleSet) ExpandSpread(namespace, registryName, dynamicValue string) (ast.TypeExpr, bool) {
	_ = namespace
	return s.LookupDispatch(registryName, dynamicValue)
}
