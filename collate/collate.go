// Package collate aggregates per-document validation results into a
// datapack-wide report, deriving each document's resource type from its
// path and optionally fanning validation out across a worker pool.
package collate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mcdoc/registry"
	"mcdoc/validate"
)

// PathTypeResolver derives a resource type (the dispatch key passed to
// Validator.Validate) from a document's path within the datapack. It
// returns ok=false when the path does not look like a recognizable
// datapack document, in which case the caller's DefaultType is used.
type PathTypeResolver func(path string) (resourceType string, ok bool)

// DefaultPathTypeResolver implements §4.6's heuristic, recovered from
// original_source/src/validator.rs's extract_resource_id_from_path and the
// teacher's determineSchemaPath: for a path shaped like
// `data/<namespace>/<kind>/.../file.json`, the resource type is the first
// path segment after the namespace.
func DefaultPathTypeResolver(path string) (string, bool) {
	clean := strings.Trim(strings.ReplaceAll(path, "\\", "/"), "/")
	parts := strings.Split(clean, "/")

	dataIdx := -1
	for i, p := range parts {
		if p == "data" {
			dataIdx = i
			break
		}
	}
	if dataIdx < 0 || dataIdx+2 >= len(parts) {
		return "", false
	}

	// parts[dataIdx+1] is the namespace, parts[dataIdx+2] is the kind.
	kind := parts[dataIdx+2]
	if kind == "" {
		return "", false
	}
	return kind, true
}

// DocumentError pairs a document path with one of its validation errors,
// matching §3's DatapackResult.errors: [(path, Error)] shape.
type DocumentError struct {
	Path  string
	Error *validate.Error
}

// DatapackResult aggregates every document's validation outcome.
type DatapackResult struct {
	TotalFiles      int
	ValidFiles      int
	Errors          []DocumentError
	Dependencies    map[string][]string
	AnalysisTimeMs  int64
	PerDocumentDeps map[string][]registry.Dep
}

// DocumentCollator drives validation across a set of files and aggregates
// the outcome. It is safe for concurrent use once its Validator's
// ResolvedModuleSet and RegistryStore have finished loading, per §5's
// "only read after all mutating loads have completed" precondition.
type DocumentCollator struct {
	Validator    *validate.Validator
	PathResolver PathTypeResolver
	DefaultType  string
	Version      string
	// Concurrency bounds how many documents are validated in parallel.
	// Zero or negative means serial (the default, matching §5's baseline
	// synchronous model; callers opt into fan-out explicitly).
	Concurrency int
}

// New returns a DocumentCollator with the default path resolver.
func New(v *validate.Validator) *DocumentCollator {
	return &DocumentCollator{Validator: v, PathResolver: DefaultPathTypeResolver}
}

type fileResult struct {
	path   string
	result validate.Result
	perr   error
}

// Analyze parses every file's bytes as JSON, resolves its resource type,
// validates it, and aggregates the outcomes. Per §5, per-document error
// and dependency order is preserved regardless of concurrency; when
// Concurrency > 1 the order documents appear in the aggregate is
// unspecified (ctx is only consulted at per-document boundaries — no
// single validation is itself cancelable).
func (c *DocumentCollator) Analyze(ctx context.Context, files map[string][]byte) (*DatapackResult, error) {
	start := time.Now()

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	results := make([]fileResult, len(paths))

	if c.Concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.Concurrency)
		var mu sync.Mutex
		for i, p := range paths {
			i, p := i, p
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, perr := c.analyzeOne(p, files[p])
				mu.Lock()
				results[i] = fileResult{path: p, result: r, perr: perr}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, p := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, perr := c.analyzeOne(p, files[p])
			results[i] = fileResult{path: p, result: r, perr: perr}
		}
	}

	out := &DatapackResult{
		TotalFiles:      len(paths),
		Dependencies:    map[string][]string{},
		PerDocumentDeps: map[string][]registry.Dep{},
	}

	for _, fr := range results {
		if fr.perr != nil {
			out.Errors = append(out.Errors, DocumentError{
				Path: fr.path,
				Error: &validate.Error{
					File:    fr.path,
					Message: fr.perr.Error(),
					Kind:    validate.KindTypeMismatch,
				},
			})
			continue
		}
		if fr.result.IsValid {
			out.ValidFiles++
		}
		for _, e := range fr.result.Errors {
			e.File = fr.path
			out.Errors = append(out.Errors, DocumentError{Path: fr.path, Error: e})
		}
		if len(fr.result.Dependencies) > 0 {
			out.PerDocumentDeps[fr.path] = fr.result.Dependencies
			for _, dep := range fr.result.Dependencies {
				out.Dependencies[dep.Registry] = appendUnique(out.Dependencies[dep.Registry], dep.ResourceLocation)
			}
		}
	}

	out.AnalysisTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func (c *DocumentCollator) analyzeOne(path string, raw []byte) (validate.Result, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return validate.Result{}, fmt.Errorf("%s: invalid JSON: %w", path, err)
	}

	resourceType := c.DefaultType
	if c.PathResolver != nil {
		if rt, ok := c.PathResolver(path); ok {
			resourceType = rt
		}
	}

	return c.Validator.Validate(value, resourceType, c.Version), nil
}
