// Package registry holds the sets of valid resource identifiers and tags
// a datapack is validated against, and extracts resource-id-shaped
// dependencies from JSON documents.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResourceID is a parsed `<namespace>:<path>` resource location.
type ResourceID struct {
	Namespace string
	Path      string
}

func (r ResourceID) String() string {
	return r.Namespace + ":" + r.Path
}

// ParseResourceID parses s as `ns:path`. If s carries no namespace (no
// ':'), defaultNamespace is used.
func ParseResourceID(s, defaultNamespace string) ResourceID {
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return ResourceID{Namespace: s[:idx], Path: s[idx+1:]}
	}
	return ResourceID{Namespace: defaultNamespace, Path: s}
}

// Registry is one named set of entries and tags, e.g. "item" or "block".
type Registry struct {
	Name    string
	Version string
	Entries map[string]struct{}
	Tags    map[string][]string
}

// jsonShape is the `{"entries":{...},"tags":{...}}` wire format. A plain
// array of strings (entries only) is also accepted.
type jsonShape struct {
	Entries map[string]json.RawMessage `json:"entries"`
	Tags    map[string][]string        `json:"tags"`
}

// New parses raw registry JSON in either documented shape.
func New(name, version string, raw []byte) (*Registry, error) {
	r := &Registry{Name: name, Version: version, Entries: map[string]struct{}{}, Tags: map[string][]string{}}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, id := range arr {
			r.Entries[id] = struct{}{}
		}
		return r, nil
	}

	var shape jsonShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("registry %s: %w", name, err)
	}
	for id := range shape.Entries {
		r.Entries[id] = struct{}{}
	}
	for tag, ids := range shape.Tags {
		r.Tags[tag] = ids
	}
	return r, nil
}

func (r *Registry) Contains(id string) bool {
	_, ok := r.Entries[id]
	return ok
}

func (r *Registry) ContainsTag(tag string) bool {
	_, ok := r.Tags[tag]
	return ok
}

// Store holds every loaded Registry, keyed by name. It is mutated only
// during Load; after that, all methods are safe for concurrent read-only
// use, matching §5's "treated as immutable for the duration" rule.
type Store struct {
	registries map[string]*Registry
	cache      *lru.Cache[validateKey, bool]
}

type validateKey struct {
	registry string
	ref      string
	isTag    bool
	ns       string
}

// NewStore returns an empty Store with a bounded validate() memo cache —
// datapack runs re-validate the same resource ids across thousands of
// documents.
func NewStore() *Store {
	cache, _ := lru.New[validateKey, bool](4096)
	return &Store{registries: map[string]*Registry{}, cache: cache}
}

// Load parses and installs a registry under name.
func (s *Store) Load(name, version string, raw []byte) error {
	r, err := New(name, version, raw)
	if err != nil {
		return err
	}
	s.registries[name] = r
	s.cache.Purge()
	return nil
}

func (s *Store) Has(name string) bool {
	_, ok := s.registries[name]
	return ok
}

func (s *Store) Contains(name, id string) bool {
	r, ok := s.registries[name]
	return ok && r.Contains(id)
}

func (s *Store) ContainsTag(name, tag string) bool {
	r, ok := s.registries[name]
	return ok && r.ContainsTag(tag)
}

// ErrUnknownRegistry is returned by Validate when name has not been loaded.
type ErrUnknownRegistry struct {
	Registry string
}

func (e *ErrUnknownRegistry) Error() string {
	return fmt.Sprintf("unknown registry %q", e.Registry)
}

// Validate reports whether ref is a member of registry name. For tag
// references, Tags is consulted. For plain references, if ref is absent
// and defaultNS is non-empty, both `defaultNS:bare` and the bare suffix
// after defaultNS are tried, per §4.4's default-namespace fallback.
func (s *Store) Validate(name, ref string, isTag bool, defaultNS string) (bool, error) {
	key := validateKey{registry: name, ref: ref, isTag: isTag, ns: defaultNS}
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	r, ok := s.registries[name]
	if !ok {
		return false, &ErrUnknownRegistry{Registry: name}
	}

	var result bool
	if isTag {
		result = r.ContainsTag(strings.TrimPrefix(ref, "#"))
	} else {
		result = r.Contains(ref)
		if !result && defaultNS != "" {
			if r.Contains(defaultNS + ":" + ref) {
				result = true
			} else if bare, found := strings.CutPrefix(ref, defaultNS+":"); found && r.Contains(bare) {
				result = true
			}
		}
	}
	s.cache.Add(key, result)
	return result, nil
}
