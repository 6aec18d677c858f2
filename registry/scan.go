package registry

import (
	"strconv"
	"strings"
)

// Dep is one discovered dependency on a registry entry or tag.
type Dep struct {
	Registry         string
	ResourceLocation string
	JSONPath         string
	SourceFile       string
	IsTag            bool
}

// PathMapping maps a json-path pattern (an exact dot/bracket path string,
// e.g. "ingredient") to the registry that strings found there belong to.
type PathMapping map[string]string

// Scan structurally walks value, emitting one Dep for every string that
// syntactically resembles a resource id. When pathToRegistry has an entry
// matching the current json path the dependency's Registry is set from
// it; otherwise Registry is "unknown" and the caller should not
// registry-validate it.
func Scan(value any, pathToRegistry PathMapping) []Dep {
	var deps []Dep
	scanValue(value, "", pathToRegistry, &deps)
	return deps
}

func scanValue(v any, path string, mapping PathMapping, deps *[]Dep) {
	switch val := v.(type) {
	case string:
		if dep, ok := candidateDep(val, path, mapping); ok {
			*deps = append(*deps, dep)
		}
	case map[string]any:
		for k, child := range val {
			scanValue(child, joinPath(path, k), mapping, deps)
		}
	case []any:
		for i, child := range val {
			scanValue(child, joinIndex(path, i), mapping, deps)
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func joinIndex(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

func candidateDep(s, path string, mapping PathMapping) (Dep, bool) {
	isTag := strings.HasPrefix(s, "#")
	body := s
	if isTag {
		body = s[1:]
	}
	if !looksLikeResourceID(body) {
		return Dep{}, false
	}
	reg := "unknown"
	if mapping != nil {
		if r, ok := mapping[path]; ok {
			reg = r
		}
	}
	return Dep{Registry: reg, ResourceLocation: s, JSONPath: path, IsTag: isTag}, true
}

// looksLikeResourceID reports whether body matches `<ns>:<path>` where
// both halves are non-empty and drawn from [a-zA-Z0-9_/.-].
func looksLikeResourceID(body string) bool {
	idx := strings.IndexByte(body, ':')
	if idx <= 0 || idx == len(body)-1 {
		return false
	}
	ns, path := body[:idx], body[idx+1:]
	return isResourceChars(ns) && isResourceChars(path)
}

func isResourceChars(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_' || c == '/' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}
