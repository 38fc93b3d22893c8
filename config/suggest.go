package config

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// UnknownKey describes a config key that is not part of the schema.
type UnknownKey struct {
	Path       string
	Suggestion string // empty when nothing is close enough
}

func (u UnknownKey) String() string {
	if u.Suggestion != "" {
		return fmt.Sprintf("unknown key %q (did you mean %q?)", u.Path, u.Suggestion)
	}
	return fmt.Sprintf("unknown key %q", u.Path)
}

// UnknownKeys reports every key in data that the schema does not know,
// each with a nearest-match suggestion. The schema is the embedded
// defaults file, which carries every valid key. Returns nil for YAML
// that does not parse; Load reports that separately.
func UnknownKeys(data []byte) []UnknownKey {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil
	}
	known := schemaPaths()
	var out []UnknownKey
	walkKeys(&root, "", func(path string) bool {
		if _, ok := known[path]; ok {
			return true
		}
		out = append(out, UnknownKey{Path: path, Suggestion: closestPath(path, known)})
		return false
	})
	return out
}

// schemaPaths returns the set of dotted key paths in the embedded
// defaults.
func schemaPaths() map[string]struct{} {
	var root yaml.Node
	if err := yaml.Unmarshal(defaultsYAML, &root); err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	paths := make(map[string]struct{})
	walkKeys(&root, "", func(path string) bool {
		paths[path] = struct{}{}
		return true
	})
	return paths
}

// walkKeys visits every mapping key in the node tree as a dotted path.
// visit returning false stops descent into that key's subtree.
func walkKeys(node *yaml.Node, prefix string, visit func(path string) bool) {
	if node.Kind == yaml.DocumentNode {
		for _, child := range node.Content {
			walkKeys(child, prefix, visit)
		}
		return
	}
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		path := node.Content[i].Value
		if prefix != "" {
			path = prefix + "." + path
		}
		if visit(path) {
			walkKeys(node.Content[i+1], path, visit)
		}
	}
}

// closestPath returns the known path nearest to key by edit distance, or
// "" when even the best match is too far to be a plausible typo.
func closestPath(key string, known map[string]struct{}) string {
	candidates := make([]string, 0, len(known))
	for k := range known {
		candidates = append(candidates, k)
	}
	sort.Strings(candidates)

	best := ""
	bestDist := len(key) + 1
	for _, cand := range candidates {
		if d := levenshtein.ComputeDistance(key, cand); d < bestDist {
			best, bestDist = cand, d
		}
	}
	if bestDist > max(2, len(key)/3) {
		return ""
	}
	return best
}
