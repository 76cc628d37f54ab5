// Package configtree implements the path-pattern engine (spec component C1)
// used to address secret-bearing locations in the JSON-like configuration
// tree and in per-agent auth-profile stores.
package configtree

// Node is the dynamic shape of a parsed configuration document: a mapping
// (map[string]any), an array ([]any), or a JSON scalar (string, float64,
// bool, nil). Callers decode a Node tree with encoding/json and mutate it in place
// through GetPath/SetPathCreateStrict/SetPathExistingStrict/DeletePathStrict.
type Node = any

// IsMapping reports whether v decodes to a JSON object.
func IsMapping(v Node) bool {
	_, ok := v.(map[string]any)
	return ok
}

// IsArray reports whether v decodes to a JSON array.
func IsArray(v Node) bool {
	_, ok := v.([]any)
	return ok
}

func asMapping(v Node) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asArray(v Node) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

// Clone returns a deep copy of v: nested mappings and arrays are recursively
// copied, scalars are returned as-is. Used by the snapshot activator to hand
// callers a document they can't use to mutate the active snapshot.
func Clone(v Node) Node {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Clone(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Clone(child)
		}
		return out
	default:
		return v
	}
}
