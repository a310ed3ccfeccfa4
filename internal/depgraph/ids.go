package depgraph

import "strings"

// FileID returns the node id of a source file.
func FileID(path string) string { return string(KindFile) + ":" + path }

// TokenID returns the node id of a design token reference.
func TokenID(ref string) string { return string(KindToken) + ":" + ref }

// ComponentID returns the node id of a component.
func ComponentID(name string) string { return string(KindComponent) + ":" + name }

// SplitID breaks an id into its kind and local part. ok is false when the id
// carries no known kind prefix.
func SplitID(id string) (kind Kind, local string, ok bool) {
	prefix, rest, found := strings.Cut(id, ":")
	if !found {
		return "", id, false
	}
	switch k := Kind(prefix); k {
	case KindFile, KindToken, KindComponent:
		return k, rest, true
	default:
		return "", id, false
	}
}
