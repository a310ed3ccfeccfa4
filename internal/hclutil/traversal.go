package hclutil

import (
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// References returns the dotted paths below root that the expressions read,
// sorted and deduplicated. token.color.primary and token.color["primary"]
// both yield "color.primary". A bare reference to root yields nothing.
func References(root string, exprs ...hcl.Expression) []string {
	seen := make(map[string]struct{})
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, t := range expr.Variables() {
			if t.RootName() != root {
				continue
			}
			if path := dotted(t[1:]); path != "" {
				seen[path] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dotted(steps hcl.Traversal) string {
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			parts = append(parts, s.Name)
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.String || !s.Key.IsKnown() || s.Key.IsNull() {
				// Numeric indexes stop the path; the prefix is still a reference.
				return strings.Join(parts, ".")
			}
			parts = append(parts, s.Key.AsString())
		default:
			return strings.Join(parts, ".")
		}
	}
	return strings.Join(parts, ".")
}
