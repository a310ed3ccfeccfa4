package cache

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/specialistvlad/stackmark/internal/element"
)

// KeyContext is the part of a compile context that can change a compiled
// result. Anything else (project context, component name, request metadata)
// stays out of the key so unrelated churn does not cause misses.
type KeyContext struct {
	HierarchyLevels []string          `json:"hierarchyLevels"`
	Tokens          map[string]string `json:"tokens"`
	PlatformStack   []string          `json:"platformStack"`
	StylingStack    []string          `json:"stylingStack"`
	Vars            map[string]string `json:"vars"`
}

// Key returns the content hash of an element and the relevant context.
// Map keys are sorted by the JSON encoder, so equal inputs always hash alike.
func Key(n element.Node, kc KeyContext) (string, error) {
	if kc.HierarchyLevels == nil {
		kc.HierarchyLevels = []string{}
	}
	if kc.PlatformStack == nil {
		kc.PlatformStack = []string{}
	}
	if kc.StylingStack == nil {
		kc.StylingStack = []string{}
	}
	if kc.Tokens == nil {
		kc.Tokens = map[string]string{}
	}
	if kc.Vars == nil {
		kc.Vars = map[string]string{}
	}
	payload := map[string]any{
		"element": element.Canonical(n),
		"context": kc,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key input: %w", err)
	}
	return digest.FromBytes(b).String(), nil
}
