package compiler

import (
	"slices"

	"github.com/specialistvlad/stackmark/internal/cache"
)

// Context is everything a compile needs besides the element itself.
type Context struct {
	// Platforms and StylingStack together form the stack, applied in this
	// order.
	Platforms    []string
	StylingStack []string

	HierarchyLevels []string
	// Tokens holds resolved design token values by reference.
	Tokens map[string]string
	// Vars feeds {{name}} substitution in resolve-vars content.
	Vars map[string]string

	// ProjectContext selects project-local platform documents.
	ProjectContext string
	// Component names the component being compiled, for cache bookkeeping.
	Component string
	// Metadata carries request details that never affect output.
	Metadata map[string]string
}

// Stack returns the platform names in application order.
func (c Context) Stack() []string {
	return append(slices.Clone(c.Platforms), c.StylingStack...)
}

// KeyContext returns the subset of the context that cache keys depend on.
func (c Context) KeyContext() cache.KeyContext {
	return cache.KeyContext{
		HierarchyLevels: c.HierarchyLevels,
		Tokens:          c.Tokens,
		PlatformStack:   c.Platforms,
		StylingStack:    c.StylingStack,
		Vars:            c.Vars,
	}
}
