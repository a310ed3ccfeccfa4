package platform

import (
	"errors"
	"strings"
)

// ErrPlatformNotFound is returned when no source provides a platform.
var ErrPlatformNotFound = errors.New("platform not found")

// ExtensionCycleError reports an extends chain that revisits a platform.
type ExtensionCycleError struct {
	// Chain is the visiting order ending with the repeated name.
	Chain []string
}

func (e *ExtensionCycleError) Error() string {
	return "platform extension cycle: " + strings.Join(e.Chain, " -> ")
}

// IsExtensionCycle reports whether err wraps an ExtensionCycleError.
func IsExtensionCycle(err error) bool {
	var target *ExtensionCycleError
	return errors.As(err, &target)
}
