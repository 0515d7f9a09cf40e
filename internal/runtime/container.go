// Package runtime holds the process-wide dependency-injection container
// used only at composition-root wiring time (cmd/sessiond's main), never
// from inside request-path logic. This is the one deliberate exception
// to "no ambient global state" elsewhere in this codebase.
package runtime

import (
	"sync"

	"go.uber.org/dig"
)

var (
	container     *dig.Container
	containerOnce sync.Once
)

// GetContainer returns the process-wide dig container, creating it on
// first use.
func GetContainer() *dig.Container {
	containerOnce.Do(func() {
		container = dig.New()
	})
	return container
}

// SetContainer replaces the process-wide container, used by tests that
// need an isolated graph.
func SetContainer(c *dig.Container) {
	container = c
}
