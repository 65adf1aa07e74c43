// Package describe produces natural-language descriptions of entities
// through a pluggable provider, with a deterministic fallback.
package describe

import "context"

// Describer is a text-generation provider.
type Describer interface {
	Describe(ctx context.Context, prompt string) (string, error)
	Name() string
}
