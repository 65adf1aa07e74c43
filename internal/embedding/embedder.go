// Package embedding turns code blocks into fixed-length vectors through a
// pluggable provider.
package embedding

import "context"

// Embedder is a provider that embeds a batch of texts, returning one vector
// per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}
