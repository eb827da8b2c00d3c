// Package llm generates natural-language answers from an assembled prompt.
// The engine owns prompt assembly; Client only has to turn a finished prompt
// into completion text.
package llm

import "context"

// Client completes a prompt against a backing language model.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
