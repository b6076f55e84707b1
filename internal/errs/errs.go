// Package errs holds the error kinds shared by the embedding, response and
// vector store layers. Upstream service failures are never mapped onto these;
// they are wrapped with %w and surface unchanged.
package errs

import "errors"

var (
	// ErrInvalidConfiguration reports an unsupported embedding mode or vector
	// store backend. It is returned at selection time, before any network call.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidInput reports embedding input that is neither a single text
	// value nor a sequence of text values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoCandidates reports a model response without any candidate.
	ErrNoCandidates = errors.New("model returned no candidates")
)
