package core

import "errors"

// Error kinds shared by the pipeline. Concrete failures wrap one of these with
// the stage and the underlying cause, e.g.
//
//	fmt.Errorf("%w: upload %s: %w", core.ErrStorage, key, err)
//
// so callers can branch with errors.Is and still log the full chain.
var (
	// ErrValidation marks bad input. Nothing has been written when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks an object storage failure.
	ErrStorage = errors.New("object storage failure")

	// ErrConnection marks a store connection that could not be established or verified.
	ErrConnection = errors.New("database connection failure")

	// ErrPoolExhausted is returned when no pooled connection became available in time.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrExtraction marks unreadable or empty document content.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbedding marks an embedding service failure.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration marks a text generation service failure.
	ErrGeneration = errors.New("generation failed")

	// ErrDatabase marks a failed insert or query.
	ErrDatabase = errors.New("database operation failed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// IsUserError reports whether err was caused by the caller rather than by
// infrastructure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrExtraction)
}
