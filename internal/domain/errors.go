package domain

import "errors"

// Configuration errors abort startup or a build. They are never retried and
// never converted into fallback values.
var (
	// ErrCorruptIndex means the persisted index and metadata disagree
	// (count mismatch, truncated file, missing artifact).
	ErrCorruptIndex = errors.New("index and metadata are inconsistent")

	// ErrDimensionMismatch means a vector batch does not match the
	// dimension established by the first batch added to the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ErrInvalidQuery is returned when a query fails validation before any
// embedding call is made. It is recoverable: transports convert it into a
// deterministic caller-facing message.
var ErrInvalidQuery = errors.New("invalid query")
