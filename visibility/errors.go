package visibility

import "errors"

var (
	// ErrNotFound indicates no matching reference or person exists for a name
	// or id. Read paths recover by degrading to the safest display.
	ErrNotFound = errors.New("visibility: not found")

	// ErrInvalidVisibility indicates a value outside the disclosure enum.
	ErrInvalidVisibility = errors.New("visibility: invalid visibility level")

	// ErrAmbiguousMatch indicates the matching ladder was exhausted without a
	// single defensible candidate. The matcher must not guess; callers need
	// to supply more context.
	ErrAmbiguousMatch = errors.New("visibility: ambiguous name match")
)
