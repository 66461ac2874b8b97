package trust

import "errors"

// ErrInvalidOptions is returned when an option record violates the
// documented bounds. The call produces no partial result.
var ErrInvalidOptions = errors.New("trust: invalid options")

// Collaborator failures are wrapped with %w and propagated unchanged;
// the engine never retries. Unreachable targets and empty score inputs
// are regular results, not errors.
