// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidRepoFormat is returned when a repository string is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// ErrMalformedEvent is returned for a fork event line that cannot be used.
// Callers skip the line and keep going.
type ErrMalformedEvent struct {
	Line   int
	Reason string
	Err    error
}

func (e *ErrMalformedEvent) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed fork event on line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed fork event on line %d: %s", e.Line, e.Reason)
}

func (e *ErrMalformedEvent) Unwrap() error {
	return e.Err
}
