// Package sentinel declares the infrastructure facts stores report.
//
// Stores return these (optionally wrapped with %w); services translate them
// into pkg/domain-errors codes. They describe resource state, never input
// validity:
//   - ErrNotFound: row or key does not exist
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: a conditional update found the row in another state
//   - ErrUnavailable: backing service unreachable or timed out
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
