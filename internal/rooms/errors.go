package rooms

import "errors"

// Every error returned by Manager wraps exactly one of these.
var (
	ErrNotFound     = errors.New("room not found")
	ErrInvalidState = errors.New("invalid room state")
	ErrForbidden    = errors.New("permission denied")
	ErrConflict     = errors.New("conflicting room write")
	ErrUpstream     = errors.New("summarization failed")
	ErrStorage      = errors.New("storage failure")
	ErrValidation   = errors.New("invalid input")
)

// ErrRevisionMismatch is returned by a Store when a conditional write matched
// no row: the room changed, was summarized or was deleted since it was read.
// Manager resolves it by re-reading and never returns it to callers.
var ErrRevisionMismatch = errors.New("room revision mismatch")
