package session

import "errors"

var (
	// ErrSessionNotFound means the owner has no live session, or the caller's token was superseded.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidTransition means the session is not in a state that allows the requested change.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrStoreClosed means the store was shut down; callers should treat it as fatal.
	ErrStoreClosed = errors.New("session store unavailable")
)
