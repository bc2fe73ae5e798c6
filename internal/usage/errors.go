package usage

import "errors"

// ErrInvalidEvent indicates an event without an action or outcome.
var ErrInvalidEvent = errors.New("invalid activity event")
