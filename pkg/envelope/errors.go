package envelope

import "errors"

// ErrValidation is the sentinel wrapped by envelope validation failures.
// Callers match it with errors.Is; the wrapping message carries the detail.
var ErrValidation = errors.New("invalid envelope")
