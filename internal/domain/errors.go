package domain

import "errors"

// ErrInvalid marks a decoded value that failed validation. Callers at the
// transport and fallback boundaries treat it as a malformed payload.
var ErrInvalid = errors.New("invalid payload")
