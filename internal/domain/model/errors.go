package model

import "errors"

// ErrInvalidInput marks a malformed sample, attempt or interaction. Only the
// offending item is rejected; the rest of its batch proceeds.
var ErrInvalidInput = errors.New("invalid input")
