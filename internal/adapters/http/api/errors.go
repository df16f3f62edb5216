package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrBodyTooLarge        = errors.New("request body too large")
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)
