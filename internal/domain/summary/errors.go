package summary

import "errors"

// ErrNoData is returned when a round has no stored attempts.
var ErrNoData = errors.New("no data")
