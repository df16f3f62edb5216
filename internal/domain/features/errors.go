package features

import "errors"

var (
	// ErrInvalidWindow is returned when the click precedes the spawn.
	ErrInvalidWindow = errors.New("click precedes spawn")
	// ErrInvalidTarget is returned for a non-positive or NaN target radius.
	ErrInvalidTarget = errors.New("invalid target radius")
	// ErrDegradedWindow marks a window with fewer than two samples. Extract
	// never returns it; callers use Degraded and log it.
	ErrDegradedWindow = errors.New("degraded window")
)
