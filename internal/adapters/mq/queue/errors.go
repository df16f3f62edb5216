package queue

import "errors"

// Sentinel errors returned by Enqueue. Both mean the caller should run the
// job itself.
var (
	ErrQueueFull = errors.New("queue full")
	ErrStopped   = errors.New("queue stopped")
)
