package service

import "errors"

var (
	// ErrEmptyBatch is returned for a batch without items.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrAllRejected is returned, alongside the rejected list, when no item
	// of a batch passed validation.
	ErrAllRejected = errors.New("all items rejected")
	// ErrNotStarted is returned by data operations before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrDuplicateAttempt is the rejection reason for a reused attempt id.
	ErrDuplicateAttempt = errors.New("duplicate attempt id")
)
