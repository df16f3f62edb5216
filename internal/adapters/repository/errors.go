package repository

import "errors"

// ErrBucketFull is returned by a bucket at capacity. Stores handle it by
// opening the next bucket; it never reaches callers.
var ErrBucketFull = errors.New("bucket full")
