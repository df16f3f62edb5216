package worker

import "errors"

// ErrExtractorPanic wraps a value recovered from a panicking extractor.
var ErrExtractorPanic = errors.New("extractor panic")
