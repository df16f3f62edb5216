package features

// Default extraction parameters.
const (
	DefaultMovementThreshold     = 0.01
	DefaultSubmovementProminence = 0.1
)

// Option configures a WindowExtractor.
type Option func(*WindowExtractor)

// WithMovementThreshold sets the displacement, in normalized units, that
// marks movement onset.
func WithMovementThreshold(v float64) Option {
	return func(e *WindowExtractor) {
		if v > 0 {
			e.movementThreshold = v
		}
	}
}

// WithSubmovementProminence sets the minimum peak prominence as a fraction
// of the peak speed.
func WithSubmovementProminence(ratio float64) Option {
	return func(e *WindowExtractor) {
		if ratio > 0 && ratio <= 1 {
			e.prominence = ratio
		}
	}
}
