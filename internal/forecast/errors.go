package forecast

import "errors"

var (
	// ErrInsufficientData means the series is too short for the baseline
	// model. Callers fall through to the fallback projector.
	ErrInsufficientData = errors.New("forecast: insufficient history")

	// ErrUnavailable means the baseline fit failed numerically (degenerate
	// variance, non-finite coefficients). Same fallback path, scoped to the
	// failing horizon only.
	ErrUnavailable = errors.New("forecast: model fit unavailable")
)
