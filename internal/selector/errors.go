package selector

import "errors"

var (
	// ErrInvalidConfiguration is returned for requests that can never be
	// evaluated, such as a negative threshold or an oversized value axis.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoSolution means no combination within the slot limit reaches the
	// threshold. Callers are expected to handle it explicitly.
	ErrNoSolution = errors.New("no combination of items meets the threshold")
)
