package capture

import (
	"errors"
	"fmt"
)

// Error kinds. Every validation error wraps ErrValidation and every
// state-machine rejection wraps ErrAssembler.
var (
	ErrValidation = errors.New("validation error")
	ErrAssembler  = errors.New("assembler error")
	ErrNotFound   = errors.New("not found")
)

var (
	ErrInvalidTransportMode = fmt.Errorf("%w: invalid transport mode", ErrValidation)
	ErrNegativeDuration     = fmt.Errorf("%w: duration must not be negative", ErrValidation)
	ErrZeroDuration         = fmt.Errorf("%w: duration must be greater than zero", ErrValidation)
	ErrMissingRating        = fmt.Errorf("%w: experience rating must be between 1 and 5", ErrValidation)
	ErrRatingOutOfRange     = fmt.Errorf("%w: experience rating must be between 0 and 5", ErrValidation)
	ErrInvalidProfile       = fmt.Errorf("%w: invalid user profile", ErrValidation)
)

var (
	ErrNotDrawing               = fmt.Errorf("%w: no active route", ErrAssembler)
	ErrAlreadyDrawing           = fmt.Errorf("%w: a route is already being drawn", ErrAssembler)
	ErrPendingSegmentUnresolved = fmt.Errorf("%w: pending segment must be confirmed first", ErrAssembler)
	ErrNoPendingSegment         = fmt.Errorf("%w: no pending segment", ErrAssembler)
	ErrEmptyRoute               = fmt.Errorf("%w: route has no confirmed segments", ErrAssembler)
	ErrRouteFinished            = fmt.Errorf("%w: route already finished", ErrAssembler)
	ErrNotContiguous            = fmt.Errorf("%w: segment does not start where the previous one ended", ErrAssembler)
	ErrUnknownHandle            = fmt.Errorf("%w: unknown capture handle", ErrNotFound)
	ErrUnknownRoute             = fmt.Errorf("%w: unknown route", ErrNotFound)
)
