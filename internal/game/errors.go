package game

import "errors"

// Error kinds shared by the engine and the room layer. Callers wrap them with
// fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
)
