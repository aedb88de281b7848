package whiteboard

import "errors"

// ErrInvalidInput marks caller mistakes that never reach a provider.
var ErrInvalidInput = errors.New("invalid input")

type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }
func (e *inputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(msg string) error { return &inputError{msg: msg} }
