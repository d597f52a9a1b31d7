package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for action dispatch; match with errors.Is.
var (
	ErrMethodNotFound = errors.New("method not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidOutput  = errors.New("invalid output")
)

// NewMethodNotFoundError reports an unknown method on an action service.
func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("%w: %v", ErrMethodNotFound, name)
}

// NewInvalidInputError reports an input of an unexpected concrete type.
func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("%w: %T", ErrInvalidInput, in)
}

// NewInvalidOutputError reports an output of an unexpected concrete type.
func NewInvalidOutputError(out interface{}) error {
	return fmt.Errorf("%w: %T", ErrInvalidOutput, out)
}
