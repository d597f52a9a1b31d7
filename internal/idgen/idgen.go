package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier. It is a variable so
// tests can stub it with a deterministic sequence.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new unique identifier as string.
func New() string { return NewFunc() }
