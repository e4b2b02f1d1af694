package models

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds     = errors.New("value out of bounds")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrAlreadyMember   = errors.New("already a member")
)

// ParameterError reports a value rejected by a parameter's bounds.
type ParameterError struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %s: value %g outside [%g, %g]", e.Name, e.Value, e.Min, e.Max)
}

func (e *ParameterError) Unwrap() error { return ErrOutOfBounds }

// IndexError reports an index outside a collection.
type IndexError struct {
	Collection string
	Index      int
	Len        int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d out of range [0, %d)", e.Collection, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }
