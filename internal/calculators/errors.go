package calculators

import (
	"errors"
	"fmt"

	"github.com/refl-model/backend/internal/models"
)

var (
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrUnknownAttribute  = errors.New("unknown attribute")
	ErrUnknownCalculator = errors.New("unknown calculator")
	ErrUnsupported       = errors.New("not supported by calculator")
	ErrEmptyModel        = errors.New("model has no layers")
	ErrLengthMismatch    = errors.New("labels and values differ in length")
	ErrInvalidCell       = errors.New("invalid unit cell")

	// ErrIndexOutOfRange is shared with the domain collections.
	ErrIndexOutOfRange = models.ErrIndexOutOfRange
)

// EntityError reports a record missing from the storage mirror.
type EntityError struct {
	Kind Kind
	ID   string
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %q not in storage", e.Kind, e.ID)
}

func (e *EntityError) Unwrap() error { return ErrUnknownEntity }

// AttributeError reports a native attribute a calculator does not have.
type AttributeError struct {
	Calculator string
	Name       string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s: no attribute %q", e.Calculator, e.Name)
}

func (e *AttributeError) Unwrap() error { return ErrUnknownAttribute }

func unsupported(calculator, op string) error {
	return fmt.Errorf("%s: %s: %w", calculator, op, ErrUnsupported)
}
