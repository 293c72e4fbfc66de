package errors

import (
	"fmt"

	"github.com/jafarshop/storefront/internal/domain"
)

// ErrValidation is returned for bad caller input. State is never mutated.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ErrNotFound is returned when a resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrAuthRequired is returned when an operation needs a signed-in user
type ErrAuthRequired struct {
	Action string
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("authentication required to %s", e.Action)
}

// ErrInvalidStateTransition is returned for an order status change the
// state machine does not allow
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// ErrPersistence wraps a storage or backend failure
type ErrPersistence struct {
	Op  string
	Err error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrConflict is returned when a request collides with one already in flight
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return e.Message
}

type ErrForbidden struct {
	Message string
}

func (e *ErrForbidden) Error() string {
	return e.Message
}

// Persistence wraps err as an ErrPersistence unless it is nil or already one
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ErrPersistence); ok {
		return err
	}
	return &ErrPersistence{Op: op, Err: err}
}
