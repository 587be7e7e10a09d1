package shared

import (
	"errors"
	"fmt"
)

// DomainError is the base error type for all domain errors
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// ValidationError reports malformed geometry, a missing required field or an
// out-of-range value. The offending item is dropped at the ingest boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateError reports an illegal lifecycle transition, such as boarding a
// passenger that is not WAITING.
type StateError struct {
	*DomainError
}

func NewStateError(message string) *StateError {
	return &StateError{DomainError: &DomainError{Message: message}}
}

// NotFoundError reports an unknown id
type NotFoundError struct {
	*DomainError
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{
		DomainError: &DomainError{Message: fmt.Sprintf("%s not found: %s", kind, id)},
		Kind:        kind,
		ID:          id,
	}
}

// UnavailableError reports a temporarily unreachable collaborator (hub or
// CMS). Callers retry with backoff.
type UnavailableError struct {
	*DomainError
}

func NewUnavailableError(message string) *UnavailableError {
	return &UnavailableError{DomainError: &DomainError{Message: message}}
}

// TimeoutError reports a request/response exchange that did not complete
// within the configured window.
type TimeoutError struct {
	*DomainError
}

func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{DomainError: &DomainError{Message: message}}
}

// CapacityExceededError reports a boarding attempt that would exceed vehicle
// capacity. It is prevented internally, never surfaced externally.
type CapacityExceededError struct {
	*DomainError
	VehicleID string
	Capacity  int
}

func NewCapacityExceededError(vehicleID string, capacity int) *CapacityExceededError {
	return &CapacityExceededError{
		DomainError: &DomainError{Message: fmt.Sprintf("vehicle %s at capacity %d", vehicleID, capacity)},
		VehicleID:   vehicleID,
		Capacity:    capacity,
	}
}

// FatalError reports a corrupted invariant. The process aborts after flushing
// logs and a best-effort system:service_disconnected.
type FatalError struct {
	*DomainError
}

func NewFatalError(message string) *FatalError {
	return &FatalError{DomainError: &DomainError{Message: message}}
}

// IsNotFoundError reports whether err is (or wraps) a NotFoundError
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsTimeoutError reports whether err is (or wraps) a TimeoutError
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsCapacityExceededError reports whether err is (or wraps) a
// CapacityExceededError.
func IsCapacityExceededError(err error) bool {
	var target *CapacityExceededError
	return errors.As(err, &target)
}

// IsFatalError reports whether err is (or wraps) a FatalError
func IsFatalError(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}
