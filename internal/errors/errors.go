// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrSessionExpired       = errors.New("session expired")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrTradeNotFound        = errors.New("trade not found")
	ErrGoalNotFound         = errors.New("goal not found")
	ErrNoteNotFound         = errors.New("note not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrRateLimited          = errors.New("rate limited")
	ErrTimeout              = errors.New("operation timed out")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDatabaseError        = errors.New("database error")
	ErrInputValidation      = errors.New("input validation failed")
	ErrInsightsUnavailable  = errors.New("insight service unavailable")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a persistence failure.
type StoreError struct {
	Operation string
	Entity    string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s %s]: %v", e.Operation, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets a StoreError match ErrDatabaseError as well as its cause.
func (e *StoreError) Is(target error) bool {
	return target == ErrDatabaseError
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, entity string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

// InsightError represents an error from the LLM insight relay.
type InsightError struct {
	Model     string
	Operation string
	Err       error
}

func (e *InsightError) Error() string {
	return fmt.Sprintf("insight error [%s] %s: %v", e.Model, e.Operation, e.Err)
}

func (e *InsightError) Unwrap() error {
	return e.Err
}

// NewInsightError creates a new InsightError.
func NewInsightError(model, operation string, err error) *InsightError {
	return &InsightError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
