package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUserNotFound     = errors.New("user not found")
	ErrConflict         = errors.New("user conflicts with an existing active user")
	ErrStoreFailure     = errors.New("identity store failure")
)

// Violation codes reported by the validation layer.
const (
	CodeRequired             = "required"
	CodeInvalidEmail         = "email"
	CodeTooLong              = "max"
	CodeInvalidRole          = "invalid-role"
	CodeDuplicateActiveEmail = "duplicate-active-email"
	CodeEmailInUse           = "email-in-use"
	CodeNotFound             = "not-found"
)

// Violation is a single field or business-rule failure.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries every violation found for a request. It matches
// ErrValidationFailed with errors.Is.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Has reports whether a violation with the given code was recorded.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// StoreError wraps a failed identity-store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreFailure, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}

// WrapStoreError classifies err coming back from the identity store. Not-found
// and conflict errors pass through untouched so callers can still match them.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreFailure) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
