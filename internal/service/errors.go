package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/noah-isme/echo-go-api/internal/models"
)

var (
	// ErrNotFound indicates the target, chat or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller lacks participation or privileges.
	ErrForbidden = errors.New("forbidden")
	// ErrExpired indicates the target lifetime ended and the caller has no staff override.
	ErrExpired = errors.New("expired")
	// ErrInvalidTarget indicates an unknown target kind or engagement with a floating comment.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrServiceUnavailable indicates a backing store could not be reached in time.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated indicates an anonymous caller.
	ErrUnauthenticated = errors.New("authentication required")
)

// translateStoreError maps repository errors onto the service taxonomy.
func translateStoreError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, models.ErrUnknownTargetKind):
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	default:
		return err
	}
}

// validationError wraps validator failures so callers can match ErrValidation while the field details survive.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %s", ErrValidation, validationErrors.Error())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
