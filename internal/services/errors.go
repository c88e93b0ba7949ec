// Package services defines the business logic for users, the conversation
// state machine, and diaries. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

var (
	// ErrUserNotFound indicates that no user exists for the given key.
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingField is returned when a required input is empty. Use
	// errors.Is; the wrapped message names the field.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidEmotion is returned when an explicit mood update names an
	// emotion outside the accepted set.
	ErrInvalidEmotion = errors.New("invalid emotion")

	// ErrInvalidValue is returned for out-of-range numeric inputs.
	ErrInvalidValue = errors.New("invalid value")

	// ErrDiaryNotFound indicates that the user has no entry for the date.
	ErrDiaryNotFound = errors.New("diary entry not found")

	// ErrInvalidDate is returned when a diary date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")

	// ErrUpstreamTimeout is returned when the store or the generation
	// provider exceeds its per-call budget.
	ErrUpstreamTimeout = errors.New("upstream timed out")
)

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// storeErr maps a repository error observed under cctx to a service error.
func storeErr(cctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(cctx.Err(), context.DeadlineExceeded):
		return ErrUpstreamTimeout
	}
	return err
}
