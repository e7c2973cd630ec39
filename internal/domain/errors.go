package domain

import "errors"

var (
	ErrValidation           = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrForbidden            = errors.New("forbidden")
	ErrPendingReview        = errors.New("price pending administrative review")
	ErrModerationPending    = errors.New("listing has not passed moderation")
	ErrSerializationFailure = errors.New("serialization failure")
)
