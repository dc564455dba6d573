package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrTryoutNotFound     = errors.New("tryout not found")
	ErrTryoutNotAvailable = errors.New("tryout not available")
	ErrWrongPassword      = errors.New("wrong tryout password")

	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrClosedAttempt      = errors.New("attempt already completed")
	ErrAttemptNotFinished = errors.New("attempt not finished yet")
	ErrMalformedAnswer    = errors.New("answer shape does not match question type")
	ErrSectionMismatch    = errors.New("question does not belong to the active section")
	ErrEmptyTryout        = errors.New("tryout has no sections")
)
