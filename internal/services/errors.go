package services

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateUser is returned when registering a taken username.
	ErrDuplicateUser = errors.New("username already registered")

	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is returned when a task id does not exist.
	ErrNotFound = errors.New("not found")
)
