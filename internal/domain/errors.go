package domain

import "errors"

// Store outcomes
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrPoolExhausted  = errors.New("connection pool exhausted")
)

// Account errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
)
