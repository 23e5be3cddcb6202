package domain

import "errors"

// Persistence error variants. Repository implementations map driver errors
// onto these so that usecases never inspect driver-specific codes.
var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record already exists")
	ErrUnavailable = errors.New("storage unavailable")
)
