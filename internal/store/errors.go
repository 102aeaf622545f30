package store

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrInvalidTransition = errors.New("invalid entry transition")
	ErrQueueEmpty        = errors.New("no waiting entries")
	ErrConflict          = errors.New("concurrent update conflict")
)
