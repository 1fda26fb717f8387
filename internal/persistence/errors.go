package persistence

import "errors"

var (
	// ErrInvalidConfig indicates invalid persistence configuration.
	ErrInvalidConfig = errors.New("invalid persistence configuration")

	// ErrCorruptSnapshot indicates a stored snapshot that cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
