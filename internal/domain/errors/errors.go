// Package errors defines the error categories the domain layer reports.
// Call sites wrap the sentinels with fmt.Errorf and %w to add context;
// callers classify failures with the Is helpers.
package errors

import "errors"

var (
	// ErrNotFound reports a lookup that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a write that collided with an existing
	// record, such as a duplicate transaction hash.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput reports input that fails domain validation.
	ErrInvalidInput = errors.New("invalid input")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
