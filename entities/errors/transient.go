package errors

import (
	"errors"
	"fmt"
)

func IsTransient(err error) bool {
	if errors.Is(err, TooManyRequests) {
		return true
	}

	return false
}

var TooManyRequests = errors.New("too many requests")

func NewTooManyRequests(msg string) error {
	return fmt.Errorf("%s: %w", msg, TooManyRequests)
}
