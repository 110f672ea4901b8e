package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks validation failures on storage arguments.
var ErrInvalidInput = errors.New("invalid input")

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: context is nil", ErrInvalidInput)
	}
	return ctx.Err()
}

func validateString(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidInput, name)
	}
	return nil
}
