package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBotNotFound       = errors.New("bot not found")
	ErrSourceNotFound    = errors.New("knowledge source not found")
	ErrProvider          = errors.New("provider failure")
	ErrIndex             = errors.New("vector index failure")
	ErrQuotaExhausted    = errors.New("message quota exhausted")
	ErrAdmissionRejected = errors.New("admission rejected")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
