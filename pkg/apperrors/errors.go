// Package apperrors defines the error classes the pipeline distinguishes:
// malformed envelopes, storage failures and isolated hook failures.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

var (
	// ErrMalformedEnvelope is returned when a payload cannot be parsed or lacks mandatory fields.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrStorageUnavailable marks transient storage failures. Redelivery is the retry mechanism.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Malformed wraps a parse failure so that errors.Is(err, ErrMalformedEnvelope) holds.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedEnvelope, fmt.Sprintf(format, args...))
}

// Storage builds the error a repository returns when a statement fails.
// The result carries a 503 httperror for the ops surface and matches ErrStorageUnavailable.
func Storage(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	return errors.Join(ErrStorageUnavailable, httperror.NewHTTPErrorf(http.StatusServiceUnavailable, "%s: %v", msg, err))
}

// IsMalformed reports whether err is a malformed envelope error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedEnvelope)
}

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// HookExecutionError is produced when a registered callback fails or panics.
// It never leaves the hook registry as a returned error of the dispatcher.
type HookExecutionError struct {
	Hook string
	Kind string
	Err  error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("hook '%s' for '%s' failed: %v", e.Hook, e.Kind, e.Err)
}

func (e *HookExecutionError) Unwrap() error {
	return e.Err
}
