package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("invalid input")
	ErrSubmit        = errors.New("submit failed")
	ErrRemoteTask    = errors.New("remote task failed")
	ErrPayment       = errors.New("payment failed")
	ErrDownload      = errors.New("download failed")
	ErrTimeout       = errors.New("generation timed out")
	ErrConfiguration = errors.New("configuration error")
	ErrNoPendingFlow = errors.New("no pending generation")
)

// RemoteError describes a failed call against the generation API. Kind is one
// of the remote sentinels above so callers can match with errors.Is.
type RemoteError struct {
	Kind       error
	Op         string
	StatusCode int
	Payload    []byte
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validationf returns an ErrValidation wrapping a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// PayloadOf extracts the raw remote payload carried by err, if any.
func PayloadOf(err error) []byte {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Payload
	}
	return nil
}
