package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindNetwork covers transport failures and non-2xx answers. Retryable.
	KindNetwork ErrorKind = "network"
	// KindDecode covers payloads of an unexpected shape.
	KindDecode ErrorKind = "decode"
)

// ErrSuperseded is returned to a caller whose request was replaced by a newer
// one of the same kind before it completed. Its result is discarded.
var ErrSuperseded = errors.New("request superseded by a newer one")

// FetchError is a failed call to the analytics API.
type FetchError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Kind, e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *FetchError) Retryable() bool { return e.Kind == KindNetwork }

// NewNetworkError wraps a transport or status failure.
func NewNetworkError(endpoint string, status int, err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Endpoint: endpoint, Status: status, Err: err}
}

// NewDecodeError wraps a shape failure.
func NewDecodeError(endpoint string, err error) *FetchError {
	return &FetchError{Kind: KindDecode, Endpoint: endpoint, Err: err}
}

// IsRetryable reports whether err is a retryable FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable()
}

// ToSlotError converts err into its view form. Decode failures get a generic
// message; the details stay in the logs.
func ToSlotError(err error) *SlotError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Kind == KindDecode {
			return &SlotError{Kind: KindDecode, Message: "Received an unexpected response from the analytics service."}
		}
		return &SlotError{Kind: KindNetwork, Message: "Could not reach the analytics service.", Retryable: true}
	}
	return &SlotError{Kind: KindNetwork, Message: err.Error(), Retryable: true}
}
