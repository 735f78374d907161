package common

import (
	"errors"
	"fmt"
)

// Layers a payload can fail to decode at.
const (
	LayerHex  = "hex"
	LayerUTF8 = "utf8"
	LayerJSON = "json"
)

// DecodeError means the payload could not be turned into a Request.
// It always leads to a report and a reject.
type DecodeError struct {
	Layer string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Layer, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedOperationError is a well-formed request naming an operation
// the registry does not know. It is reported but still accepted.
type UnsupportedOperationError struct {
	Op string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported op: %s", e.Op)
}

// TransportError means the coordinator could not be reached or answered
// with a non-2xx status. It is never reported to the coordinator.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnexpectedError wraps anything else that went wrong during a cycle,
// including recovered panics.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// IsTransportError checks if err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecodeError checks if err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsUnsupportedOperation checks if err is, or wraps, an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	var ue *UnsupportedOperationError
	return errors.As(err, &ue)
}
