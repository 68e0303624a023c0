package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced through the API envelope. Error() is the stable wire code.
var (
	ErrDuplicateMail     = errors.New("error-dup-email")
	ErrDuplicateName     = errors.New("error-dup-username")
	ErrNoSuchUser        = errors.New("error-no-user")
	ErrWrongPassword     = errors.New("error-wrong-password")
	ErrSessionExpired    = errors.New("error-login-expired")
	ErrNoSuchDevice      = errors.New("error-no-device")
	ErrNoSuchOwnedDevice = errors.New("error-device-not-owned")
	ErrInvalidRequest    = errors.New("error-invalid-request")
)

// Wire codes for wrapped failures
const (
	CodeStore   = "error-net"
	CodeDecode  = "error-decode"
	CodeUnknown = "error-unknown"
)

// StoreError wraps a fault from the backing store
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a store failure of op. A nil err stays nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", CodeStore, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// DecodeError wraps a malformed telemetry payload
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", CodeDecode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var kinds = []error{
	ErrDuplicateMail,
	ErrDuplicateName,
	ErrNoSuchUser,
	ErrWrongPassword,
	ErrSessionExpired,
	ErrNoSuchDevice,
	ErrNoSuchOwnedDevice,
	ErrInvalidRequest,
}

// Code maps err to the string placed in a response envelope. nil maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return CodeStore
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return CodeDecode
	}
	return CodeUnknown
}
