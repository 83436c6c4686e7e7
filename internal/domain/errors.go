package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLeaseHeld = errors.New("another run holds the lease")
	ErrNoStore   = errors.New("row store is not configured")
	ErrAllFailed = errors.New("all message sends failed")
)

// ConfigurationError is a missing or invalid setting. It is raised before any mutation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// RowStoreError wraps a failed row store operation.
type RowStoreError struct {
	Op  string
	Err error
}

func (e *RowStoreError) Error() string {
	return fmt.Sprintf("row store %s: %v", e.Op, e.Err)
}

func (e *RowStoreError) Unwrap() error {
	return e.Err
}

// MessagingError is a rejected or failed send. Code is machine readable.
type MessagingError struct {
	Chat   string
	Code   string
	Reason string
	Err    error
}

const (
	CodeTimeout     = "timeout"
	CodeInvalidChat = "invalid_chat"
	CodeTransport   = "transport"
)

func (e *MessagingError) Error() string {
	return fmt.Sprintf("send to %s failed (%s): %s", e.Chat, e.Code, e.Reason)
}

func (e *MessagingError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the machine-readable code from a messaging error.
func ErrorCode(err error) string {
	var me *MessagingError
	if errors.As(err, &me) {
		return me.Code
	}
	return CodeTransport
}
