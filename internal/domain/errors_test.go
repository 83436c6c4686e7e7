package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowStoreErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("assign: %w", &RowStoreError{Op: "read backlog", Err: context.DeadlineExceeded})

	var rse *RowStoreError
	assert.True(t, errors.As(err, &rse))
	assert.Equal(t, "read backlog", rse.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrorCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &MessagingError{Chat: "@x", Code: "403", Reason: "bot was blocked"})
	assert.Equal(t, "403", ErrorCode(err))
	assert.Equal(t, CodeTransport, ErrorCode(errors.New("plain")))
}

func TestConfigurationErrorMessage(t *testing.T) {
	assert.Equal(t, "configuration: assign.base: must not be negative",
		(&ConfigurationError{Field: "assign.base", Reason: "must not be negative"}).Error())
	assert.Equal(t, "configuration: no destinations",
		(&ConfigurationError{Reason: "no destinations"}).Error())
}
