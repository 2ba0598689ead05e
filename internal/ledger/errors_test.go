package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := NewInvalidCommand("transaction", 12, "no pending changes")
	assert.Equal(t, "INVALID_COMMAND: no pending changes (transaction=12)", err.Error())

	err.Op = "commit"
	assert.Equal(t, "INVALID_COMMAND: commit: no pending changes (transaction=12)", err.Error())

	assert.Equal(t, "NOT_FOUND: group not found", NewNotFound("group", 0, "group not found").Error())
}

func TestClassifiers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("delete share: %w", NewNotFound("share", 3, "creditor share does not exist"))

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsInvalidCommand(wrapped))
	assert.False(t, IsPermissionDenied(wrapped))
	assert.Equal(t, ErrCodeNotFound, CodeOf(wrapped))

	assert.True(t, IsPermissionDenied(NewPermissionDenied("transaction", 1, "read only")))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
