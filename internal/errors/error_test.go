package errors

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestConnectionError(t *testing.T) {
	// Arrange
	cause := errors.New("dial tcp: refused")

	// Act
	err := NewConnectionError(cause)

	// Assert
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsMailboxError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "refused")
	assert.Nil(t, NewConnectionError(nil))
}

func TestMailboxError(t *testing.T) {
	// Arrange
	cause := errors.New("no such mailbox")

	// Act
	err := NewMailboxError("Archive", cause)

	// Assert
	assert.True(t, IsMailboxError(err))
	assert.False(t, IsFetchError(err))
	assert.Contains(t, err.Error(), "Archive")
	assert.Nil(t, NewMailboxError("Archive", nil))
}

func TestFetchError_WrappedClassification(t *testing.T) {
	// Arrange: classification must survive wrapping
	err := errors.Wrap(NewFetchError(errors.New("bad response")), "sync failed")

	// Assert
	assert.True(t, IsFetchError(err))
	assert.False(t, IsConnectionError(err))
}

func TestIsDisconnect(t *testing.T) {
	assert.True(t, IsDisconnect(errors.New("imap: connection closed")))
	assert.True(t, IsDisconnect(errors.New("read tcp: i/o timeout")))
	assert.True(t, IsDisconnect(errors.Wrap(io.EOF, "read failed")))
	assert.True(t, IsDisconnect(errors.New("write: broken pipe")))
	assert.False(t, IsDisconnect(nil))
	assert.False(t, IsDisconnect(errors.New("NO invalid credentials")))
}
