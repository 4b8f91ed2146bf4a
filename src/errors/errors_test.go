package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCode(t *testing.T) {
	err := New(ValidationFailed, "missing field: email")
	assert.Equal(t, "missing field: email", err.Error())
	assert.Equal(t, ValidationFailed, CodeOf(err))
}

func TestWrapPreservesOriginal(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, PublishFailed, "repository create failed")

	require.Error(t, err)
	assert.Equal(t, "repository create failed: connection refused", err.Error())
	assert.Equal(t, PublishFailed, CodeOf(err))
	assert.ErrorIs(t, stderrors.Unwrap(err), cause)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, PublishFailed, "nope"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(New(GenerationFailed, "empty response"), Fields{"round": 2})
	assert.Contains(t, err.Error(), "empty response")
	assert.Contains(t, err.Error(), "round=2")
	assert.Equal(t, GenerationFailed, CodeOf(err))
}

func TestWithFieldsForeignError(t *testing.T) {
	err := WithFields(fmt.Errorf("plain"), Fields{"task": "abc"})
	assert.Equal(t, Unknown, CodeOf(err))
	assert.Contains(t, err.Error(), "task=abc")
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(fmt.Errorf("row missing"), NotFound, "no round 1 deployment")
	assert.ErrorIs(t, err, New(NotFound, "anything"))
	assert.NotErrorIs(t, err, New(PublishFailed, "anything"))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Unknown, CodeOf(fmt.Errorf("plain")))
}
