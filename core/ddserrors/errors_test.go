package ddserrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "BAD_PARAMETER", BadParameter.String())
	assert.Equal(t, "UNKNOWN", Kind(999).String())
}

func TestNewAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap("create_topic", OutOfResources, "pool exhausted", cause)
	require.Error(t, err)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Equal(t, OutOfResources, KindOf(err))
}

func TestKindOfWrappedStandard(t *testing.T) {
	inner := New("x", Timeout, "deadline")
	outer := fmt.Errorf("wrapped: %w", inner)
	assert.Equal(t, Timeout, KindOf(outer))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, ErrorKind, KindOf(errors.New("opaque")))
}

func TestKindOfNil(t *testing.T) {
	assert.Equal(t, OK, KindOf(nil))
}
