package handle

import (
	"testing"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePinUnpin(t *testing.T) {
	tbl := New()
	h := tbl.Create("entity-a")

	v, err := tbl.Pin(h)
	require.NoError(t, err)
	assert.Equal(t, "entity-a", v)
	assert.Equal(t, 1, tbl.PinCount(h))

	tbl.Unpin(h)
	assert.Equal(t, 0, tbl.PinCount(h))
}

func TestCloseBlockedByOutstandingPin(t *testing.T) {
	tbl := New()
	h := tbl.Create("x")
	_, err := tbl.Pin(h)
	require.NoError(t, err)

	err = tbl.Close(h)
	require.Error(t, err)
	assert.Equal(t, ddserrors.PreconditionNotMet, ddserrors.KindOf(err))

	tbl.Unpin(h)
	require.NoError(t, tbl.Close(h))
	assert.Equal(t, 0, tbl.Len())
}

func TestHandleNeverReused(t *testing.T) {
	tbl := New()
	h1 := tbl.Create("a")
	require.NoError(t, tbl.Close(h1))
	h2 := tbl.Create("b")
	assert.NotEqual(t, h1, h2)
}

func TestPinUnknownHandle(t *testing.T) {
	tbl := New()
	_, err := tbl.Pin(Handle(999))
	require.Error(t, err)
	assert.Equal(t, ddserrors.BadParameter, ddserrors.KindOf(err))
}
