package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/errors"
)

type fakeConnector struct{ core.Connector }

func fakeFactory(_ *core.Deps) (core.Connector, error) {
	return &fakeConnector{}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("alpha", fakeFactory))
	assert.True(t, r.Has("alpha"))

	c, err := r.Create("alpha", nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("alpha", fakeFactory))
	err := r.Register("alpha", fakeFactory)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCreateUnknownFails(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("missing", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestListIsSorted(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("zeta", fakeFactory))
	require.NoError(t, r.Register("alpha", fakeFactory))
	require.NoError(t, r.Register("mid", fakeFactory))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.List())
}

func TestClear(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("alpha", fakeFactory))
	r.Clear()
	assert.False(t, r.Has("alpha"))
	assert.Empty(t, r.List())
}
