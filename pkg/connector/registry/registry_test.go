package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/connector/core"
	"github.com/tablecast/tablecast/pkg/errors"
)

func TestRegisterAndCreateSource(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterSource("fake", func(cfg *config.BaseConfig) (core.Source, error) {
		return nil, nil
	})
	require.NoError(t, err)

	assert.True(t, r.HasSource("fake"))
	assert.Equal(t, []string{"fake"}, r.ListSources())

	_, err = r.CreateSource("fake", &config.BaseConfig{Name: "fake"})
	assert.NoError(t, err)
}

func TestRegisterSourceDuplicate(t *testing.T) {
	r := NewRegistry()

	factory := func(cfg *config.BaseConfig) (core.Source, error) { return nil, nil }
	require.NoError(t, r.RegisterSource("dup", factory))

	err := r.RegisterSource("dup", factory)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCreateUnknownConnector(t *testing.T) {
	r := NewRegistry()

	_, err := r.CreateSource("missing", &config.BaseConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = r.CreateDestination("missing", &config.BaseConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestCreateWrapsFactoryError(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterDestination("broken", func(cfg *config.BaseConfig) (core.Destination, error) {
		return nil, errors.New(errors.ErrorTypeValidation, "bad config")
	}))

	_, err := r.CreateDestination("broken", &config.BaseConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestListInfoSorted(t *testing.T) {
	r := NewRegistry()

	r.RegisterInfo(&ConnectorInfo{Name: "widecolumn", Type: "source"})
	r.RegisterInfo(&ConnectorInfo{Name: "widecolumn", Type: "destination"})
	r.RegisterInfo(&ConnectorInfo{Name: "csv", Type: "source"})

	infos := r.ListInfo()
	require.Len(t, infos, 3)
	assert.Equal(t, "csv", infos[0].Name)
	assert.Equal(t, "destination", infos[1].Type)
	assert.Equal(t, "source", infos[2].Type)
}
