package placement

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pserrors "pinscraper/pkg/errors"
)

func TestPlacementJSON(t *testing.T) {
	reg := Registry{
		"animals": LocalPlacement(),
		"food":    RemotePlacement("b1"),
	}
	data, err := json.Marshal(reg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"animals":"local","food":["remote","b1"]}`, string(data))

	var back Registry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, reg, back)
}

func TestPlacementJSONRejects(t *testing.T) {
	for _, in := range []string{`"remote"`, `["local","x"]`, `["remote"]`, `["remote",""]`, `42`} {
		var p Placement
		assert.Error(t, json.Unmarshal([]byte(in), &p), in)
	}
}

func TestLoadSave(t *testing.T) {
	root := t.TempDir()

	reg, err := Load(Path(root))
	require.NoError(t, err)
	assert.Nil(t, reg)

	require.NoError(t, Registry{"animals": RemotePlacement("b1")}.Save(Path(root)))
	reg, err = Load(Path(root))
	require.NoError(t, err)
	p, ok := reg.Lookup("animals")
	assert.True(t, ok)
	assert.Equal(t, RemotePlacement("b1"), p)
	assert.Equal(t, []string{"animals"}, reg.Categories())

	require.NoError(t, os.WriteFile(Path(root), []byte(`{"animals": "elsewhere"}`), 0644))
	_, err = Load(Path(root))
	assert.True(t, pserrors.IsCorruptState(err))
}

func TestSaveLocation(t *testing.T) {
	assert.Equal(t, "data/animals", LocalPlacement().SaveLocation("data", "pinterest", "animals"))
	assert.Equal(t, "s3://b1/pinterest/animals/", RemotePlacement("b1").SaveLocation("data", "pinterest", "animals"))
	assert.Equal(t, "remote(b1)", RemotePlacement("b1").String())
	assert.Equal(t, "local", LocalPlacement().String())
}
