package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix_Text(t *testing.T) {
	f := newFixture(t, 3, passingGates)

	out, err := execute(t, "--config", f.config, "matrix")
	require.NoError(t, err)
	assert.Contains(t, out, "0\tember:prologue:en::control:0\thardcore=false\n")
	assert.Contains(t, out, "1\tember:prologue:en::control:0\thardcore=true\n")
	assert.Contains(t, out, "2 scenario(s)")
}

func TestMatrix_JSON(t *testing.T) {
	f := newFixture(t, 3, passingGates)

	out, err := execute(t, "--config", f.config, "--format", "json", "matrix")
	require.NoError(t, err)

	var result MatrixResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, result.Count)
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "ember", result.Scenarios[0].World)
	assert.Equal(t, 3, result.Scenarios[1].MaxTurns)
}

func TestMatrix_MissingConfig(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--format", "json", "matrix")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_CONFIG_READ", resp.Error.Code)
}
