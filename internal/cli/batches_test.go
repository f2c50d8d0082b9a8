package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchesList(t *testing.T) {
	f := newFixture(t, 3, passingGates)

	out, err := execute(t, "--config", f.config, "batches", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No batches stored")

	_, err = execute(t, "--config", f.config, "run", "--batch-id", "batch-a")
	require.NoError(t, err)

	out, err = execute(t, "--config", f.config, "batches", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "batch-a\t")
	assert.Contains(t, out, "core 2.0.0")
	assert.Contains(t, out, "/4 passed")
}

func TestBatchesShow(t *testing.T) {
	f := newFixture(t, 3, passingGates)
	_, err := execute(t, "--config", f.config, "run", "--batch-id", "batch-s")
	require.NoError(t, err)

	out, err := execute(t, "--config", f.config, "--format", "json", "batches", "show", "batch-s")
	require.NoError(t, err)

	var detail BatchDetail
	resp := decodeResponse(t, out, &detail)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "batch-s", detail.ID)
	require.Len(t, detail.Runs, 4)
	assert.Equal(t, 0, detail.Runs[0].Scenario)
	assert.Equal(t, 1, detail.Runs[3].Scenario)
	for _, r := range detail.Runs {
		assert.NotEmpty(t, r.Digest)
		assert.LessOrEqual(t, r.Turns, 3)
	}
}

func TestBatchesShow_NotFound(t *testing.T) {
	f := newFixture(t, 3, passingGates)

	out, err := execute(t, "--config", f.config, "--format", "json", "batches", "show", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
