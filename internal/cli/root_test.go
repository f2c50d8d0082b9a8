package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passingGates never fail a batch of the synthetic engine.
const passingGates = `gates:
  max_failure_rate: 1
  min_avg_coverage: 0
  max_p95_latency_ms: 100000
  min_success_fraction: 0
`

type fixture struct {
	dir      string
	db       string
	config   string
	artifact string
}

// newFixture writes a two-scenario config (one toggle, two modes) into a
// temp dir. gates replaces the gates section.
func newFixture(t *testing.T, maxTurns int, gates string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		db:       filepath.Join(dir, "playtest.db"),
		config:   filepath.Join(dir, "playtest.yaml"),
		artifact: filepath.Join(dir, "artifacts"),
	}
	body := fmt.Sprintf(`core_version: "2.0.0"
database: %s
matrix:
  worlds: [ember]
  adventures: [prologue]
  locales: [en]
  variations: [control]
  toggles:
    - name: hardcore
  seeds_per_scenario: 1
  max_turns: %d
  timeout: 60s
  max_tokens: 50000
run:
  modes: [explorer, economy]
  artifact_dir: %s
%slog:
  level: error
`, f.db, maxTurns, f.artifact, gates)
	require.NoError(t, os.WriteFile(f.config, []byte(body), 0644))
	return f
}

// execute runs the root command and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeResponse parses a JSON envelope and decodes its payload into v.
// Error envelopes decode their details instead.
func decodeResponse(t *testing.T, raw string, v any) CLIResponse {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope), raw)

	resp := CLIResponse{Status: envelope.Status}
	payload := envelope.Data
	if envelope.Error != nil {
		resp.Error = &CLIError{Code: envelope.Error.Code, Message: envelope.Error.Message}
		payload = envelope.Error.Details
	}
	if v != nil && len(payload) > 0 {
		require.NoError(t, json.Unmarshal(payload, v))
	}
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "playtest", cmd.Use)
	assert.Contains(t, cmd.Long, "baselines")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"matrix"},
		{"run"},
		{"replay"},
		{"baseline", "list"},
		{"baseline", "show"},
		{"baseline", "compare"},
		{"batches", "list"},
		{"batches", "show"},
	}

	for _, path := range commands {
		t.Run(fmt.Sprint(path), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "playtest.yaml", configFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("log-file"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"db", "modes", "shards", "max-concurrent", "artifacts", "artifact-dir",
		"resume", "strict", "batch-id", "core-version", "save-baseline", "compare-baseline", "metrics-file"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s", name)
	}
}

func TestReplayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	replayCmd, _, err := cmd.Find([]string{"replay"})
	require.NoError(t, err)

	modeFlag := replayCmd.Flags().Lookup("mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, "explorer", modeFlag.DefValue)
	assert.NotNil(t, replayCmd.Flags().Lookup("scenario"))
	assert.NotNil(t, replayCmd.Flags().Lookup("run-id"))
	assert.NotNil(t, replayCmd.Flags().Lookup("db"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "--format", "invalid", "matrix")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogFileFlag(t *testing.T) {
	f := newFixture(t, 3, passingGates)
	logPath := filepath.Join(f.dir, "playtest.log")

	_, err := execute(t, "--config", f.config, "--verbose", "--log-file", logPath, "run")
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "batch started")
	assert.Contains(t, string(data), "run finished")
}
