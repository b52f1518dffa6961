package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speller/internal/store"
)

// execRoot runs the full CLI and returns stdout and the exit code.
func execRoot(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return stdout.String() + stderr.String(), code
}

func TestValidate(t *testing.T) {
	good := writeFile(t, "good.cue", "interval_ms: 250\nthreshold: 0.5\ntrigger: \"edge\"\n")

	out, code := execRoot(t, "validate", good)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "grid: 5x6, interval: 250ms, threshold: 0.5, trigger: edge")

	out, code = execRoot(t, "--format", "json", "validate", good)
	require.Equal(t, ExitSuccess, code, out)
	var resp struct {
		Data ValidateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, int64(250), resp.Data.IntervalMS)
}

func TestValidate_SchemaError(t *testing.T) {
	bad := writeFile(t, "bad.cue", "interval_ms: 250\nthreshold: 1.5\n")

	out, code := execRoot(t, "--format", "json", "validate", bad)
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "threshold")

	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details["path"], "threshold")
}

func TestValidate_Missing(t *testing.T) {
	out, code := execRoot(t, "validate", filepath.Join(t.TempDir(), "absent.cue"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "E_NOT_FOUND")
}

func TestGrid(t *testing.T) {
	out, code := execRoot(t, "grid")
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "A B C D E F")

	cfg := writeFile(t, "yes-no.cue", `grid: [["yes", "no"], ["help", "stop"]]`)
	out, code = execRoot(t, "--format", "json", "grid", "--config", cfg)
	require.Equal(t, ExitSuccess, code, out)

	var resp struct {
		Data GridResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Rows)
	assert.Equal(t, 2, resp.Data.Cols)
	assert.Equal(t, [][]string{{"yes", "no"}, {"help", "stop"}}, resp.Data.Cells)
}

func TestGrid_Ragged(t *testing.T) {
	cfg := writeFile(t, "ragged.cue", `grid: [["a", "b"], ["c"]]`)
	out, code := execRoot(t, "grid", "--config", cfg)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "E_CONFIG")
}

func TestStoreCommands_MissingDatabase(t *testing.T) {
	absent := filepath.Join(t.TempDir(), "absent.db")
	for _, name := range []string{"sessions", "transcript", "replay"} {
		t.Run(name, func(t *testing.T) {
			out, code := execRoot(t, name, "--db", absent)
			assert.Equal(t, ExitCommandError, code)
			assert.Contains(t, out, "E_NOT_FOUND")
		})
	}
}

func TestStoreCommands_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, code := execRoot(t, "sessions", "--db", db)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "No sessions recorded.")

	out, code = execRoot(t, "replay", "--db", db)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "database has no sessions")
}

func TestTestCommand(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	out, code := execRoot(t, "test", scenarios)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "7 scenarios: 7 passed, 0 failed")

	out, code = execRoot(t, "--format", "json", "test", scenarios, "--filter", "edge")
	require.Equal(t, ExitSuccess, code, out)
	var resp struct {
		Data struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
}

func TestTestCommand_Failure(t *testing.T) {
	path := writeFile(t, "wrong.yaml", `name: wrong
steps:
  - do: start
  - do: flash
    axis: row
    index: 0
  - do: sample
    value: 0.9
expect:
  state: EMPTY
`)
	out, code := execRoot(t, "test", path)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "1 scenarios: 0 passed, 1 failed")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, code := execRoot(t, "test", t.TempDir())
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "no scenarios found")

	out, code = execRoot(t, "test", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "E_NOT_FOUND")
}
