package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/store"
)

// oneSymbolConfig flashes a 1x1 grid every millisecond, so any row trigger
// followed by any column trigger decodes "A".
const oneSymbolConfig = `grid: [["A"]]
interval_ms: 1
seed: 7
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func highProbabilities(n int) string {
	return strings.Repeat("0.9\n", n)
}

// execRun runs the run command with args; stdin feeds --input -.
func execRun(t *testing.T, format, stdin string, args ...string) (string, error) {
	t.Helper()
	opts := &RunOptions{
		RootOptions:      &RootOptions{Format: format},
		Stdin:            strings.NewReader(stdin),
		SessionGenerator: engine.NewFixedGenerator("run-1"),
	}
	cmd := newRunCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if args == nil {
		args = []string{} // nil makes cobra read os.Args
	}
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func TestRun_DecodesFromInput(t *testing.T) {
	cfg := writeFile(t, "speller.cue", oneSymbolConfig)

	out, err := execRun(t, "text", highProbabilities(60),
		"--config", cfg, "--input", "-", "--pace", "2ms")
	require.NoError(t, err)

	assert.Contains(t, out, "A\t(row 0, col 0)")
	assert.Contains(t, out, "Session run-1:")
}

func TestRun_JSON(t *testing.T) {
	cfg := writeFile(t, "speller.cue", oneSymbolConfig)

	out, err := execRun(t, "json", highProbabilities(60),
		"--config", cfg, "--input", "-", "--pace", "2ms")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "stdout must be a single envelope: %s", out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.Data.Session)
	require.NotEmpty(t, resp.Data.Decoded)
	assert.Equal(t, strings.Repeat("A", len(resp.Data.Decoded)), resp.Data.Text)
	assert.Equal(t, int64(len(resp.Data.Decoded)), resp.Data.Counters.Decodes)
}

func TestRun_EmptyInputExitsCleanly(t *testing.T) {
	out, err := execRun(t, "text", "", "--input", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "0 symbols decoded")
}

func TestRun_Errors(t *testing.T) {
	badCfg := writeFile(t, "bad.cue", "threshold: 2\n")

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "no source",
			args:     nil,
			wantCode: ExitCommandError,
			wantOut:  "no probability source",
		},
		{
			name:     "missing input file",
			args:     []string{"--input", filepath.Join(t.TempDir(), "nope.txt")},
			wantCode: ExitCommandError,
			wantOut:  "E_NOT_FOUND",
		},
		{
			name:     "missing config",
			args:     []string{"--input", "-", "--config", "nope.cue"},
			wantCode: ExitCommandError,
			wantOut:  "E_NOT_FOUND",
		},
		{
			name:     "invalid config",
			args:     []string{"--input", "-", "--config", badCfg},
			wantCode: ExitFailure,
			wantOut:  "E_CONFIG",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execRun(t, "text", "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestRun_JournalsSession(t *testing.T) {
	cfg := writeFile(t, "speller.cue", oneSymbolConfig)
	db := filepath.Join(t.TempDir(), "speller.db")

	out, err := execRun(t, "json", highProbabilities(40),
		"--config", cfg, "--input", "-", "--pace", "2ms", "--db", db)
	require.NoError(t, err)

	var run struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	require.NotEmpty(t, run.Data.Decoded)
	assert.Zero(t, run.Data.Counters.RecordErrors)

	t.Run("journal ends with stop reset", func(t *testing.T) {
		st, err := store.Open(db)
		require.NoError(t, err)
		defer st.Close()

		entries, err := st.ReplaySession(context.Background(), "run-1")
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		last := entries[len(entries)-1]
		assert.Equal(t, engine.EntryReset, last.Kind)
		assert.Equal(t, engine.ResetStop, last.Reason)
	})

	t.Run("sessions", func(t *testing.T) {
		out, code := execRoot(t, "--format", "json", "sessions", "--db", db)
		require.Equal(t, ExitSuccess, code, out)

		var resp struct {
			Data []struct {
				ID      string `json:"id"`
				Decodes int64  `json:"decodes"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "run-1", resp.Data[0].ID)
		assert.Equal(t, int64(len(run.Data.Decoded)), resp.Data[0].Decodes)
	})

	t.Run("transcript", func(t *testing.T) {
		out, code := execRoot(t, "--format", "json", "transcript", "--db", db)
		require.Equal(t, ExitSuccess, code, out)

		var resp struct {
			Data TranscriptResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "run-1", resp.Data.Session)
		assert.Equal(t, run.Data.Text, resp.Data.Text)
	})

	t.Run("replay", func(t *testing.T) {
		out, code := execRoot(t, "replay", "--db", db, "--session", "run-1")
		require.Equal(t, ExitSuccess, code, out)
		assert.Contains(t, out, "✓")
		assert.Contains(t, out, run.Data.Text)
	})

	t.Run("unknown session", func(t *testing.T) {
		out, code := execRoot(t, "transcript", "--db", db, "--session", "nope")
		assert.Equal(t, ExitCommandError, code)
		assert.Contains(t, out, "E_NOT_FOUND")
	})
}
