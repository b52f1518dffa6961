package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/speller/internal/grid"
	"github.com/roach88/speller/internal/monitor"
)

func TestParse_EmptyIsDefault(t *testing.T) {
	cfg, err := Parse([]byte(""), "empty.cue")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	g, err := cfg.BuildGrid()
	require.NoError(t, err)
	assert.Equal(t, 5, g.Rows())
	assert.Equal(t, 6, g.Cols())
	assert.Equal(t, time.Second, cfg.Interval())
}

func TestParse_Overrides(t *testing.T) {
	src := `
interval_ms: 250
threshold:   0.55
trigger:     "edge"
log_window:  8
min_gap_ms:  120
seed:        42
grid: [
	["yes", "no"],
	["help", "stop"],
]
`
	cfg, err := Parse([]byte(src), "speller.cue")
	require.NoError(t, err)

	assert.Equal(t, int64(250), cfg.IntervalMS)
	assert.InDelta(t, 0.55, cfg.Threshold, 1e-9)
	assert.Equal(t, "edge", cfg.Trigger)
	assert.Equal(t, 8, cfg.LogWindow)
	assert.Equal(t, 120*time.Millisecond, cfg.MinGap())
	assert.Equal(t, uint64(42), cfg.Seed)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, monitor.ModeEdge, mode)

	g, err := cfg.BuildGrid()
	require.NoError(t, err)
	assert.Equal(t, "stop", g.At(1, 1))

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 6)
}

func TestParse_IntegerThreshold(t *testing.T) {
	cfg, err := Parse([]byte("threshold: 1"), "t.cue")
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Threshold)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		path string
	}{
		{name: "threshold above one", src: "threshold: 1.5", path: "threshold"},
		{name: "negative threshold", src: "threshold: -0.1", path: "threshold"},
		{name: "zero interval", src: "interval_ms: 0", path: "interval_ms"},
		{name: "unknown trigger", src: `trigger: "pulse"`, path: "trigger"},
		{name: "empty log window", src: "log_window: 0", path: "log_window"},
		{name: "unknown field", src: "thresold: 0.4", path: "thresold"},
		{name: "non-string symbol", src: "grid: [[1, 2]]", path: "grid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			require.Error(t, err)

			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			assert.Contains(t, cfgErr.Path, tt.path)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte("threshold: ["), "broken.cue")
	require.Error(t, err)

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, cfgErr.Pos.IsValid())
	assert.Contains(t, cfgErr.Error(), "broken.cue:")
}

func TestParse_RaggedGrid(t *testing.T) {
	_, err := Parse([]byte(`grid: [["a", "b"], ["c"]]`), "ragged.cue")
	require.Error(t, err)
	assert.True(t, grid.IsShapeError(err))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speller.cue")
	require.NoError(t, os.WriteFile(path, []byte("threshold: 0.4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, cfg.Threshold, 1e-9)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "threshold: too high", (&Error{Path: "threshold", Message: "too high"}).Error())
	assert.Equal(t, "bad", (&Error{Message: "bad"}).Error())
}
