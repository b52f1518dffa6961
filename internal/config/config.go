// Package config loads speller configuration from CUE.
//
// A configuration file is unified against an embedded schema (#Config),
// which supplies defaults and range checks. Grid rectangularity is checked
// after decoding by grid.New.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
	"github.com/roach88/speller/internal/monitor"
)

//go:embed schema.cue
var schemaSrc string

// Config is a decoded configuration file.
type Config struct {
	Grid       [][]string `json:"grid,omitempty"`
	IntervalMS int64      `json:"interval_ms"`
	Threshold  float64    `json:"threshold"`
	Trigger    string     `json:"trigger"`
	LogWindow  int        `json:"log_window"`
	MinGapMS   int64      `json:"min_gap_ms"`
	Seed       uint64     `json:"seed"`
}

// Default returns the configuration an empty file produces.
func Default() Config {
	return Config{
		IntervalMS: flash.DefaultInterval.Milliseconds(),
		Threshold:  monitor.DefaultThreshold,
		Trigger:    monitor.ModeLevel.String(),
		LogWindow:  flash.DefaultLogCapacity,
	}
}

// Error is a schema violation with its CUE position.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	loc := ""
	if e.Pos.IsValid() {
		loc = fmt.Sprintf("%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		return fmt.Sprintf("%s%s: %s", loc, e.Path, e.Message)
	}
	return loc + e.Message
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source. filename is used in error positions.
func Parse(src []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	v := def.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}

	if cfg.Grid != nil {
		if _, err := grid.New(cfg.Grid); err != nil {
			return Config{}, fmt.Errorf("%s: grid: %w", filename, err)
		}
	}
	return cfg, nil
}

// BuildGrid returns the configured grid, or the reference grid when none
// is set.
func (c Config) BuildGrid() (*grid.Grid, error) {
	if c.Grid == nil {
		return grid.Default(), nil
	}
	return grid.New(c.Grid)
}

// Interval returns the flash cadence.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// MinGap returns the decoder trigger gap.
func (c Config) MinGap() time.Duration {
	return time.Duration(c.MinGapMS) * time.Millisecond
}

// Mode returns the monitor trigger mode.
func (c Config) Mode() (monitor.Mode, error) {
	return monitor.ParseMode(c.Trigger)
}

// EngineOptions converts the configuration into engine options.
func (c Config) EngineOptions() ([]engine.Option, error) {
	mode, err := c.Mode()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithInterval(c.Interval()),
		engine.WithThreshold(c.Threshold),
		engine.WithTriggerMode(mode),
		engine.WithLogWindow(c.LogWindow),
		engine.WithMinGap(c.MinGap()),
		engine.WithPicker(flash.NewRandomPicker(c.Seed)),
	}, nil
}

// formatCUEError returns the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	out := &Error{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
