package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/speller/internal/config"
)

// ValidateResult describes a valid configuration.
type ValidateResult struct {
	Valid      bool    `json:"valid"`
	Path       string  `json:"path"`
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
	IntervalMS int64   `json:"interval_ms"`
	Threshold  float64 `json:"threshold"`
	Trigger    string  `json:"trigger"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.cue>",
		Short: "Check a configuration file against the schema",
		Long: `Validate a CUE configuration file without starting the engine.

Reports the first schema violation with its file position. A valid file
prints the grid shape and the settings it resolves to.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	cfg, exitCode, code, err := loadConfig(path)
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			details := map[string]any{"path": cfgErr.Path}
			if cfgErr.Pos.IsValid() {
				details["line"] = cfgErr.Pos.Line()
				details["column"] = cfgErr.Pos.Column()
			}
			return f.FailWithDetails(exitCode, code, err, details)
		}
		return f.Fail(exitCode, code, err)
	}

	g, err := cfg.BuildGrid()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}

	res := ValidateResult{
		Valid:      true,
		Path:       path,
		Rows:       g.Rows(),
		Cols:       g.Cols(),
		IntervalMS: cfg.IntervalMS,
		Threshold:  cfg.Threshold,
		Trigger:    cfg.Trigger,
	}
	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid\n", path)
		fmt.Fprintf(w, "  grid: %dx%d, interval: %dms, threshold: %g, trigger: %s\n",
			res.Rows, res.Cols, res.IntervalMS, res.Threshold, res.Trigger)
	})
}
