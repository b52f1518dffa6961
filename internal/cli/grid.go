package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// GridOptions holds flags for the grid command.
type GridOptions struct {
	*RootOptions
	Config string
}

// GridResult is the grid command's JSON payload.
type GridResult struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells [][]string `json:"cells"`
}

// NewGridCommand creates the grid command.
func NewGridCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GridOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the symbol grid",
		Long: `Print the symbol grid the engine would flash: the reference 6x6 grid,
or the one a configuration file defines.

Example:
  speller grid
  speller grid --config ./speller.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrid(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE configuration file")
	return cmd
}

func runGrid(opts *GridOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, exitCode, code, err := loadConfig(opts.Config)
	if err != nil {
		return f.Fail(exitCode, code, err)
	}
	g, err := cfg.BuildGrid()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}

	res := GridResult{Rows: g.Rows(), Cols: g.Cols(), Cells: g.Cells()}
	return f.Success(res, func(w io.Writer) {
		fmt.Fprintln(w, g.String())
	})
}
