package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/speller/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>",
		Short: "Run YAML speller scenarios",
		Long: `Run scenario files against a deterministic engine and check their
expectations. Every run also replays its own journal and fails if the replay
does not reproduce the decoded symbols.

A directory is searched recursively for *.yaml and *.yml files.

Exit codes:
  0  all scenarios passed
  1  one or more scenarios failed
  2  command error (path not found, no scenarios)

Example:
  speller test ./scenarios
  speller test ./scenarios --filter edge --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run files whose name contains this text")
	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	paths, err := harness.FindScenarios(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err)
	}
	if opts.Filter != "" {
		kept := paths[:0]
		for _, p := range paths {
			if strings.Contains(filepath.Base(p), opts.Filter) {
				kept = append(kept, p)
			}
		}
		paths = kept
	}
	if len(paths) == 0 {
		return f.Fail(ExitCommandError, ErrCodeScenario, fmt.Errorf("no scenarios found in %s", path))
	}
	f.VerboseLog("running %d scenarios", len(paths))

	res := harness.RunFiles(paths)
	if res.Failed > 0 {
		if f.JSON() {
			return f.FailWithDetails(ExitFailure, ErrCodeScenario,
				fmt.Errorf("%d of %d scenarios failed", res.Failed, res.Total), res)
		}
		renderSuite(f.Writer, res)
		e := NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total))
		e.reported = true
		return e
	}

	return f.Success(res, func(w io.Writer) {
		renderSuite(w, res)
	})
}

func renderSuite(w io.Writer, res *harness.SuiteResult) {
	for _, fail := range res.Failures {
		name := fail.Name
		if name == "" {
			name = filepath.Base(fail.Path)
		}
		fmt.Fprintf(w, "✗ %s (%s)\n", name, fail.Path)
		for _, line := range strings.Split(fail.Error, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	fmt.Fprintf(w, "%d scenarios: %d passed, %d failed\n", res.Total, res.Passed, res.Failed)
}
