package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/grid"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string
}

// ReplayCommandResult is the replay command's JSON payload.
type ReplayCommandResult struct {
	Session string `json:"session"`
	Entries int    `json:"entries"`
	*engine.ReplayResult
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-decode a journaled session and verify its transcript",
		Long: `Replay a session's journal through a fresh flash log and decoder, and
compare the symbols it decodes with the ones the session recorded.

Defaults to the most recent session.

Exit codes:
  0  replay reproduced the recorded transcript
  1  replay diverged from the journal
  2  command error (database or session not found)

Example:
  speller replay --db ./speller.db
  speller replay --db ./speller.db --session 0190a5c2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openExistingStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(f, st)

	sess, err := resolveSession(ctx, f, st, opts.Session)
	if err != nil {
		return err
	}

	g, err := grid.New(sess.Grid)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeReplay, fmt.Errorf("session %s: %w", sess.ID, err))
	}

	entries, err := st.ReplaySession(ctx, sess.ID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err)
	}
	f.VerboseLog("replaying %d journal entries of session %s", len(entries), sess.ID)

	rr, err := engine.Replay(g, entries, sess.ReplayOptions())
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeReplay, err)
	}

	res := ReplayCommandResult{Session: sess.ID, Entries: len(entries), ReplayResult: rr}
	if !rr.Match {
		return f.FailWithDetails(ExitFailure, ErrCodeReplay,
			errors.New("replay diverged from the recorded transcript"), res)
	}

	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Session %s: replayed %d entries\n", res.Session, res.Entries)
		fmt.Fprintf(w, "✓ %d symbols reproduced: %q\n", len(rr.Decoded), rr.Text)
	})
}
