package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/speller/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List journaled sessions",
		Long: `List every session recorded in a journal database, oldest first, with
its settings and how many flashes, triggers, and decodes it journaled.

Example:
  speller sessions --db ./speller.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(f, st)

	sessions, err := st.ListSessions(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err)
	}

	return f.Success(sessions, func(w io.Writer) {
		renderSessions(w, sessions)
	})
}

func renderSessions(w io.Writer, sessions []store.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tGRID\tTHRESHOLD\tTRIGGER\tFLASHES\tTRIGGERS\tDECODES")
	for _, s := range sessions {
		cols := 0
		if len(s.Grid) > 0 {
			cols = len(s.Grid[0])
		}
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%g\t%s\t%d\t%d\t%d\n",
			s.ID, s.StartedAt.Format(time.RFC3339), len(s.Grid), cols,
			s.Threshold, s.Trigger, s.Flashes, s.Triggers, s.Decodes)
	}
	_ = tw.Flush()
}
