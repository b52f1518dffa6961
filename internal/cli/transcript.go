package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/speller/internal/decoder"
)

// TranscriptOptions holds flags for the transcript command.
type TranscriptOptions struct {
	*RootOptions
	Database string
	Session  string
}

// TranscriptResult is the transcript command's JSON payload.
type TranscriptResult struct {
	Session string            `json:"session"`
	Symbols []decoder.Decoded `json:"symbols"`
	Text    string            `json:"text"`
}

// NewTranscriptCommand creates the transcript command.
func NewTranscriptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranscriptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Print the text a session spelled",
		Long: `Print the decoded symbols a session journaled and the text they spell.
Defaults to the most recent session.

Example:
  speller transcript --db ./speller.db
  speller transcript --db ./speller.db --session 0190a5c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscript(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runTranscript(opts *TranscriptOptions, cmd *cobra.Command) error {
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

	entries, err := st.ReadDecodes(ctx, sess.ID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err)
	}

	res := TranscriptResult{Session: sess.ID, Symbols: make([]decoder.Decoded, 0, len(entries))}
	for _, e := range entries {
		if e.Decoded != nil {
			res.Symbols = append(res.Symbols, *e.Decoded)
		}
	}
	res.Text = decoder.Text(res.Symbols)

	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Session %s: %d symbols\n", res.Session, len(res.Symbols))
		fmt.Fprintln(w, res.Text)
	})
}
