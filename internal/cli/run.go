package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/httpapi"
	"github.com/roach88/speller/internal/monitor"
	"github.com/roach88/speller/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Input    string
	HTTP     string
	Start    bool
	Pace     time.Duration

	// Stdin is read for --input -. Defaults to the command's input.
	Stdin io.Reader

	// SessionGenerator overrides session ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionIDGenerator
}

// RunResult is what a finished run prints.
type RunResult struct {
	Session  string            `json:"session"`
	Decoded  []decoder.Decoded `json:"decoded"`
	Text     string            `json:"text"`
	Counters engine.Counters   `json:"counters"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Flash the grid and decode symbols from a probability stream",
		Long: `Start the speller engine: flash rows and columns of the grid, read
classifier probabilities, and print each symbol as it is decoded.

Probabilities come from a newline-delimited file (--input, "-" for stdin),
one bare number or {"probability": x} object per line, or from POST /samples
on the HTTP control server (--http). With --input the run ends when the
input is exhausted; otherwise it runs until interrupted.

With --db every flash, trigger, and decode is journaled to SQLite so the
session can be replayed later.

Exit codes:
  0  input exhausted or interrupted
  1  invalid config, or the probability stream failed
  2  command error (missing files, no probability source)

Example:
  speller run --config ./speller.cue --input probs.txt --db ./speller.db
  speller run --http :8080 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeller(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE configuration file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (created if missing)")
	cmd.Flags().StringVar(&opts.Input, "input", "", `probability file, or "-" for stdin`)
	cmd.Flags().StringVar(&opts.HTTP, "http", "", "serve the HTTP control API on this address")
	cmd.Flags().BoolVar(&opts.Start, "start", true, "start flashing immediately")
	cmd.Flags().DurationVar(&opts.Pace, "pace", 0, "delay between input samples (default: the flash interval)")

	return cmd
}

func runSpeller(opts *RunOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f.GetErrWriter(), &slog.HandlerOptions{
		Level: logLevel,
	})))

	if opts.Input == "" && opts.HTTP == "" {
		return f.Fail(ExitCommandError, ErrCodeSource,
			errors.New("no probability source: set --input or --http"))
	}

	cfg, exitCode, code, err := loadConfig(opts.Config)
	if err != nil {
		return f.Fail(exitCode, code, err)
	}
	g, err := cfg.BuildGrid()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}
	engOpts, err := cfg.EngineOptions()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}

	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		engOpts = append(engOpts, engine.WithRecorder(st.Recorder()))
	}

	var (
		mu      sync.Mutex
		decoded = []decoder.Decoded{}
	)
	engOpts = append(engOpts, engine.WithDecodeHandler(func(d decoder.Decoded) {
		mu.Lock()
		defer mu.Unlock()
		decoded = append(decoded, d)
		if !f.JSON() {
			fmt.Fprintf(f.Writer, "%s\t(row %d, col %d)\n", d.Symbol, d.Row, d.Col)
		}
	}))

	faults := make(chan error, 1)
	engOpts = append(engOpts, engine.WithFaultHandler(func(err error) {
		select {
		case faults <- err:
		default:
		}
	}))
	if opts.SessionGenerator != nil {
		engOpts = append(engOpts, engine.WithSessionGenerator(opts.SessionGenerator))
	}

	eng, err := engine.New(g, engOpts...)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, err)
	}

	var (
		src monitor.Source
		pub *monitor.ChannelSource
	)
	if opts.Input != "" {
		r, closeInput, err := openInput(opts, cmd)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return f.Fail(ExitCommandError, ErrCodeNotFound, err)
			}
			return f.Fail(ExitCommandError, ErrCodeSource, err)
		}
		defer closeInput()

		pace := opts.Pace
		if pace == 0 {
			pace = cfg.Interval()
		}
		src = monitor.NewReaderSource(r, monitor.WithPace(pace))
	} else {
		pub = monitor.NewChannelSource(64)
		src = pub
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- eng.Run(ctx) }()

	slog.Info("engine starting", "session", eng.Session().ID,
		"grid", fmt.Sprintf("%dx%d", g.Rows(), g.Cols()), "interval", cfg.Interval())

	if _, err := eng.Attach(ctx, src); err != nil {
		cancel()
		<-runDone
		return f.Fail(ExitFailure, ErrCodeSource, err)
	}

	// httpDone stays nil without --http so the select below never picks it.
	var httpDone chan error
	if opts.HTTP != "" {
		var srvOpts []httpapi.Option
		if pub != nil {
			srvOpts = append(srvOpts, httpapi.WithSamples(pub))
		}
		srv := httpapi.NewServer(eng, srvOpts...)
		httpDone = make(chan error, 1)
		go func() { httpDone <- srv.ListenAndServe(ctx, opts.HTTP) }()
	}

	if opts.Start {
		eng.StartFlashing()
	}

	var (
		runErr       error
		runFinished  bool
		httpFinished bool
	)
	select {
	case <-ctx.Done():
	case fault := <-faults:
		if errors.Is(fault, io.EOF) {
			slog.Info("input exhausted")
		} else {
			runErr = f.Fail(ExitFailure, ErrCodeSource, fault)
		}
	case err := <-httpDone:
		httpFinished = true
		if err != nil {
			runErr = f.Fail(ExitCommandError, ErrCodeSource, fmt.Errorf("http: %w", err))
		}
	case err := <-runDone:
		runFinished = true
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = f.Fail(ExitFailure, ErrCodeSource, fmt.Errorf("engine: %w", err))
		}
	}

	// Let the loop journal the stop and everything queued ahead of it
	// before the run context goes away.
	eng.StopFlashing()
	eng.Stop()
	if !runFinished {
		<-runDone
	}
	cancel()
	if httpDone != nil && !httpFinished {
		<-httpDone
	}
	slog.Info("engine stopped gracefully")

	if runErr != nil {
		return runErr
	}

	mu.Lock()
	res := RunResult{
		Session:  eng.Session().ID,
		Decoded:  decoded,
		Text:     decoder.Text(decoded),
		Counters: eng.Snapshot().Counters,
	}
	mu.Unlock()

	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Session %s: %d symbols decoded\n", res.Session, len(res.Decoded))
		if res.Text != "" {
			fmt.Fprintln(w, res.Text)
		}
	})
}

// openInput opens the probability file, or stdin for "-".
func openInput(opts *RunOptions, cmd *cobra.Command) (io.Reader, func(), error) {
	if opts.Input == "-" {
		if opts.Stdin != nil {
			return opts.Stdin, func() {}, nil
		}
		return cmd.InOrStdin(), func() {}, nil
	}
	file, err := os.Open(opts.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
