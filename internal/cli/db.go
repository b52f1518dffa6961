package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/store"
)

// openExistingStore opens a journal database that must already exist.
// Read-only commands never create one.
func openExistingStore(f *OutputFormatter, path string) (*store.Store, error) {
	if path == "" {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, errors.New("--db is required"))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("database: %w", err))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, err)
	}
	return st, nil
}

// resolveSession loads the session with id, or the latest one when id is
// empty.
func resolveSession(ctx context.Context, f *OutputFormatter, st *store.Store, id string) (engine.Session, error) {
	var (
		sess engine.Session
		err  error
	)
	if id == "" {
		sess, err = st.LatestSession(ctx)
	} else {
		sess, err = st.GetSession(ctx, id)
	}
	if errors.Is(err, store.ErrSessionNotFound) {
		if id == "" {
			err = errors.New("database has no sessions")
		}
		return engine.Session{}, f.Fail(ExitCommandError, ErrCodeNotFound, err)
	}
	if err != nil {
		return engine.Session{}, f.Fail(ExitCommandError, ErrCodeStore, err)
	}
	return sess, nil
}

func closeStore(f *OutputFormatter, st *store.Store) {
	if err := st.Close(); err != nil {
		f.VerboseLog("close database: %v", err)
	}
}
