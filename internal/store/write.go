package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/speller/internal/engine"
)

// ErrNoSession is returned by Recorder.Record before BeginSession.
var ErrNoSession = errors.New("no session begun")

// BeginSession inserts a session row.
// Uses ON CONFLICT(id) DO NOTHING so a restarted recorder can call it again.
func (s *Store) BeginSession(ctx context.Context, sess engine.Session) error {
	gridJSON, err := json.Marshal(sess.Grid)
	if err != nil {
		return fmt.Errorf("begin session: marshal grid: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, started_at, grid, threshold, interval_ms, trigger_mode, log_window, min_gap_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		encodeTime(sess.StartedAt),
		string(gridJSON),
		sess.Threshold,
		sess.IntervalMS,
		sess.Trigger,
		sess.LogWindow,
		sess.MinGapMS,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// WriteFlash journals a flash entry.
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteFlash(ctx context.Context, sessionID string, e engine.Entry) error {
	if e.Flash == nil {
		return fmt.Errorf("write flash seq=%d: missing flash", e.Seq)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flashes
		(session_id, seq, at, axis, idx, flash_seq, gen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		e.Seq,
		encodeTime(e.At),
		e.Flash.Axis.String(),
		e.Flash.Index,
		e.Flash.Seq,
		int64(e.Flash.Gen),
	)
	if err != nil {
		return fmt.Errorf("write flash: %w", err)
	}
	return nil
}

// WriteTrigger journals a trigger entry. The resolved flash columns are
// NULL when the trigger found an empty log.
func (s *Store) WriteTrigger(ctx context.Context, sessionID string, e engine.Entry) error {
	var axis, idx, flashSeq any
	if e.Flash != nil {
		axis, idx, flashSeq = e.Flash.Axis.String(), e.Flash.Index, e.Flash.Seq
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO triggers
		(session_id, seq, at, probability, outcome, axis, idx, flash_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		e.Seq,
		encodeTime(e.At),
		e.Probability,
		e.Outcome,
		axis,
		idx,
		flashSeq,
	)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}
	return nil
}

// WriteDecode journals a decoded symbol.
func (s *Store) WriteDecode(ctx context.Context, sessionID string, e engine.Entry) error {
	if e.Decoded == nil {
		return fmt.Errorf("write decode seq=%d: missing symbol", e.Seq)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decodes
		(session_id, seq, at, symbol, row_idx, col_idx)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		e.Seq,
		encodeTime(e.At),
		e.Decoded.Symbol,
		e.Decoded.Row,
		e.Decoded.Col,
	)
	if err != nil {
		return fmt.Errorf("write decode: %w", err)
	}
	return nil
}

// WriteReset journals a selection reset.
func (s *Store) WriteReset(ctx context.Context, sessionID string, e engine.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resets
		(session_id, seq, at, reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sessionID,
		e.Seq,
		encodeTime(e.At),
		e.Reason,
	)
	if err != nil {
		return fmt.Errorf("write reset: %w", err)
	}
	return nil
}

// Write dispatches an entry to the table for its kind.
func (s *Store) Write(ctx context.Context, sessionID string, e engine.Entry) error {
	switch e.Kind {
	case engine.EntryFlash:
		return s.WriteFlash(ctx, sessionID, e)
	case engine.EntryTrigger:
		return s.WriteTrigger(ctx, sessionID, e)
	case engine.EntryDecode:
		return s.WriteDecode(ctx, sessionID, e)
	case engine.EntryReset:
		return s.WriteReset(ctx, sessionID, e)
	default:
		return fmt.Errorf("write: unknown entry kind %q", e.Kind)
	}
}

// Recorder adapts a Store to engine.Recorder for one session at a time.
type Recorder struct {
	store *Store

	mu      sync.Mutex
	session string
}

// Recorder returns an engine.Recorder writing to s.
func (s *Store) Recorder() *Recorder {
	return &Recorder{store: s}
}

// BeginSession implements engine.Recorder.
func (r *Recorder) BeginSession(ctx context.Context, sess engine.Session) error {
	if err := r.store.BeginSession(ctx, sess); err != nil {
		return err
	}
	r.mu.Lock()
	r.session = sess.ID
	r.mu.Unlock()
	return nil
}

// Record implements engine.Recorder.
func (r *Recorder) Record(ctx context.Context, e engine.Entry) error {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()

	if session == "" {
		return ErrNoSession
	}
	return r.store.Write(ctx, session, e)
}

var _ engine.Recorder = (*Recorder)(nil)
