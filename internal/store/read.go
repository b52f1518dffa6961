package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/engine"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionSummary is a session with row counts from its journal.
type SessionSummary struct {
	engine.Session
	Flashes  int64 `json:"flashes"`
	Triggers int64 `json:"triggers"`
	Decodes  int64 `json:"decodes"`
}

// encodeTime stores instants as unix nanoseconds; the zero time is 0.
func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// GetSession returns one session.
func (s *Store) GetSession(ctx context.Context, id string) (engine.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, grid, threshold, interval_ms, trigger_mode, log_window, min_gap_ms
		FROM sessions
		WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return engine.Session{}, err
	}
	return sess, nil
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession(ctx context.Context) (engine.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, grid, threshold, interval_ms, trigger_mode, log_window, min_gap_ms
		FROM sessions
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return engine.Session{}, err
	}
	return sess, nil
}

// ListSessions returns every session, oldest first, with journal counts.
//
// Returns an empty slice (not nil) if there are no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.grid, s.threshold, s.interval_ms, s.trigger_mode,
		       s.log_window, s.min_gap_ms,
		       (SELECT COUNT(*) FROM flashes f WHERE f.session_id = s.id),
		       (SELECT COUNT(*) FROM triggers t WHERE t.session_id = s.id),
		       (SELECT COUNT(*) FROM decodes d WHERE d.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at ASC, s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionSummary{}
	for rows.Next() {
		var (
			sum      SessionSummary
			started  int64
			gridJSON string
		)
		if err := rows.Scan(
			&sum.ID, &started, &gridJSON, &sum.Threshold, &sum.IntervalMS, &sum.Trigger,
			&sum.LogWindow, &sum.MinGapMS,
			&sum.Flashes, &sum.Triggers, &sum.Decodes,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt = decodeTime(started)
		if err := json.Unmarshal([]byte(gridJSON), &sum.Grid); err != nil {
			return nil, fmt.Errorf("session %s: unmarshal grid: %w", sum.ID, err)
		}
		sessions = append(sessions, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// ReadDecodes returns a session's decoded symbols in seq order.
//
// Returns an empty slice (not nil) if nothing was decoded.
func (s *Store) ReadDecodes(ctx context.Context, sessionID string) ([]engine.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at, symbol, row_idx, col_idx
		FROM decodes
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query decodes: %w", err)
	}
	defer rows.Close()

	entries := []engine.Entry{}
	for rows.Next() {
		var (
			e  engine.Entry
			at int64
			d  decoder.Decoded
		)
		if err := rows.Scan(&e.Seq, &at, &d.Symbol, &d.Row, &d.Col); err != nil {
			return nil, fmt.Errorf("scan decode: %w", err)
		}
		e.Kind = engine.EntryDecode
		e.At = decodeTime(at)
		e.Decoded = &d
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decodes: %w", err)
	}

	return entries, nil
}

// scanSession scans a sessions row in column order.
func scanSession(row *sql.Row) (engine.Session, error) {
	var (
		sess     engine.Session
		started  int64
		gridJSON string
	)
	err := row.Scan(&sess.ID, &started, &gridJSON, &sess.Threshold, &sess.IntervalMS,
		&sess.Trigger, &sess.LogWindow, &sess.MinGapMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Session{}, err
		}
		return engine.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.StartedAt = decodeTime(started)
	if err := json.Unmarshal([]byte(gridJSON), &sess.Grid); err != nil {
		return engine.Session{}, fmt.Errorf("session %s: unmarshal grid: %w", sess.ID, err)
	}
	return sess, nil
}
