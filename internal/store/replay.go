package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/speller/internal/decoder"
	"github.com/roach88/speller/internal/engine"
	"github.com/roach88/speller/internal/flash"
	"github.com/roach88/speller/internal/grid"
)

// ReplaySession returns every journal entry of a session ordered by seq,
// ready for engine.Replay.
//
// Returns ErrSessionNotFound for an unknown session and an empty slice (not
// nil) for a session with no entries.
func (s *Store) ReplaySession(ctx context.Context, sessionID string) ([]engine.Entry, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("replay session: %w", err)
	}

	// One ordered stream over the four journal tables. Columns a kind does
	// not use are NULL.
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, 'flash' AS kind, at, axis, idx, flash_seq, gen,
		       NULL AS probability, NULL AS outcome, NULL AS symbol,
		       NULL AS row_idx, NULL AS col_idx, NULL AS reason
		FROM flashes WHERE session_id = ?1
		UNION ALL
		SELECT seq, 'trigger', at, axis, idx, flash_seq, NULL,
		       probability, outcome, NULL, NULL, NULL, NULL
		FROM triggers WHERE session_id = ?1
		UNION ALL
		SELECT seq, 'decode', at, NULL, NULL, NULL, NULL,
		       NULL, NULL, symbol, row_idx, col_idx, NULL
		FROM decodes WHERE session_id = ?1
		UNION ALL
		SELECT seq, 'reset', at, NULL, NULL, NULL, NULL,
		       NULL, NULL, NULL, NULL, NULL, reason
		FROM resets WHERE session_id = ?1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []engine.Entry{}
	for rows.Next() {
		e, err := scanJournalRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}

	return entries, nil
}

func scanJournalRow(rows *sql.Rows) (engine.Entry, error) {
	var (
		e           engine.Entry
		kind        string
		at          int64
		axis        sql.NullString
		idx         sql.NullInt64
		flashSeq    sql.NullInt64
		gen         sql.NullInt64
		probability sql.NullFloat64
		outcome     sql.NullString
		symbol      sql.NullString
		rowIdx      sql.NullInt64
		colIdx      sql.NullInt64
		reason      sql.NullString
	)
	if err := rows.Scan(&e.Seq, &kind, &at, &axis, &idx, &flashSeq, &gen,
		&probability, &outcome, &symbol, &rowIdx, &colIdx, &reason); err != nil {
		return engine.Entry{}, fmt.Errorf("scan journal row: %w", err)
	}

	e.Kind = engine.EntryKind(kind)
	e.At = decodeTime(at)

	if axis.Valid {
		a, err := grid.ParseAxis(axis.String)
		if err != nil {
			return engine.Entry{}, fmt.Errorf("journal seq=%d: %w", e.Seq, err)
		}
		e.Flash = &flash.Event{
			Axis:  a,
			Index: int(idx.Int64),
			Seq:   flashSeq.Int64,
			Gen:   uint64(gen.Int64),
		}
		if e.Kind == engine.EntryFlash {
			e.Flash.At = e.At
		}
	}

	switch e.Kind {
	case engine.EntryTrigger:
		e.Probability = probability.Float64
		e.Outcome = outcome.String
	case engine.EntryDecode:
		e.Decoded = &decoder.Decoded{
			Symbol: symbol.String,
			Row:    int(rowIdx.Int64),
			Col:    int(colIdx.Int64),
		}
	case engine.EntryReset:
		e.Reason = reason.String
	}

	return e, nil
}
