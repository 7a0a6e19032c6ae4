// Package sqlite is the durable call store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Telehealth/internal/core"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS call_sessions (
	session_id TEXT PRIMARY KEY,
	caller_id  TEXT,
	callee_id  TEXT,
	start_time INTEGER NOT NULL,
	end_time   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_call_sessions_caller ON call_sessions(caller_id, start_time);
CREATE INDEX IF NOT EXISTS idx_call_sessions_callee ON call_sessions(callee_id, start_time);
`

const selectCols = `session_id, caller_id, callee_id, start_time, end_time`

// Store keeps call sessions in a SQLite file. Times are unix nanoseconds UTC.
type Store struct {
	db   *sql.DB
	path string
}

var _ core.CallStore = (*Store)(nil)

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create call_sessions: %w", err)
	}

	log.Info().Str("module", "storage.sqlite").Str("path", path).Msg("call store opened")
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, cs domain.CallSession) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO call_sessions (session_id, caller_id, callee_id, start_time, end_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		string(cs.ID), nullUser(cs.CallerID), nullUser(cs.CalleeID),
		cs.StartTime.UTC().UnixNano(), nullTime(cs.EndTime),
	)
	if err != nil {
		return fmt.Errorf("insert call session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert call session: %w", err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (domain.CallSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM call_sessions WHERE session_id = ?`, string(id))
	cs, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CallSession{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("get call session: %w", err)
	}
	return cs, nil
}

func (s *Store) SetEndTime(ctx context.Context, id domain.SessionID, end time.Time) (domain.CallSession, error) {
	return s.conditionalUpdate(ctx, id, domain.ErrAlreadyEnded,
		`UPDATE call_sessions SET end_time = ? WHERE session_id = ? AND end_time IS NULL`,
		end.UTC().UnixNano(), string(id))
}

func (s *Store) SetCallee(ctx context.Context, id domain.SessionID, callee domain.UserID) (domain.CallSession, error) {
	return s.conditionalUpdate(ctx, id, domain.ErrCalleeTaken,
		`UPDATE call_sessions SET callee_id = ? WHERE session_id = ? AND (callee_id IS NULL OR callee_id = ?)`,
		string(callee), string(id), string(callee))
}

// conditionalUpdate runs a single-row guarded update. When no row matched it
// tells a missing session apart from a failed guard.
func (s *Store) conditionalUpdate(ctx context.Context, id domain.SessionID, guardErr error, query string, args ...any) (domain.CallSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("update call session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("update call session: %w", err)
	}

	cs, err := scan(tx.QueryRowContext(ctx, `SELECT `+selectCols+` FROM call_sessions WHERE session_id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CallSession{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CallSession{}, fmt.Errorf("reload call session: %w", err)
	}
	if n == 0 {
		return domain.CallSession{}, guardErr
	}
	if err := tx.Commit(); err != nil {
		return domain.CallSession{}, fmt.Errorf("commit: %w", err)
	}
	return cs, nil
}

func (s *Store) ListByUser(ctx context.Context, uid domain.UserID, offset, limit int) ([]domain.CallSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectCols+` FROM call_sessions
		WHERE caller_id = ? OR callee_id = ?
		ORDER BY start_time DESC, session_id DESC
		LIMIT ? OFFSET ?`,
		string(uid), string(uid), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list call sessions: %w", err)
	}
	defer rows.Close()

	out := []domain.CallSession{}
	for rows.Next() {
		cs, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call session: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (domain.CallSession, error) {
	var (
		id             string
		caller, callee sql.NullString
		start          int64
		end            sql.NullInt64
	)
	if err := r.Scan(&id, &caller, &callee, &start, &end); err != nil {
		return domain.CallSession{}, err
	}
	cs := domain.CallSession{
		ID:        domain.SessionID(id),
		StartTime: time.Unix(0, start).UTC(),
	}
	if caller.Valid {
		v := domain.UserID(caller.String)
		cs.CallerID = &v
	}
	if callee.Valid {
		v := domain.UserID(callee.String)
		cs.CalleeID = &v
	}
	if end.Valid {
		v := time.Unix(0, end.Int64).UTC()
		cs.EndTime = &v
	}
	return cs, nil
}

func nullUser(u *domain.UserID) sql.NullString {
	if u == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*u), Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}
