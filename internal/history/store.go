// Package history archives saved sessions and their captions in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"livecap/internal/caption"
	"livecap/internal/session"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no session matches.
var ErrNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id        TEXT PRIMARY KEY,
	startedAt REAL NOT NULL,
	savedAt   REAL NOT NULL,
	audio     TEXT NOT NULL,
	backend   TEXT NOT NULL,
	seconds   REAL NOT NULL,
	captions  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS captions (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	startSec  REAL NOT NULL,
	endSec    REAL NOT NULL,
	text      TEXT NOT NULL,
	PRIMARY KEY (sessionId, seq)
);
CREATE INDEX IF NOT EXISTS sessions_saved ON sessions(savedAt);
`

// Session is one archived recording.
type Session struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Saved    time.Time `json:"saved"`
	Audio    string    `json:"audio"`
	Backend  string    `json:"backend"`
	Seconds  float64   `json:"seconds"`
	Captions int       `json:"captions"`
}

// Store is the archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Archive stores a saved session and its captions, replacing an earlier copy.
func (s *Store) Archive(ctx context.Context, res session.SaveResult, recs []caption.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM captions WHERE sessionId = ?`, res.SessionID); err != nil {
		return fmt.Errorf("clear captions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, startedAt, savedAt, audio, backend, seconds, captions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, toUnix(res.Started), toUnix(res.Saved), res.Files.Audio, res.Backend, res.Seconds, len(recs)); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO captions (sessionId, seq, startSec, endSec, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range recs {
		if _, err := stmt.ExecContext(ctx, res.SessionID, i+1, r.Start, r.End, r.Text); err != nil {
			return fmt.Errorf("insert caption %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// List returns the most recently saved sessions first.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, startedAt, savedAt, audio, backend, seconds, captions
		FROM sessions
		ORDER BY savedAt DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Get returns the session whose ID starts with id, and its captions in order.
func (s *Store) Get(ctx context.Context, id string) (Session, []caption.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, startedAt, savedAt, audio, backend, seconds, captions
		FROM sessions
		WHERE id LIKE ? || '%'
		ORDER BY savedAt DESC
		LIMIT 2`, id)
	if err != nil {
		return Session{}, nil, fmt.Errorf("query session: %w", err)
	}
	var matches []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return Session{}, nil, err
		}
		matches = append(matches, sess)
	}
	rows.Close()
	switch len(matches) {
	case 0:
		return Session{}, nil, ErrNotFound
	case 1:
	default:
		return Session{}, nil, fmt.Errorf("session id %q is ambiguous", id)
	}
	sess := matches[0]

	crow, err := s.db.QueryContext(ctx, `
		SELECT startSec, endSec, text FROM captions
		WHERE sessionId = ?
		ORDER BY seq ASC`, sess.ID)
	if err != nil {
		return Session{}, nil, fmt.Errorf("query captions: %w", err)
	}
	defer crow.Close()
	var recs []caption.Record
	for crow.Next() {
		var r caption.Record
		if err := crow.Scan(&r.Start, &r.End, &r.Text); err != nil {
			return Session{}, nil, fmt.Errorf("scan caption: %w", err)
		}
		recs = append(recs, r)
	}
	return sess, recs, crow.Err()
}

func scanSession(rows *sql.Rows) (Session, error) {
	var sess Session
	var started, saved float64
	if err := rows.Scan(&sess.ID, &started, &saved, &sess.Audio, &sess.Backend, &sess.Seconds, &sess.Captions); err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Started = fromUnix(started)
	sess.Saved = fromUnix(saved)
	return sess, nil
}

func toUnix(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
