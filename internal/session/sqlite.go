package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS render_sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	scenario TEXT NOT NULL,
	status TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS render_sessions_user ON render_sessions (user_id, created_at);`

// sessions in a sqlite file, one JSON document per row
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := s.now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now
	if sess.Status == "" {
		sess.Status = StatusPending
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO render_sessions (id, user_id, scenario, status, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Scenario, string(sess.Status), string(data), now.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM render_sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SQLiteStore) Update(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE render_sessions SET status = ?, data = ?, updated_at = ? WHERE id = ?`,
		string(sess.Status), string(data), sess.UpdatedAt.UnixNano(), sess.ID)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", sess.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Latest(ctx context.Context, userID int64, scenario string) (*Session, error) {
	query := `SELECT data FROM render_sessions WHERE user_id = ?`
	args := []any{userID}
	if scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSession(row *sql.Row) (*Session, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &sess, nil
}
