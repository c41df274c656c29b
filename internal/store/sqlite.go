package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore persists user records in a sqlite table. The schema is managed
// by the embedded migrations in internal/shared.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database. The caller is responsible for
// running migrations first.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(senderID int64) (*User, error) {
	u := NewUser(senderID)
	row := s.db.QueryRow(
		"SELECT token, sort_mode, photo_index, state FROM users WHERE sender_id = ?", senderID)
	err := row.Scan(&u.Token, &u.SortMode, &u.PhotoIndex, &u.State)
	if errors.Is(err, sql.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", senderID, err)
	}
	return u, nil
}

func (s *SQLiteStore) Put(user *User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (sender_id, token, sort_mode, photo_index, state, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(sender_id) DO UPDATE SET
			token = excluded.token,
			sort_mode = excluded.sort_mode,
			photo_index = excluded.photo_index,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP`,
		user.SenderID, user.Token, user.SortMode, user.PhotoIndex, user.State)
	if err != nil {
		return fmt.Errorf("failed to write user %d: %w", user.SenderID, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(senderID int64) error {
	if _, err := s.db.Exec("DELETE FROM users WHERE sender_id = ?", senderID); err != nil {
		return fmt.Errorf("failed to remove user %d: %w", senderID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
