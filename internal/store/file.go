package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/avoronov/saved-sorter/internal/shared"
)

// FileStore keeps all user records in one JSON file, keyed by sender id.
// Every mutation rewrites the whole file under a single lock so the persisted
// state is never a partial mix of two writers.
type FileStore struct {
	mu    sync.Mutex
	path  string
	users map[int64]*User
}

// NewFileStore loads the store at path. A missing file starts an empty
// store; an unparseable file is an error, since silently starting over would
// drop every user's session.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, users: make(map[int64]*User)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnreadable, err)
	}

	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnreadable, err)
	}
	for id, u := range s.users {
		u.SenderID = id
	}

	return s, nil
}

// Get returns a copy of the user's record, creating the default record on
// first contact.
func (s *FileStore) Get(senderID int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[senderID]
	if !ok {
		u = NewUser(senderID)
		s.users[senderID] = u
	}
	copied := *u
	return &copied, nil
}

// Put stores a copy of user and rewrites the file.
func (s *FileStore) Put(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	s.users[user.SenderID] = &copied
	return s.write()
}

// Remove deletes the record and rewrites the file.
func (s *FileStore) Remove(senderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, senderID)
	return s.write()
}

func (s *FileStore) Close() error {
	return nil
}

// write serializes the whole map and replaces the file via rename so readers
// never observe a truncated store. Callers must hold s.mu.
func (s *FileStore) write() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize user store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write user store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace user store: %w", err)
	}
	return nil
}

// Path returns the absolute location of the backing file.
func (s *FileStore) Path() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return s.path
	}
	return abs
}
