package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/avoronov/saved-sorter/internal/shared"
)

func TestNewUser(t *testing.T) {
	u := NewUser(42)

	if u.SenderID != 42 {
		t.Errorf("expected sender id 42, got %d", u.SenderID)
	}
	if u.State != AwaitingStart {
		t.Errorf("expected awaiting_start state, got %s", u.State)
	}
	if u.SortMode != SortRandom {
		t.Errorf("expected random sort mode, got %s", u.SortMode)
	}
	if u.Authorized() {
		t.Error("new user should not be authorized")
	}

	u.Token = "token"
	if !u.Authorized() {
		t.Error("user with token should be authorized")
	}
}

func TestFileStore(t *testing.T) {
	t.Run("GetCreatesDefault", func(t *testing.T) {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "users.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		u, err := s.Get(42)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if u.SenderID != 42 || u.State != AwaitingStart {
			t.Errorf("expected default record, got %+v", u)
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "users.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		u, _ := s.Get(42)
		u.Token = "mutated"

		again, _ := s.Get(42)
		if again.Token != "" {
			t.Error("mutating a returned record should not affect the store")
		}
	})

	t.Run("PutRoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.json")
		s, err := NewFileStore(path)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		u, _ := s.Get(42)
		u.Token = "secret"
		u.SortMode = SortToNewer
		u.PhotoIndex = 7
		u.State = AwaitingAlbumName
		if err := s.Put(u); err != nil {
			t.Fatalf("failed to put user: %v", err)
		}

		// A fresh store instance must see the persisted record.
		reloaded, err := NewFileStore(path)
		if err != nil {
			t.Fatalf("failed to reload store: %v", err)
		}

		got, err := reloaded.Get(42)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if *got != *u {
			t.Errorf("expected %+v after reload, got %+v", u, got)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.json")
		s, err := NewFileStore(path)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		u, _ := s.Get(42)
		u.Token = "secret"
		if err := s.Put(u); err != nil {
			t.Fatalf("failed to put user: %v", err)
		}
		if err := s.Remove(42); err != nil {
			t.Fatalf("failed to remove user: %v", err)
		}

		reloaded, err := NewFileStore(path)
		if err != nil {
			t.Fatalf("failed to reload store: %v", err)
		}

		got, _ := reloaded.Get(42)
		if got.Token != "" {
			t.Error("removed user should come back as a default record")
		}
	})

	t.Run("UnreadableFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.json")
		if err := os.WriteFile(path, []byte("{corrupt"), 0600); err != nil {
			t.Fatalf("failed to write corrupt file: %v", err)
		}

		_, err := NewFileStore(path)
		if !errors.Is(err, shared.ErrStoreUnreadable) {
			t.Errorf("expected ErrStoreUnreadable, got %v", err)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	open := func(t *testing.T) *SQLiteStore {
		t.Helper()
		db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		return NewSQLiteStore(db)
	}

	t.Run("GetCreatesDefault", func(t *testing.T) {
		s := open(t)

		u, err := s.Get(42)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if u.SenderID != 42 || u.State != AwaitingStart || u.Token != "" {
			t.Errorf("expected default record, got %+v", u)
		}
	})

	t.Run("PutRoundTrip", func(t *testing.T) {
		s := open(t)

		u, _ := s.Get(42)
		u.Token = "secret"
		u.SortMode = SortToOlder
		u.PhotoIndex = 3
		u.State = MainMenu
		if err := s.Put(u); err != nil {
			t.Fatalf("failed to put user: %v", err)
		}

		got, err := s.Get(42)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if *got != *u {
			t.Errorf("expected %+v, got %+v", u, got)
		}
	})

	t.Run("PutUpdates", func(t *testing.T) {
		s := open(t)

		u, _ := s.Get(42)
		u.Token = "first"
		if err := s.Put(u); err != nil {
			t.Fatalf("failed to put user: %v", err)
		}

		u.Token = "second"
		u.State = AwaitingSortMode
		if err := s.Put(u); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		got, _ := s.Get(42)
		if got.Token != "second" || got.State != AwaitingSortMode {
			t.Errorf("expected updated record, got %+v", got)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		s := open(t)

		u, _ := s.Get(42)
		u.Token = "secret"
		if err := s.Put(u); err != nil {
			t.Fatalf("failed to put user: %v", err)
		}
		if err := s.Remove(42); err != nil {
			t.Fatalf("failed to remove user: %v", err)
		}

		got, _ := s.Get(42)
		if got.Token != "" {
			t.Error("removed user should come back as a default record")
		}
	})
}
