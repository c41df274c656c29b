package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/avoronov/saved-sorter/internal/shared"
	"github.com/avoronov/saved-sorter/internal/store"
)

func TestNewRunner(t *testing.T) {
	t.Run("WithDependencies", func(t *testing.T) {
		logger := shared.NewLogger(nil)
		output := &bytes.Buffer{}

		runner := NewRunner(logger, output)
		if runner.logger != logger {
			t.Error("expected logger to be set")
		}
		if runner.output != output {
			t.Error("expected output to be set")
		}
	})

	t.Run("NilDefaults", func(t *testing.T) {
		runner := NewRunner(nil, nil)
		if runner.logger == nil {
			t.Error("expected a default logger")
		}
		if runner.output != os.Stdout {
			t.Error("expected output to default to os.Stdout")
		}
	})
}

// runSetup invokes the setup command the way the CLI would.
func runSetup(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "saved-sorter", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"saved-sorter", "setup"}, args...))
}

func TestSetup(t *testing.T) {
	t.Run("CreatesConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		output := &bytes.Buffer{}
		runner := NewRunner(shared.NewLogger(output), output)

		if err := runSetup(t, runner, "--config", configPath); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}
		if !strings.Contains(output.String(), "Config created") {
			t.Errorf("expected the creation notice, got %q", output.String())
		}
	})

	t.Run("FileBackendNeedsNoSetup", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		output := &bytes.Buffer{}
		runner := NewRunner(shared.NewLogger(output), output)

		if err := runSetup(t, runner, "--config", configPath); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if !strings.Contains(output.String(), "needs no setup") {
			t.Errorf("expected the no-setup notice for the file backend, got %q", output.String())
		}
	})

	t.Run("SqliteBackendMigrates", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")
		dbPath := filepath.Join(tmpDir, "users.db")

		testConfig := `[store]
backend = "sqlite"
path = "` + dbPath + `"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(shared.NewLogger(output), output)

		if err := runSetup(t, runner, "--config", configPath); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		db, err := shared.NewDatabase(dbPath)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
			t.Fatalf("users table should exist: %v", err)
		}

		// Rollback drops the schema again.
		if err := runSetup(t, runner, "--config", configPath, "--rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err == nil {
			t.Error("users table should be gone after rollback")
		}
	})
}

func TestOpenStore(t *testing.T) {
	t.Run("FileBackend", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Store.Backend = "file"
		config.Store.Path = filepath.Join(t.TempDir(), "users.json")

		s, err := openStore(config)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		if _, ok := s.(*store.FileStore); !ok {
			t.Errorf("expected a FileStore, got %T", s)
		}
	})

	t.Run("SqliteBackend", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Store.Backend = "sqlite"
		config.Store.Path = filepath.Join(t.TempDir(), "users.db")

		s, err := openStore(config)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		if _, ok := s.(*store.SQLiteStore); !ok {
			t.Errorf("expected a SQLiteStore, got %T", s)
		}

		// Migrations ran, so a record can be stored right away.
		u := store.NewUser(42)
		u.Token = "tok"
		if err := s.Put(u); err != nil {
			t.Errorf("failed to store a user: %v", err)
		}
	})
}

func TestRunFailsWhenListenAddrBound(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	testConfig := `[telegram]
token = "123:abc"

[vk]
app_id = 7777

[auth]
base_url = "http://` + ln.Addr().String() + `/"
listen_addr = "` + ln.Addr().String() + `"

[store]
backend = "file"
path = "` + filepath.Join(tmpDir, "users.json") + `"
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	output := &bytes.Buffer{}
	runner := NewRunner(shared.NewLogger(output), output)
	app := &cli.Command{Name: "saved-sorter", Commands: runner.register()}

	err = app.Run(context.Background(), []string{"saved-sorter", "run", "--config", configPath})
	if err == nil || !strings.Contains(err.Error(), "listen") {
		t.Errorf("expected a listen failure, got %v", err)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	testConfig := `[telegram]
token = "from-file"

[vk]
app_id = 7777

[auth]
base_url = "https://example.com/"
listen_addr = ":8228"

[store]
backend = "file"
path = "./users.json"
`
	if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv(tokenEnvVar, "from-env")

	runner := NewRunner(shared.NewLogger(&bytes.Buffer{}), &bytes.Buffer{})
	config, err := runner.loadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if config.Telegram.Token != "from-env" {
		t.Errorf("expected the environment to win, got %q", config.Telegram.Token)
	}
}
