package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/avoronov/saved-sorter/internal/bot"
	"github.com/avoronov/saved-sorter/internal/server"
	"github.com/avoronov/saved-sorter/internal/shared"
	"github.com/avoronov/saved-sorter/internal/store"
	"github.com/avoronov/saved-sorter/internal/vk"
)

// tokenEnvVar overrides telegram.token from the environment so the
// credential can stay out of config files.
const tokenEnvVar = "SAVED_SORTER_TELEGRAM_TOKEN"

// Runner holds the CLI command dependencies.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

// NewRunner creates a Runner writing plain output to w.
func NewRunner(logger *log.Logger, w io.Writer) *Runner {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if w == nil {
		w = os.Stdout
	}
	return &Runner{logger: logger, output: w}
}

// Run starts the bot: loads config (fatal when missing or invalid), opens
// the user store, starts the OAuth capture endpoint and serves the update
// loop until a termination signal. A crashed serving loop is restarted,
// trading crash-only semantics for availability.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	users, err := openStore(config)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer users.Close()

	// Without a working capture endpoint every login would dead-end, so a
	// bind failure is as fatal as a missing config.
	ln, err := net.Listen("tcp", config.Auth.ListenAddr)
	if err != nil {
		return fmt.Errorf("auth endpoint listen failed: %w", err)
	}

	transport, err := bot.NewTelegram(config.Telegram.Token, r.logger)
	if err != nil {
		ln.Close()
		return err
	}
	r.logger.Info("telegram client ready", "bot", transport.BotName())

	endpoint := server.NewEndpoint(config.Auth.ListenAddr, transport.BotName(), r.logger)

	fetcher := vk.NewFetcher(config.VK.RequestsPerSecond, r.logger)
	gateway := vk.NewClient(config.VK.APIBase, nil, fetcher, r.logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := endpoint.Serve(ln); err != nil {
			r.logger.Error("auth endpoint failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := endpoint.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("auth endpoint shutdown failed", "error", err)
		}
	}()

	b := bot.New(bot.Opts{
		Transport:   transport,
		Gateway:     gateway,
		Auth:        endpoint,
		Store:       users,
		Logger:      r.logger,
		AppID:       config.VK.AppID,
		AuthBaseURL: config.Auth.BaseURL,
		AuthTimeout: config.Auth.Timeout(),
	})

	r.logger.Info("started listening")
	for {
		err := b.Run(ctx, transport.Listen(ctx))
		if ctx.Err() != nil {
			r.logger.Info("shutting down")
			return nil
		}
		r.logger.Error("serving loop stopped, restarting", "error", err)
		time.Sleep(time.Second)
	}
}

// Setup creates the config file from the embedded template when absent and,
// for the sqlite backend, initializes the database schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
		r.writePlain("Config created at %s, fill in the credentials before running\n", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if config.Store.Backend != "sqlite" {
		r.writePlain("Store backend %q needs no setup\n", config.Store.Backend)
		return nil
	}

	db, err := shared.NewDatabase(config.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back last migration")
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		r.writePlain("Rolled back last migration\n")
		return nil
	}

	r.logger.Info("running database migrations", "path", config.Store.Path)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("Database ready at %s\n", config.Store.Path)
	return nil
}

// loadConfig reads and validates the configuration. Absence or a parse
// failure is fatal for the run command.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if token := os.Getenv(tokenEnvVar); token != "" {
		config.Telegram.Token = token
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func openStore(config *shared.Config) (store.Store, error) {
	switch config.Store.Backend {
	case "sqlite":
		db, err := shared.NewDatabase(config.Store.Path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		return store.NewSQLiteStore(db), nil
	default:
		return store.NewFileStore(config.Store.Path)
	}
}

func (r *Runner) writePlain(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}
