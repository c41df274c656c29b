// Package bot wires the chat transport, the session state machine, the VK
// gateway and the OAuth capture endpoint into the sorting dialog.
//
// Every inbound message is routed to a per-sender worker goroutine, so one
// user's commands are handled strictly in order while different users run
// concurrently. Handlers receive a copy of the user's session record, mutate
// it and the dispatcher persists it afterwards.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/avoronov/saved-sorter/internal/server"
	"github.com/avoronov/saved-sorter/internal/shared"
	"github.com/avoronov/saved-sorter/internal/store"
	"github.com/avoronov/saved-sorter/internal/vk"
)

// workerQueueSize bounds one user's backlog; messages beyond it are dropped
// rather than blocking the dispatcher for everyone.
const workerQueueSize = 16

// Bot is the message dispatcher.
type Bot struct {
	transport   Transport
	gateway     vk.Service
	auth        *server.Endpoint
	store       store.Store
	logger      *log.Logger
	appID       int64
	authBase    string
	authTimeout time.Duration

	mu      sync.Mutex
	workers map[int64]chan Incoming
	wg      sync.WaitGroup
}

// Opts contains the collaborators a Bot needs.
type Opts struct {
	Transport   Transport
	Gateway     vk.Service
	Auth        *server.Endpoint
	Store       store.Store
	Logger      *log.Logger
	AppID       int64
	AuthBaseURL string
	AuthTimeout time.Duration
}

// New creates a Bot from its collaborators.
func New(opts Opts) *Bot {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 5 * time.Minute
	}
	return &Bot{
		transport:   opts.Transport,
		gateway:     opts.Gateway,
		auth:        opts.Auth,
		store:       opts.Store,
		logger:      opts.Logger,
		appID:       opts.AppID,
		authBase:    opts.AuthBaseURL,
		authTimeout: opts.AuthTimeout,
		workers:     make(map[int64]chan Incoming),
	}
}

// Run consumes updates until the channel closes or ctx is cancelled, then
// waits for all per-user workers to drain.
func (b *Bot) Run(ctx context.Context, updates <-chan Incoming) error {
	for {
		select {
		case <-ctx.Done():
			b.stopWorkers()
			return ctx.Err()
		case in, ok := <-updates:
			if !ok {
				b.stopWorkers()
				return nil
			}
			b.dispatch(ctx, in)
		}
	}
}

// dispatch hands the message to the sender's worker, creating one on first
// contact. A full queue drops the message instead of stalling other users.
func (b *Bot) dispatch(ctx context.Context, in Incoming) {
	b.mu.Lock()
	ch, ok := b.workers[in.SenderID]
	if !ok {
		ch = make(chan Incoming, workerQueueSize)
		b.workers[in.SenderID] = ch
		b.wg.Add(1)
		go b.worker(ctx, ch)
	}
	b.mu.Unlock()

	select {
	case ch <- in:
	default:
		b.logger.Warn("user queue full, dropping message", "sender_id", in.SenderID)
	}
}

func (b *Bot) worker(ctx context.Context, ch <-chan Incoming) {
	defer b.wg.Done()
	for in := range ch {
		b.safeHandle(ctx, in)
	}
}

func (b *Bot) stopWorkers() {
	b.mu.Lock()
	for _, ch := range b.workers {
		close(ch)
	}
	b.workers = make(map[int64]chan Incoming)
	b.mu.Unlock()
	b.wg.Wait()
}

// safeHandle keeps a panicking handler from taking the worker down.
func (b *Bot) safeHandle(ctx context.Context, in Incoming) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic", "sender_id", in.SenderID, "panic", r)
		}
	}()
	b.handle(ctx, in)
}

// handle classifies the message, checks it against the state machine and
// runs the matching handler. The session copy is persisted only after the
// handler returns; a rejected command leaves the stored session untouched.
func (b *Bot) handle(ctx context.Context, in Incoming) {
	logger := b.logger.With("sender_id", in.SenderID)

	user, err := b.store.Get(in.SenderID)
	if err != nil {
		logger.Error("failed to load user", "error", err)
		return
	}

	cmd := Classify(user, in.Text)
	logger.Info("message classified", "command", cmd.String(), "state", user.State.String())

	before := *user
	if CanRespond(user.State, cmd) {
		err = b.respond(ctx, user, cmd, in.Text)
	} else {
		err = fmt.Errorf("%w: %s in state %s", shared.ErrUnexpectedCommand, cmd, user.State)
	}
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrUnexpectedCommand):
		// The handler never ran, so the session is untouched.
		logger.Warn("rejected message", "error", err)
		b.send(in.SenderID, msgUnexpected)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Shutdown mid-handler: abort cleanly, don't persist a half state.
		logger.Info("handler aborted", "error", err)
		return
	case errors.Is(err, shared.ErrNotAuthenticated):
		logger.Warn("vk token rejected", "error", err)
		user.Token = ""
		user.PhotoIndex = 0
		user.State = store.AwaitingStart
		b.send(in.SenderID, msgReauth)
	default:
		logger.Error("handler failed", "command", cmd.String(), "error", err)
		b.send(in.SenderID, msgFailure)
	}

	if *user != before {
		if err := b.store.Put(user); err != nil {
			logger.Error("failed to persist user", "error", err)
		}
	}
}

func (b *Bot) respond(ctx context.Context, user *store.User, cmd Command, text string) error {
	switch cmd {
	case CmdStart:
		return b.handleStart(user)
	case CmdStartAuth:
		return b.handleStartAuth(ctx, user)
	case CmdStartSorting:
		return b.handleStartSorting(ctx, user)
	case CmdSkip:
		return b.handleSkip(ctx, user)
	case CmdDelete:
		return b.handleDelete(ctx, user)
	case CmdNewAlbum:
		return b.handleNewAlbum(user)
	case CmdMainMenu:
		return b.handleMainMenu(user)
	case CmdSettings:
		return b.handleSettings(user)
	case CmdLogOut:
		return b.handleLogOut(user)
	case CmdAlbumName:
		return b.handleAlbumName(ctx, user, text)
	case CmdSortMode:
		return b.handleSortMode(user, text)
	case CmdNewAlbumName:
		return b.handleNewAlbumName(ctx, user, text)
	}
	return fmt.Errorf("%w: %s", shared.ErrUnexpectedCommand, cmd)
}

// send delivers pre-escaped text, logging delivery failures instead of
// propagating them.
func (b *Bot) send(senderID int64, text string) {
	if err := b.transport.SendText(senderID, text); err != nil {
		b.logger.Error("failed to send message", "sender_id", senderID, "error", err)
	}
}

func (b *Bot) sendKeyboard(senderID int64, text string, rows [][]string) {
	if err := b.transport.SendKeyboard(senderID, text, rows); err != nil {
		b.logger.Error("failed to send message", "sender_id", senderID, "error", err)
	}
}
