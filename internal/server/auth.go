package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/avoronov/saved-sorter/internal/shared"
)

// fragmentRewritePage is served on the redirect path. VK's implicit grant
// appends the access token after '#', which browsers never transmit to a
// server, so this page re-navigates the browser to the capture path with the
// fragment folded into the query string.
const fragmentRewritePage = `<html><script>window.location.href=window.location.href.replace('?sender_id', '/real?sender_id').replace('#', '&')</script></html>`

// Endpoint captures VK access tokens delivered through browser redirects.
//
// One HTTP listener multiplexes two paths: the redirect path serves the
// fragment-rewrite page, the capture path receives the rewritten callback
// with the token in the query string. Pending waits are keyed by sender id;
// a callback only ever completes the wait registered for its own sender_id.
type Endpoint struct {
	srv     *http.Server
	botName string
	logger  *log.Logger

	mu      sync.Mutex
	pending map[int64]chan string
}

// NewEndpoint creates a capture endpoint bound to addr. Successful captures
// redirect the browser back into the chat at https://t.me/<botName>.
func NewEndpoint(addr, botName string, logger *log.Logger) *Endpoint {
	e := &Endpoint{
		botName: botName,
		logger:  logger,
		pending: make(map[int64]chan string),
	}

	router := NewBasicRouter()
	router.Use(RequestID(), RequestLogger(logger))
	router.Handle(http.MethodGet, "/", http.HandlerFunc(e.redirect))
	router.Handle(http.MethodGet, "/real", http.HandlerFunc(e.capture))
	router.Handle(http.MethodGet, "/real/", http.HandlerFunc(e.capture))

	e.srv = &http.Server{Addr: addr, Handler: router}
	return e
}

// Serve runs the endpoint on an existing listener. Blocks until the listener
// fails or Shutdown is called; a clean shutdown returns nil.
func (e *Endpoint) Serve(ln net.Listener) error {
	if e.logger != nil {
		e.logger.Info("auth endpoint listening", "addr", ln.Addr().String())
	}
	err := e.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and releases the socket. Pending waits are not
// completed; their own timeouts or contexts resolve them.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	return e.srv.Shutdown(ctx)
}

// WaitForAuth blocks until a capture request carrying senderID's token
// arrives, the timeout elapses ([shared.ErrTimeout]) or ctx is cancelled
// (the context error). The pending registration is removed on every exit
// path, so an abandoned wait can never be completed by a late callback.
func (e *Endpoint) WaitForAuth(ctx context.Context, senderID int64, timeout time.Duration) (string, error) {
	ch := make(chan string, 1)

	e.mu.Lock()
	if _, exists := e.pending[senderID]; exists {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: sender %d", shared.ErrAuthPending, senderID)
	}
	e.pending[senderID] = ch
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, senderID)
		e.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case token := <-ch:
		return token, nil
	case <-timer.C:
		return "", shared.ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// pendingSender extracts sender_id from the request and reports whether a
// wait is registered for it. Requests that don't correlate to a pending wait
// are not ours to answer.
func (e *Endpoint) pendingSender(r *http.Request) (int64, bool) {
	senderID, err := strconv.ParseInt(r.URL.Query().Get("sender_id"), 10, 64)
	if err != nil {
		return 0, false
	}

	e.mu.Lock()
	_, ok := e.pending[senderID]
	e.mu.Unlock()
	return senderID, ok
}

// redirect serves the fragment-rewrite page to the matching sender's browser.
func (e *Endpoint) redirect(w http.ResponseWriter, r *http.Request) {
	if _, ok := e.pendingSender(r); !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	io.WriteString(w, fragmentRewritePage)
}

// capture records the token from the rewritten callback, answers with a
// redirect back into the chat and completes the matching wait exactly once.
func (e *Endpoint) capture(w http.ResponseWriter, r *http.Request) {
	senderID, ok := e.pendingSender(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	token := r.URL.Query().Get("access_token")
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	e.mu.Lock()
	ch := e.pending[senderID]
	e.mu.Unlock()

	if ch != nil {
		select {
		case ch <- token:
			if e.logger != nil {
				e.logger.Info("token captured", "sender_id", senderID)
			}
		default:
			// A token for this wait was already delivered.
		}
	}

	w.Header().Set("Location", "https://t.me/"+e.botName)
	w.WriteHeader(http.StatusFound)
}
