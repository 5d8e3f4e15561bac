package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tpgarc/arc-conformance-tests/config"
	"github.com/tpgarc/arc-conformance-tests/framework"
	"github.com/tpgarc/arc-conformance-tests/servicedef"
)

// ErrSessionTimeout is matched by the error returned when a session never becomes ready.
var ErrSessionTimeout = errors.New("timed out waiting for automation session")

// SessionTimeoutError is returned by WaitForSession when the attempt limit is used up.
type SessionTimeoutError struct {
	SessionID  string
	Attempts   int
	LastStatus servicedef.PooledMachineStatus
}

func (e *SessionTimeoutError) Error() string {
	return fmt.Sprintf("automation session %s was not ready after %d status checks (last status %d)",
		e.SessionID, e.Attempts, e.LastStatus)
}

func (e *SessionTimeoutError) Is(target error) bool {
	return target == ErrSessionTimeout
}

// SessionOptions controls how a run acquires and releases its automation session.
type SessionOptions struct {
	// PollInterval is the delay before each status check.
	PollInterval time.Duration

	// MaxAttempts is the number of status checks after which WaitForSession gives up.
	MaxAttempts int

	// CloseTimeout bounds the call that closes the browser, which is made even if the run's
	// context has been cancelled.
	CloseTimeout time.Duration
}

// DefaultSessionOptions returns the defaults from the config package.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		PollInterval: config.DefaultPollInterval,
		MaxAttempts:  config.DefaultMaxPollAttempts,
		CloseTimeout: config.DefaultCloseTimeout,
	}
}

func (o SessionOptions) withDefaults() SessionOptions {
	d := DefaultSessionOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = d.CloseTimeout
	}
	return o
}

// WaitForSession creates an automation session and polls its status until it is ready.
//
// Polling stops with a *SessionTimeoutError after opts.MaxAttempts status checks, or with the
// context's error if ctx is done first.
func WaitForSession(ctx context.Context, api API, opts SessionOptions, logger framework.Logger) (servicedef.AutomationSession, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = framework.NullLogger()
	}

	session, err := api.NewSession(ctx)
	if err != nil {
		return session, fmt.Errorf("could not create automation session: %w", err)
	}
	sessionID := session.SessionID
	logger.Printf("Created automation session %s with status %d", sessionID, session.Status)

	attempts := 0
	for !session.Ready() {
		if attempts >= opts.MaxAttempts {
			return session, &SessionTimeoutError{SessionID: sessionID, Attempts: attempts, LastStatus: session.Status}
		}
		timer := time.NewTimer(opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return session, ctx.Err()
		case <-timer.C:
		}
		attempts++
		session, err = api.SessionStatus(ctx, sessionID)
		if err != nil {
			return session, fmt.Errorf("could not get status of automation session %s: %w", sessionID, err)
		}
		if session.SessionID == "" {
			session.SessionID = sessionID
		}
		logger.Printf("Session %s status is %d", sessionID, session.Status)
	}
	return session, nil
}

// BrowserSession is a ready automation session whose browser has been opened. It must be
// closed with Close.
type BrowserSession struct {
	api          API
	id           string
	closeTimeout time.Duration
	parent       context.Context
	logger       framework.Logger
	closed       bool
}

// OpenBrowserSession waits for a new session to be ready and opens its browser.
func OpenBrowserSession(ctx context.Context, api API, opts SessionOptions, logger framework.Logger) (*BrowserSession, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = framework.NullLogger()
	}
	session, err := WaitForSession(ctx, api, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := api.OpenBrowser(ctx, session.SessionID); err != nil {
		return nil, fmt.Errorf("could not open browser for session %s: %w", session.SessionID, err)
	}
	logger.Printf("Opened browser for session %s", session.SessionID)
	return &BrowserSession{
		api:          api,
		id:           session.SessionID,
		closeTimeout: opts.CloseTimeout,
		parent:       ctx,
		logger:       logger,
	}, nil
}

// ID returns the automation session identifier.
func (s *BrowserSession) ID() string {
	return s.id
}

// Close closes the browser. Calling it more than once has no further effect.
//
// The request is not cancelled along with the context the session was opened with, so the
// remote browser is released even when a run is interrupted.
func (s *BrowserSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.parent), s.closeTimeout)
	defer cancel()
	if err := s.api.CloseBrowser(ctx, s.id); err != nil {
		return fmt.Errorf("could not close browser for session %s: %w", s.id, err)
	}
	s.logger.Printf("Closed browser for session %s", s.id)
	return nil
}

// WithBrowserSession opens a browser session, calls action with it, and closes the browser on
// every exit path, including a panic in action. An error from closing is joined to action's.
func WithBrowserSession(
	ctx context.Context,
	api API,
	opts SessionOptions,
	logger framework.Logger,
	action func(*BrowserSession) error,
) (err error) {
	s, err := OpenBrowserSession(ctx, api, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return action(s)
}
