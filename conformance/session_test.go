package conformance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tpgarc/arc-conformance-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolling = SessionOptions{PollInterval: time.Millisecond, MaxAttempts: 5, CloseTimeout: time.Second}

func statuses(values ...servicedef.PooledMachineStatus) []servicedef.PooledMachineStatus {
	return values
}

func TestWaitForSessionReturnsImmediatelyIfNewSessionIsReady(t *testing.T) {
	api := newFakeAPI()

	session, err := WaitForSession(context.Background(), api, fastPolling, nil)
	require.NoError(t, err)
	assert.Equal(t, testSessionID, session.SessionID)
	assert.Equal(t, []string{"NewSession"}, api.Calls())
}

func TestWaitForSessionPollsUntilReady(t *testing.T) {
	api := newFakeAPI()
	api.statuses = statuses(100, 200, 300, 400)

	session, err := WaitForSession(context.Background(), api, fastPolling, nil)
	require.NoError(t, err)
	assert.True(t, session.Ready())
	assert.Equal(t, []string{
		"NewSession",
		"SessionStatus " + testSessionID,
		"SessionStatus " + testSessionID,
		"SessionStatus " + testSessionID,
	}, api.Calls())
}

func TestWaitForSessionKeepsPollingOnStatusesAboveReady(t *testing.T) {
	api := newFakeAPI()
	api.statuses = statuses(0, 500, 401, 400)

	session, err := WaitForSession(context.Background(), api, fastPolling, nil)
	require.NoError(t, err)
	assert.True(t, session.Ready())
	assert.Equal(t, 3, api.countCalls("SessionStatus"))
}

func TestWaitForSessionTimesOutAfterMaxAttempts(t *testing.T) {
	api := newFakeAPI()
	api.statuses = statuses(100, 200)

	opts := fastPolling
	opts.MaxAttempts = 3
	_, err := WaitForSession(context.Background(), api, opts, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionTimeout)

	var timeout *SessionTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, testSessionID, timeout.SessionID)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, servicedef.PooledMachineStatus(200), timeout.LastStatus)
	assert.Equal(t, 3, api.countCalls("SessionStatus"))
}

func TestWaitForSessionStopsWhenContextIsCancelled(t *testing.T) {
	api := newFakeAPI()
	api.statuses = statuses(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := fastPolling
	opts.PollInterval = time.Hour
	_, err := WaitForSession(ctx, api, opts, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSessionTimeout)
	assert.Equal(t, 0, api.countCalls("SessionStatus"))
}

func TestWaitForSessionReturnsStatusError(t *testing.T) {
	api := newFakeAPI()
	api.statuses = statuses(100)
	fakeErr := errors.New("sorry")
	api.errs["SessionStatus"] = fakeErr

	_, err := WaitForSession(context.Background(), api, fastPolling, nil)
	assert.ErrorIs(t, err, fakeErr)
	assert.Contains(t, err.Error(), testSessionID)
}

func TestWithBrowserSessionClosesBrowserAfterSuccess(t *testing.T) {
	api := newFakeAPI()

	var seenID string
	err := WithBrowserSession(context.Background(), api, fastPolling, nil, func(s *BrowserSession) error {
		seenID = s.ID()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, testSessionID, seenID)
	assert.Equal(t, []string{
		"NewSession",
		"OpenBrowser " + testSessionID,
		"CloseBrowser " + testSessionID,
	}, api.Calls())
}

func TestWithBrowserSessionClosesBrowserAfterError(t *testing.T) {
	api := newFakeAPI()
	fakeErr := errors.New("scan failed")

	err := WithBrowserSession(context.Background(), api, fastPolling, nil, func(s *BrowserSession) error {
		return fakeErr
	})
	assert.ErrorIs(t, err, fakeErr)
	assert.Equal(t, 1, api.countCalls("CloseBrowser"))
}

func TestWithBrowserSessionClosesBrowserAfterPanic(t *testing.T) {
	api := newFakeAPI()

	assert.Panics(t, func() {
		_ = WithBrowserSession(context.Background(), api, fastPolling, nil, func(s *BrowserSession) error {
			panic("boom")
		})
	})
	assert.Equal(t, 1, api.countCalls("CloseBrowser"))
}

func TestWithBrowserSessionJoinsCloseError(t *testing.T) {
	api := newFakeAPI()
	actionErr := errors.New("scan failed")
	closeErr := errors.New("close failed")
	api.errs["CloseBrowser"] = closeErr

	err := WithBrowserSession(context.Background(), api, fastPolling, nil, func(s *BrowserSession) error {
		return actionErr
	})
	assert.ErrorIs(t, err, actionErr)
	assert.ErrorIs(t, err, closeErr)
}

func TestWithBrowserSessionDoesNotCloseIfBrowserNeverOpened(t *testing.T) {
	api := newFakeAPI()
	openErr := errors.New("no browser")
	api.errs["OpenBrowser"] = openErr

	called := false
	err := WithBrowserSession(context.Background(), api, fastPolling, nil, func(s *BrowserSession) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, openErr)
	assert.False(t, called)
	assert.Equal(t, 0, api.countCalls("CloseBrowser"))
}

func TestBrowserIsClosedEvenIfRunContextWasCancelled(t *testing.T) {
	api := newFakeAPI()
	ctx, cancel := context.WithCancel(context.Background())

	err := WithBrowserSession(ctx, api, fastPolling, nil, func(s *BrowserSession) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, api.countCalls("CloseBrowser"))
	assert.NoError(t, api.closeContextError())
}

func TestBrowserSessionCloseIsIdempotent(t *testing.T) {
	api := newFakeAPI()

	s, err := OpenBrowserSession(context.Background(), api, fastPolling, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, api.countCalls("CloseBrowser"))
}

func TestSessionOptionsDefaults(t *testing.T) {
	opts := SessionOptions{}.withDefaults()
	assert.Equal(t, DefaultSessionOptions(), opts)

	custom := SessionOptions{PollInterval: time.Second * 2, MaxAttempts: 7, CloseTimeout: time.Second}
	assert.Equal(t, custom, custom.withDefaults())
}
