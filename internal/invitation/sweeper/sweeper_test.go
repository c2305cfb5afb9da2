package sweeper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthtrack/internal/invitation/service"
	"healthtrack/internal/invitation/store"
	"healthtrack/pkg/requestcontext"
)

type recordingExpirer struct {
	mu    sync.Mutex
	calls []context.Context
	n     int
	err   error
}

func (e *recordingExpirer) SweepExpired(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, ctx)
	return e.n, e.err
}

func (e *recordingExpirer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func TestNew(t *testing.T) {
	_, err := New(nil, time.Second)
	require.Error(t, err)

	_, err = New(&recordingExpirer{}, 0)
	require.Error(t, err)
}

func TestRunOnceScopesContext(t *testing.T) {
	fixed := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	exp := &recordingExpirer{n: 3}
	r, err := New(exp, time.Minute, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, exp.calls, 1)
	ctx := exp.calls[0]
	assert.Equal(t, fixed, requestcontext.Now(ctx))
	assert.Equal(t, ActorID, requestcontext.ActorID(ctx))
	assert.NotEmpty(t, requestcontext.RequestID(ctx))
}

func TestRunOnceLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	exp := &recordingExpirer{err: errors.New("db down")}
	r, err := New(exp, time.Minute, WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "invitation sweep failed")
}

func TestRunKeepsGoingAfterFailureAndStopsOnCancel(t *testing.T) {
	exp := &recordingExpirer{err: errors.New("transient")}
	r, err := New(exp, 5*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return exp.count() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunOnceAgainstLifecycle(t *testing.T) {
	sent := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	lifecycle, err := service.New(store.NewInMemory())
	require.NoError(t, err)

	ctx := requestcontext.WithTime(context.Background(), sent)
	_, err = lifecycle.Create(ctx, "inviter", "a@x.io", "walk", time.Hour)
	require.NoError(t, err)

	r, err := New(lifecycle, time.Minute, WithClock(func() time.Time { return sent.Add(2 * time.Hour) }))
	require.NoError(t, err)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
