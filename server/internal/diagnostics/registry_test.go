package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnJoinTerminates(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})

	h := r.Spawn(context.Background(), "worker-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})

	<-started
	require.False(t, r.IsTerminated(h))

	r.RequestQuit(h)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Join(ctx, h))
	require.True(t, r.IsTerminated(h))
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	h := r.Spawn(context.Background(), "worker-1", func(ctx context.Context) {})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Join(ctx, h))
	// Second join: the handle has already been evicted from the
	// registry, which is itself a no-op success per spec.
	require.NoError(t, r.Join(ctx, h))
}

func TestJoinUnknownHandleIsNoOp(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Join(ctx, Handle(999)))
}

func TestHandleStringNoneSentinel(t *testing.T) {
	require.Equal(t, "none", Handle(0).String())
	require.NotEqual(t, "none", Handle(1).String())
}

func TestRequestQuitOnUnknownHandleDoesNotPanic(t *testing.T) {
	r := NewRegistry()
	require.NotPanics(t, func() { r.RequestQuit(Handle(42)) })
}
