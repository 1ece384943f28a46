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

	h := r.Spawn(context.Background(), "connection-loop", func(ctx context.Context) {
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

func TestLocalStorageAllocatesOncePerHandle(t *testing.T) {
	calls := 0
	ls := NewLocalStorage(func() int {
		calls++
		return calls
	})

	require.Equal(t, 1, ls.Get(Handle(1)))
	require.Equal(t, 1, ls.Get(Handle(1)))
	require.Equal(t, 2, ls.Get(Handle(2)))
	require.Equal(t, 2, calls)
}
