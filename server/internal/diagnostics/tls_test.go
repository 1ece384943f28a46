package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

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

func TestLocalStorageDisposeInvokesFree(t *testing.T) {
	ls := NewLocalStorage(func() string { return "v" })
	ls.Get(Handle(1))

	var freed string
	ls.Dispose(Handle(1), func(v string) { freed = v })
	require.Equal(t, "v", freed)

	// Disposing again is a no-op — free must not be called twice.
	called := false
	ls.Dispose(Handle(1), func(string) { called = true })
	require.False(t, called)
}
