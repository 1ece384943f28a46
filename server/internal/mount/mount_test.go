package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMounter struct {
	mounts   []string
	unmounts []string
	failMount bool
}

func (f *fakeMounter) Mount(ctx context.Context, device string) error {
	if f.failMount {
		return context.DeadlineExceeded
	}
	f.mounts = append(f.mounts, device)
	return nil
}

func (f *fakeMounter) Unmount(ctx context.Context, device string) error {
	f.unmounts = append(f.unmounts, device)
	return nil
}

func TestAcquireMountsOnFirstUse(t *testing.T) {
	fm := &fakeMounter{}
	m := NewManager(fm)
	m.Register("vol1", "Volume 1", "/dev/sr0")

	count, err := m.Acquire(context.Background(), "vol1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, []string{"/dev/sr0"}, fm.mounts)

	count, err = m.Acquire(context.Background(), "vol1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Len(t, fm.mounts, 1, "second acquire must not remount")
}

func TestReleaseUnmountsOnlyAtZero(t *testing.T) {
	fm := &fakeMounter{}
	m := NewManager(fm)
	m.Register("vol1", "Volume 1", "/dev/sr0")

	_, _ = m.Acquire(context.Background(), "vol1")
	_, _ = m.Acquire(context.Background(), "vol1")

	require.NoError(t, m.Release(context.Background(), "vol1"))
	require.Empty(t, fm.unmounts)

	require.NoError(t, m.Release(context.Background(), "vol1"))
	require.Equal(t, []string{"/dev/sr0"}, fm.unmounts)

	node, ok := m.Snapshot("vol1")
	require.True(t, ok)
	require.False(t, node.Mounted)
	require.Equal(t, 0, node.UsageCount)
}

func TestReleaseAtZeroIsNoOp(t *testing.T) {
	fm := &fakeMounter{}
	m := NewManager(fm)
	m.Register("vol1", "Volume 1", "/dev/sr0")
	require.NoError(t, m.Release(context.Background(), "vol1"))
	require.Empty(t, fm.unmounts)
}

func TestAcquireUnknownNode(t *testing.T) {
	m := NewManager(&fakeMounter{})
	_, err := m.Acquire(context.Background(), "missing")
	require.Error(t, err)
}

func TestAcquireMountFailureLeavesCountAtZero(t *testing.T) {
	fm := &fakeMounter{failMount: true}
	m := NewManager(fm)
	m.Register("vol1", "Volume 1", "/dev/sr0")

	_, err := m.Acquire(context.Background(), "vol1")
	require.Error(t, err)

	node, ok := m.Snapshot("vol1")
	require.True(t, ok)
	require.Equal(t, 0, node.UsageCount)
	require.False(t, node.Mounted)
}
