package archiveengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotAt(id string, t time.Time) SnapshotInfo {
	return SnapshotInfo{ID: id, Time: t}
}

func TestKeepBucketMarksOneSnapshotPerDistinctBucket(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	snapshots := []SnapshotInfo{
		snapshotAt("s1", base),
		snapshotAt("s2", base.AddDate(0, 0, -1)),
		snapshotAt("s3", base.AddDate(0, 0, -1)), // same day as s2
		snapshotAt("s4", base.AddDate(0, 0, -2)),
	}
	keep := make(map[string]bool)
	keepBucket(snapshots, 2, keep, func(s SnapshotInfo) string {
		y, m, d := s.Time.Date()
		return y2(y, m, d)
	})

	assert.True(t, keep["s1"])
	assert.True(t, keep["s2"])
	assert.False(t, keep["s3"]) // same bucket as s2, already counted
	assert.False(t, keep["s4"]) // limit of 2 buckets reached
}

func y2(y int, m time.Month, d int) string {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).String()
}

func TestKeepBucketZeroLimitKeepsNothing(t *testing.T) {
	snapshots := []SnapshotInfo{snapshotAt("s1", time.Now())}
	keep := make(map[string]bool)
	keepBucket(snapshots, 0, keep, func(s SnapshotInfo) string { return "any" })
	assert.Empty(t, keep)
}

func TestForgetPrunesSameDaySnapshotsDownToOne(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "f.txt"), []byte("data"), 0o644))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir}
	engine := New("")

	for _, jobID := range []string{"job-1", "job-2", "job-3"} {
		_, err := engine.Backup(ctx, jobID, dest, BackupOptions{Sources: []string{srcDir}}, nil)
		require.NoError(t, err)
	}

	before, err := engine.Snapshots(ctx, dest)
	require.NoError(t, err)
	require.Len(t, before, 3)

	require.NoError(t, engine.Forget(ctx, dest, RetentionPolicy{Daily: 1}))

	after, err := engine.Snapshots(ctx, dest)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID) // newest is always kept
}
