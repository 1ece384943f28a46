package archiveengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkeep-io/arkeep/shared/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineBackupThenSnapshotsThenCheck(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("nested"), 0o644))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(srcDir, "link-to-a")))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir, Password: "correct horse battery staple"}

	engine := New("test-host")

	opts := BackupOptions{
		Sources:      []string{srcDir},
		Tags:         []string{"integration"},
		CompressAlgo: codec.CompressAlgorithm{Family: "none"},
	}

	var events []ProgressEvent
	result, err := engine.Backup(ctx, "job-abc", dest, opts, func(ev ProgressEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 5) // srcDir itself, a.txt, sub/, sub/b.txt, link-to-a
	require.NotEmpty(t, events)
	assert.Equal(t, "summary", events[len(events)-1].MessageType)

	snapshots, err := engine.Snapshots(ctx, dest)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "job-abc", snapshots[0].ID)
	assert.Equal(t, "test-host", snapshots[0].Hostname)
	assert.Equal(t, []string{"integration"}, snapshots[0].Tags)
	assert.Equal(t, "job-abc", snapshots[0].ShortID) // shorter than 8 chars, kept as-is

	require.NoError(t, engine.Check(ctx, dest, nil))
}

func TestEngineBackupWithCompressionAndEncryption(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "payload.bin"), []byte("the quick brown fox jumps over the lazy dog"), 0o644))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir, Password: "s3cr3t"}

	engine := New("")
	opts := BackupOptions{
		Sources:      []string{srcDir},
		CompressAlgo: codec.CompressAlgorithm{Family: "gzip"},
	}
	_, err := engine.Backup(ctx, "job-gz", dest, opts, nil)
	require.NoError(t, err)

	snapshots, err := engine.Snapshots(ctx, dest)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	require.NoError(t, engine.Check(ctx, dest, nil))
}

func TestEngineBackupExcludesMatchingPaths(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "skip"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "skip", "drop.txt"), []byte("drop"), 0o644))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir}

	engine := New("")
	opts := BackupOptions{
		Sources:         []string{srcDir},
		ExcludePatterns: []string{filepath.Join(srcDir, "skip")},
	}
	_, err := engine.Backup(ctx, "job-excl", dest, opts, nil)
	require.NoError(t, err)
	require.NoError(t, engine.Check(ctx, dest, nil))
}

func TestSnapshotsReturnsEmptyForUnwrittenDestination(t *testing.T) {
	ctx := context.Background()
	dest := Destination{Type: DestLocal, RepoURL: t.TempDir()}
	engine := New("")

	snapshots, err := engine.Snapshots(ctx, dest)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
