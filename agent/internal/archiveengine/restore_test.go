package archiveengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkeep-io/arkeep/shared/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveFileStorage(t *testing.T) (*transport.FileStorage, error) {
	t.Helper()
	return transport.NewFileStorage(t.TempDir())
}

func writeEmptyFile(t *testing.T, storage *transport.FileStorage, name string) error {
	t.Helper()
	w, err := storage.Create(context.Background(), name)
	if err != nil {
		return err
	}
	return w.Close()
}

func TestBackupThenRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello world"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("nested content"), 0o644))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir, Password: "hunter2"}

	engine := New("restore-host")
	_, err := engine.Backup(ctx, "job-restore", dest, BackupOptions{Sources: []string{srcDir}}, nil)
	require.NoError(t, err)

	restoreDir := t.TempDir()
	require.NoError(t, engine.Restore(ctx, dest, "latest", restoreDir, ""))

	restoredA, err := os.ReadFile(filepath.Join(restoreDir, filepath.FromSlash(filepath.Join(srcDir, "a.txt"))))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(restoredA))

	restoredB, err := os.ReadFile(filepath.Join(restoreDir, filepath.FromSlash(filepath.Join(srcDir, "sub", "b.txt"))))
	require.NoError(t, err)
	assert.Equal(t, "nested content", string(restoredB))
}

func TestRestoreByAbbreviatedSnapshotID(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "f.txt"), []byte("data"), 0o644))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir}

	engine := New("")
	_, err := engine.Backup(ctx, "abcdef123456", dest, BackupOptions{Sources: []string{srcDir}}, nil)
	require.NoError(t, err)

	restoreDir := t.TempDir()
	require.NoError(t, engine.Restore(ctx, dest, "abcdef12", restoreDir, ""))

	restored, err := os.ReadFile(filepath.Join(restoreDir, filepath.FromSlash(filepath.Join(srcDir, "f.txt"))))
	require.NoError(t, err)
	assert.Equal(t, "data", string(restored))
}

func TestRestoreUnknownSnapshotIDFails(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "f.txt"), []byte("data"), 0o644))

	destDir := t.TempDir()
	dest := Destination{Type: DestLocal, RepoURL: destDir}

	engine := New("")
	_, err := engine.Backup(ctx, "job-known", dest, BackupOptions{Sources: []string{srcDir}}, nil)
	require.NoError(t, err)

	err = engine.Restore(ctx, dest, "nonexistent", t.TempDir(), "")
	assert.Error(t, err)
}

func TestVolumesForSnapshotFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	storage, err := resolveFileStorage(t)
	require.NoError(t, err)

	require.NoError(t, writeEmptyFile(t, storage, "job-a-part001.bar"))
	require.NoError(t, writeEmptyFile(t, storage, "job-a-part002.bar"))
	require.NoError(t, writeEmptyFile(t, storage, "job-b-part001.bar"))

	names, err := volumesForSnapshot(ctx, storage, "job-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-a-part001.bar", "job-a-part002.bar"}, names)
}
