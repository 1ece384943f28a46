package archiveengine

import (
	"context"
	"testing"

	"github.com/arkeep-io/arkeep/shared/archive"
	"github.com/arkeep-io/arkeep/shared/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteManifestThenDecodeManifestRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, err := transport.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	vs, err := archive.OpenVolumeSet(ctx, storage, volumeNamer("job-1"), 0)
	require.NoError(t, err)

	m := Manifest{
		ID:       "job-1",
		Time:     "2026-01-15T08:00:00Z",
		Paths:    []string{"/srv/data"},
		Tags:     []string{"nightly"},
		Hostname: "backup-host",
		Username: "svc-backup",
	}
	require.NoError(t, writeManifest(vs, m))
	require.NoError(t, vs.Close())

	rc, err := storage.Open(ctx, "job-1-part001.bar")
	require.NoError(t, err)
	defer rc.Close()

	chunks, err := archive.NewReader(rc).ReadAll()
	require.NoError(t, err)

	var found bool
	for _, c := range chunks {
		if c.Tag != archive.TagMETA {
			continue
		}
		decoded, err := decodeManifest(c.Payload)
		require.NoError(t, err)
		assert.Equal(t, m, decoded)
		found = true
	}
	assert.True(t, found, "expected a TagMETA chunk in the volume")
}

func TestDecodeManifestRejectsInvalidJSON(t *testing.T) {
	_, err := decodeManifest([]byte("not json"))
	assert.Error(t, err)
}
