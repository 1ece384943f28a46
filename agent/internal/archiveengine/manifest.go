package archiveengine

import (
	"encoding/json"
	"fmt"

	"github.com/arkeep-io/arkeep/shared/archive"
)

// Manifest is the snapshot-level record written once per backup job,
// as a TagMETA chunk after the job's entries, so it lands in the
// job's last volume. It is the
// archiveengine equivalent of the restic.SnapshotInfo the teacher's
// wrapper parsed from "restic snapshots --json" — here it is authored
// by the engine itself rather than queried from an external process,
// since shared/archive has no separate snapshot index of its own.
type Manifest struct {
	ID       string   `json:"id"`
	Time     string   `json:"time"` // RFC3339
	Paths    []string `json:"paths"`
	Tags     []string `json:"tags"`
	Hostname string   `json:"hostname"`
	Username string   `json:"username"`
}

// writeManifest appends m as a TagMETA chunk to vs.
func writeManifest(vs *archive.VolumeSet, m Manifest) error {
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("archiveengine: encode manifest: %w", err)
	}
	if err := vs.WriteHeaderChunk(archive.TagMETA, encoded); err != nil {
		return fmt.Errorf("archiveengine: write manifest: %w", err)
	}
	return nil
}

// decodeManifest parses a TagMETA chunk payload back into a Manifest.
func decodeManifest(payload []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return Manifest{}, fmt.Errorf("archiveengine: decode manifest: %w", err)
	}
	return m, nil
}
