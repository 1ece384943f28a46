package archiveengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arkeep-io/arkeep/shared/archive"
	"github.com/arkeep-io/arkeep/shared/codec"
	"github.com/arkeep-io/arkeep/shared/transport"
)

// Restore reconstructs the snapshot identified by snapshotID ("latest"
// for the most recent, or a full/abbreviated manifest ID) into
// targetDir. includePath, if non-empty, restricts restoration to
// entries whose name has that prefix.
func (e *Engine) Restore(ctx context.Context, dest Destination, snapshotID, targetDir, includePath string) error {
	resolvedID, err := e.resolveSnapshotID(ctx, dest, snapshotID)
	if err != nil {
		return err
	}

	storage, err := ResolveStorage(ctx, dest)
	if err != nil {
		return fmt.Errorf("archiveengine: resolve destination: %w", err)
	}
	defer storage.Close()

	volumes, err := volumesForSnapshot(ctx, storage, resolvedID)
	if err != nil {
		return err
	}
	if len(volumes) == 0 {
		return fmt.Errorf("archiveengine: no volumes found for snapshot %s", resolvedID)
	}

	var cipher codec.Cipher
	if dest.Password != "" {
		key, err := codec.Sum(codec.HashSHA256, []byte(dest.Password))
		if err != nil {
			return fmt.Errorf("archiveengine: derive key: %w", err)
		}
		cipher, err = codec.NewAESGCMCipher(key)
		if err != nil {
			return fmt.Errorf("archiveengine: build cipher: %w", err)
		}
	}
	readOpts := archive.ReadOptions{
		Cipher: cipher,
		Decompress: func(algoName string, data []byte) ([]byte, error) {
			alg, err := codec.ParseCompressAlgorithm(algoName)
			if err != nil {
				return nil, err
			}
			compressor, err := codec.NewCompressor(alg)
			if err != nil {
				return nil, err
			}
			return compressor.Decompress(data)
		},
	}

	var pendingFragments [][]byte
	for _, name := range volumes {
		rc, err := storage.Open(ctx, name)
		if err != nil {
			return fmt.Errorf("archiveengine: open volume %s: %w", name, err)
		}
		reader := archive.NewReader(rc)

		for {
			chunk, err := reader.ReadChunk()
			if err != nil {
				rc.Close()
				if err == archive.ErrMalformedChunk {
					return fmt.Errorf("archiveengine: volume %s: %w", name, err)
				}
				break // clean EOF: move to next volume
			}

			switch chunk.Tag {
			case archive.TagBAR0, archive.TagMETA, archive.TagKEY0, archive.TagSGN0, archive.TagXATR:
				continue
			case archive.TagFHD0:
				continue // fragment position metadata; payload order already matches FDA0 order
			case archive.TagFDA0:
				pendingFragments = append(pendingFragments, chunk.Payload)
				continue
			}

			entryType, ok := archive.EntryTypeForTag(chunk.Tag)
			if !ok {
				continue
			}
			header, err := archive.DecodeEntryHeader(entryType, chunk.Payload)
			if err != nil {
				rc.Close()
				return fmt.Errorf("archiveengine: decode entry header in %s: %w", name, err)
			}

			fragments := pendingFragments
			pendingFragments = nil

			if includePath != "" && !strings.HasPrefix(header.Name, includePath) {
				continue
			}
			if err := restoreEntry(targetDir, header, fragments, readOpts); err != nil {
				rc.Close()
				return err
			}
		}
		rc.Close()
	}

	return nil
}

// restoreEntry writes one decoded entry to disk under targetDir.
func restoreEntry(targetDir string, header *archive.EntryHeader, fragments [][]byte, opts archive.ReadOptions) error {
	destPath := filepath.Join(targetDir, filepath.FromSlash(header.Name))

	switch header.Type {
	case archive.EntryDirectory:
		return os.MkdirAll(destPath, os.FileMode(header.Permission|0o700))

	case archive.EntryLink:
		if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
			return fmt.Errorf("archiveengine: mkdir for %s: %w", header.Name, err)
		}
		_ = os.Remove(destPath)
		return os.Symlink(header.LinkTarget, destPath)

	case archive.EntryFile, archive.EntryImage, archive.EntrySpecial, archive.EntryHardlink:
		content, err := archive.ReadEntry(header, fragments, opts)
		if err != nil {
			return fmt.Errorf("archiveengine: reassemble %s: %w", header.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
			return fmt.Errorf("archiveengine: mkdir for %s: %w", header.Name, err)
		}
		if err := os.WriteFile(destPath, content, os.FileMode(header.Permission|0o600)); err != nil {
			return fmt.Errorf("archiveengine: write %s: %w", header.Name, err)
		}
		return nil

	default:
		return nil
	}
}

// resolveSnapshotID resolves "latest" or an abbreviated ID to the full
// manifest ID recorded at dest.
func (e *Engine) resolveSnapshotID(ctx context.Context, dest Destination, snapshotID string) (string, error) {
	snapshots, err := e.Snapshots(ctx, dest)
	if err != nil {
		return "", fmt.Errorf("archiveengine: list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return "", fmt.Errorf("archiveengine: no snapshots found at destination")
	}
	if snapshotID == "" || snapshotID == "latest" {
		return snapshots[0].ID, nil
	}
	for _, s := range snapshots {
		if s.ID == snapshotID || strings.HasPrefix(s.ID, snapshotID) {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("archiveengine: snapshot %q not found", snapshotID)
}

// volumesForSnapshot returns the volume object names belonging to
// snapshotID, in write order (volumeNamer's "-partNNN.bar" suffix
// sorts lexically in write order for any realistic job count).
func volumesForSnapshot(ctx context.Context, storage transport.Storage, snapshotID string) ([]string, error) {
	objects, err := storage.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("archiveengine: list destination: %w", err)
	}

	prefix := snapshotID + "-part"
	var names []string
	for _, obj := range objects {
		if obj.IsDir {
			continue
		}
		if strings.HasPrefix(obj.Name, prefix) {
			names = append(names, obj.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
