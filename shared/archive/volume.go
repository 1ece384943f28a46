package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/arkeep-io/arkeep/shared/transport"
)

// FileMode selects what happens when a target archive volume name
// already exists.
type FileMode int

const (
	FileModeStop FileMode = iota
	FileModeRename
	FileModeAppend
	FileModeOverwrite
)

// ParseFileMode parses the config/CLI value for archive-file-mode.
func ParseFileMode(s string) (FileMode, error) {
	switch s {
	case "stop", "":
		return FileModeStop, nil
	case "rename":
		return FileModeRename, nil
	case "append":
		return FileModeAppend, nil
	case "overwrite":
		return FileModeOverwrite, nil
	default:
		return 0, fmt.Errorf("archive: unknown archive-file-mode %q", s)
	}
}

// RestoreMode selects per-file behavior on restore collision.
type RestoreMode int

const (
	RestoreModeStop RestoreMode = iota
	RestoreModeRename
	RestoreModeOverwrite
	RestoreModeSkipExisting
)

// ParseRestoreMode parses the config/CLI value for restore-entry-mode.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch s {
	case "stop", "":
		return RestoreModeStop, nil
	case "rename":
		return RestoreModeRename, nil
	case "overwrite":
		return RestoreModeOverwrite, nil
	case "skip-existing":
		return RestoreModeSkipExisting, nil
	default:
		return 0, fmt.Errorf("archive: unknown restore-entry-mode %q", s)
	}
}

// VolumeNamer produces the final storage name for a given volume
// index (0-based), e.g. "<job>-part001.bar".
type VolumeNamer func(index int) string

// VolumeSet drives multi-volume output: it opens volumes lazily as
// data is written, rotating to a new volume whenever the current
// one's size would exceed partSize, and always stages a volume's
// bytes under a ".part" name so a process crash mid-volume leaves no
// file at the volume's final name, only the partial staging file.
type VolumeSet struct {
	ctx      context.Context
	storage  transport.Storage
	namer    VolumeNamer
	partSize int64 // 0 = unlimited, single volume

	index      int
	cur        *Writer
	curCloser  io.WriteCloser
	stagedName string
}

// OpenVolumeSet begins a new multi-volume archive write session
// against storage, starting at volume index 0.
func OpenVolumeSet(ctx context.Context, storage transport.Storage, namer VolumeNamer, partSize int64) (*VolumeSet, error) {
	vs := &VolumeSet{ctx: ctx, storage: storage, namer: namer, partSize: partSize}
	if err := vs.openVolume(); err != nil {
		return nil, err
	}
	return vs, nil
}

func (vs *VolumeSet) openVolume() error {
	stagedName := vs.namer(vs.index) + ".part"
	wc, err := vs.storage.Create(vs.ctx, stagedName)
	if err != nil {
		return fmt.Errorf("archive: open volume %d: %w", vs.index, err)
	}
	vs.curCloser = wc
	vs.cur = NewWriter(wc)
	vs.stagedName = stagedName
	if _, err := vs.cur.WriteChunk(TagBAR0, []byte{1}); err != nil {
		return fmt.Errorf("archive: write volume header %d: %w", vs.index, err)
	}
	return nil
}

// remainingCapacity returns how many more bytes may be written to the
// current volume before it must roll over, or -1 for unlimited.
func (vs *VolumeSet) remainingCapacity() int64 {
	if vs.partSize <= 0 {
		return -1
	}
	remaining := vs.partSize - vs.cur.BytesWritten()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// rollVolume finalizes the current volume (renaming it from its
// staged name to its final name) and opens the next one.
func (vs *VolumeSet) rollVolume() error {
	if err := vs.finalizeCurrent(); err != nil {
		return err
	}
	vs.index++
	return vs.openVolume()
}

func (vs *VolumeSet) finalizeCurrent() error {
	if err := vs.curCloser.Close(); err != nil {
		return fmt.Errorf("archive: close volume %d: %w", vs.index, err)
	}
	finalName := vs.namer(vs.index)
	if err := vs.storage.Rename(vs.ctx, vs.stagedName, finalName); err != nil {
		return fmt.Errorf("archive: publish volume %d: %w", vs.index, err)
	}
	return nil
}

// WriteHeaderChunk writes a non-fragment chunk (entry header, KEY0,
// SGN0, META, XATR) into the current volume, rolling to a new volume
// first if the chunk would not fit and a part size is configured.
// Header chunks are never split mid-payload.
func (vs *VolumeSet) WriteHeaderChunk(tag Tag, payload []byte) error {
	approxSize := int64(4 + 10 + len(payload))
	if cap := vs.remainingCapacity(); cap >= 0 && cap < approxSize && vs.cur.BytesWritten() > 1 {
		if err := vs.rollVolume(); err != nil {
			return err
		}
	}
	if _, err := vs.cur.WriteChunk(tag, payload); err != nil {
		return fmt.Errorf("archive: write %s chunk: %w", tag, err)
	}
	return nil
}

// WriteFragmentedData splits data across however many volumes are
// needed, writing an FHD0+FDA0 pair per contiguous piece. entryOffset
// is the logical byte offset of data within its entry's content
// stream (post-compression/encryption, i.e. the offset into the
// stored byte stream, matching the FHD0 contract). Returns the
// fragment headers written, in order.
func (vs *VolumeSet) WriteFragmentedData(data []byte, entryOffset uint64) ([]FragmentHeader, error) {
	var fragments []FragmentHeader
	remainingData := data
	offset := entryOffset

	for len(remainingData) > 0 {
		cap := vs.remainingCapacity()
		var chunkLen int
		switch {
		case cap < 0:
			chunkLen = len(remainingData)
		case cap <= 20: // not enough room left even for headers; roll now
			if err := vs.rollVolume(); err != nil {
				return nil, err
			}
			continue
		default:
			avail := cap - 20 // reserve room for the FHD0 header itself
			if avail <= 0 {
				if err := vs.rollVolume(); err != nil {
					return nil, err
				}
				continue
			}
			if int64(len(remainingData)) <= avail {
				chunkLen = len(remainingData)
			} else {
				chunkLen = int(avail)
			}
		}

		piece := remainingData[:chunkLen]
		fh := FragmentHeader{FragmentIndex: uint32(vs.index), Offset: offset, Size: uint64(len(piece))}
		if err := vs.WriteHeaderChunk(TagFHD0, fh.Encode()); err != nil {
			return nil, err
		}
		if _, err := vs.cur.WriteChunk(TagFDA0, piece); err != nil {
			return nil, fmt.Errorf("archive: write FDA0 chunk: %w", err)
		}
		fragments = append(fragments, fh)

		remainingData = remainingData[chunkLen:]
		offset += uint64(chunkLen)

		if len(remainingData) > 0 {
			if err := vs.rollVolume(); err != nil {
				return nil, err
			}
		}
	}

	return fragments, nil
}

// Close finalizes the last open volume.
func (vs *VolumeSet) Close() error {
	return vs.finalizeCurrent()
}

// VolumeCount returns how many volumes have been opened so far
// (including the currently-open one).
func (vs *VolumeSet) VolumeCount() int {
	return vs.index + 1
}
