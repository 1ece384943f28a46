package archiveengine

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/arkeep-io/arkeep/shared/archive"
	"github.com/arkeep-io/arkeep/shared/codec"
	"github.com/arkeep-io/arkeep/shared/pattern"
)

// BackupOptions carries the parameters for a backup run, mirroring
// agent/internal/restic.Wrapper.BackupOptions so the executor's call
// site changes shape as little as possible.
type BackupOptions struct {
	Sources         []string
	Tags            []string
	ExcludePatterns []string
	HashAlgorithm   codec.HashAlgorithm
	CompressAlgo    codec.CompressAlgorithm
	PartSizeBytes   int64 // 0 = unlimited volume size
}

// EntryFragmentResult is one contiguous byte range of an entry's
// stored content, positioned within the entry's logical byte stream.
// FragmentIndex is the volume (0-based) the fragment was written to —
// archive.VolumeSet stamps it with the volume index at write time, so
// a multi-volume backup's fragments can be told apart by destination
// volume without re-reading the archive.
type EntryFragmentResult struct {
	FragmentIndex uint32
	Offset        uint64
	Size          uint64
}

// EntrySummary is the catalog-facing record of one archived entry,
// carrying archive.WrittenEntry's header and fragment data forward so
// the executor can report it to the server without re-opening the
// archive.
type EntrySummary struct {
	Type            archive.EntryType
	Name            string
	Size            uint64
	TimeLastChanged time.Time
	UserID          uint32
	GroupID         uint32
	Permission      uint32
	ContentHash     []byte
	HashAlgorithm   string
	LinkTarget      string
	Fragments       []EntryFragmentResult
}

// BackupResult summarizes a completed Backup call: the total bytes
// written and the per-entry data needed to populate the index
// catalog's entries and entryFragments tables.
type BackupResult struct {
	SizeBytes uint64
	Entries   []EntrySummary
}

// SnapshotInfo summarizes one completed backup job, read back from its
// archive's manifest chunk.
type SnapshotInfo struct {
	ID       string
	Time     time.Time
	Paths    []string
	Tags     []string
	Hostname string
	Username string
	ShortID  string
}

// ProgressEvent reports incremental backup progress. Field names match
// agent/internal/restic.ProgressEvent so the executor's progress
// callback plumbing is unchanged.
type ProgressEvent struct {
	MessageType string
	FilesDone   uint64
	BytesDone   uint64
	TotalFiles  uint64
}

// ProgressFunc is called for each progress event. Returning an error
// cancels the operation.
type ProgressFunc func(event ProgressEvent) error

// Engine drives backup/restore operations directly against
// shared/archive, shared/codec, and shared/transport — the in-process
// equivalent of agent/internal/restic.Wrapper's subprocess calls.
type Engine struct {
	hostname string
}

// New creates an Engine. hostname is recorded on every manifest; pass
// "" to have New fill it in from os.Hostname.
func New(hostname string) *Engine {
	if hostname == "" {
		if h, err := os.Hostname(); err == nil {
			hostname = h
		}
	}
	return &Engine{hostname: hostname}
}

// Backup walks opts.Sources, writes every regular file, directory,
// and symlink found beneath them as archive entries, and publishes the
// resulting volume(s) to dest. jobID seeds both the volume naming
// scheme and the manifest's snapshot ID.
func (e *Engine) Backup(ctx context.Context, jobID string, dest Destination, opts BackupOptions, onProgress ProgressFunc) (*BackupResult, error) {
	storage, err := ResolveStorage(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("archiveengine: resolve destination: %w", err)
	}
	defer storage.Close()

	var cipher codec.Cipher
	if dest.Password != "" {
		key, err := codec.Sum(codec.HashSHA256, []byte(dest.Password))
		if err != nil {
			return nil, fmt.Errorf("archiveengine: derive key: %w", err)
		}
		cipher, err = codec.NewAESGCMCipher(key)
		if err != nil {
			return nil, fmt.Errorf("archiveengine: build cipher: %w", err)
		}
	}

	compressor, err := codec.NewCompressor(opts.CompressAlgo)
	if err != nil {
		return nil, fmt.Errorf("archiveengine: build compressor: %w", err)
	}

	vs, err := archive.OpenVolumeSet(ctx, storage, volumeNamer(jobID), opts.PartSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("archiveengine: open volume set: %w", err)
	}

	writeOpts := archive.WriteOptions{
		HashAlgorithm:    opts.HashAlgorithm,
		Compressor:       compressor,
		CompressAlgoName: opts.CompressAlgo.Family,
		Cipher:           cipher,
	}
	if writeOpts.HashAlgorithm == "" {
		writeOpts.HashAlgorithm = codec.HashSHA256
	}

	var filesDone, bytesDone uint64
	var entries []EntrySummary
	walkErr := e.walkSources(opts.Sources, opts.ExcludePatterns, func(path string, info os.FileInfo) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entryType, content, meta, err := describeEntry(path, info)
		if err != nil {
			return err
		}
		if content != nil {
			defer content.Close()
		}

		var reader io.Reader = content
		if reader == nil {
			reader = eofReader{}
		}

		written, err := archive.WriteEntry(vs, path, entryType, meta, reader, writeOpts)
		if err != nil {
			return fmt.Errorf("archiveengine: write entry %s: %w", path, err)
		}

		filesDone++
		if written != nil {
			bytesDone += written.Header.Size
			fragments := make([]EntryFragmentResult, len(written.Fragments))
			for i, f := range written.Fragments {
				fragments[i] = EntryFragmentResult{FragmentIndex: f.FragmentIndex, Offset: f.Offset, Size: f.Size}
			}
			entries = append(entries, EntrySummary{
				Type:            written.Header.Type,
				Name:            written.Header.Name,
				Size:            written.Header.Size,
				TimeLastChanged: written.Header.TimeLastChanged,
				UserID:          written.Header.UserID,
				GroupID:         written.Header.GroupID,
				Permission:      written.Header.Permission,
				ContentHash:     written.Header.ContentHash,
				HashAlgorithm:   written.Header.HashAlgorithm,
				LinkTarget:      written.Header.LinkTarget,
				Fragments:       fragments,
			})
		}
		if onProgress != nil {
			if err := onProgress(ProgressEvent{
				MessageType: "status",
				FilesDone:   filesDone,
				BytesDone:   bytesDone,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		vs.Close()
		return nil, fmt.Errorf("archiveengine: backup %s: %w", jobID, walkErr)
	}

	manifest := Manifest{
		ID:       jobID,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Paths:    opts.Sources,
		Tags:     opts.Tags,
		Hostname: e.hostname,
		Username: currentUsername(),
	}
	if err := writeManifest(vs, manifest); err != nil {
		vs.Close()
		return nil, err
	}

	if err := vs.Close(); err != nil {
		return nil, fmt.Errorf("archiveengine: close volume set: %w", err)
	}

	result := &BackupResult{SizeBytes: bytesDone, Entries: entries}
	if onProgress != nil {
		if err := onProgress(ProgressEvent{
			MessageType: "summary",
			FilesDone:   filesDone,
			BytesDone:   bytesDone,
			TotalFiles:  filesDone,
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Snapshots lists the manifests recorded at dest, newest first.
func (e *Engine) Snapshots(ctx context.Context, dest Destination) ([]SnapshotInfo, error) {
	storage, err := ResolveStorage(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("archiveengine: resolve destination: %w", err)
	}
	defer storage.Close()

	objects, err := storage.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("archiveengine: list destination: %w", err)
	}

	var snapshots []SnapshotInfo
	for _, obj := range objects {
		if obj.IsDir {
			continue
		}
		rc, err := storage.Open(ctx, obj.Name)
		if err != nil {
			return nil, fmt.Errorf("archiveengine: open %s: %w", obj.Name, err)
		}
		chunks, err := archive.NewReader(rc).ReadAll()
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("archiveengine: read %s: %w", obj.Name, err)
		}

		for _, c := range chunks {
			if c.Tag != archive.TagMETA {
				continue
			}
			m, err := decodeManifest(c.Payload)
			if err != nil {
				continue // skip volumes whose metadata chunk predates this format
			}
			t, _ := time.Parse(time.RFC3339, m.Time)
			shortID := m.ID
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}
			snapshots = append(snapshots, SnapshotInfo{
				ID:       m.ID,
				Time:     t,
				Paths:    m.Paths,
				Tags:     m.Tags,
				Hostname: m.Hostname,
				Username: m.Username,
				ShortID:  shortID,
			})
		}
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Time.After(snapshots[j].Time) })
	return snapshots, nil
}

// Check reads back every chunk of every volume at dest, verifying the
// chunk stream decodes cleanly end to end. It does not re-verify
// per-entry content hashes, since doing so would require reassembling
// every entry's fragments, which Restore already covers.
func (e *Engine) Check(ctx context.Context, dest Destination, onProgress ProgressFunc) error {
	storage, err := ResolveStorage(ctx, dest)
	if err != nil {
		return fmt.Errorf("archiveengine: resolve destination: %w", err)
	}
	defer storage.Close()

	objects, err := storage.List(ctx, "")
	if err != nil {
		return fmt.Errorf("archiveengine: list destination: %w", err)
	}

	var checked uint64
	for _, obj := range objects {
		if obj.IsDir {
			continue
		}
		rc, err := storage.Open(ctx, obj.Name)
		if err != nil {
			return fmt.Errorf("archiveengine: open %s: %w", obj.Name, err)
		}
		_, err = archive.NewReader(rc).ReadAll()
		rc.Close()
		if err != nil {
			return fmt.Errorf("archiveengine: volume %s failed integrity check: %w", obj.Name, err)
		}
		checked++
		if onProgress != nil {
			if err := onProgress(ProgressEvent{MessageType: "check-ok", FilesDone: checked}); err != nil {
				return err
			}
		}
	}
	return nil
}

// currentUsername returns the local OS username, or "" if it cannot
// be determined (e.g. running as a container UID with no /etc/passwd
// entry).
func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// describeEntry classifies a filesystem path into its entry type,
// content reader (nil for directories and non-regular files), and
// metadata, using syscall.Stat_t for the owner/group fields restic
// itself records from the same source.
func describeEntry(path string, info os.FileInfo) (archive.EntryType, *os.File, archive.EntryMetadata, error) {
	meta := archive.EntryMetadata{
		TimeLastChanged: info.ModTime(),
		Permission:      uint32(info.Mode().Perm()),
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		meta.UserID = st.Uid
		meta.GroupID = st.Gid
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return 0, nil, meta, fmt.Errorf("readlink %s: %w", path, err)
		}
		meta.LinkTarget = target
		return archive.EntryLink, nil, meta, nil

	case info.IsDir():
		return archive.EntryDirectory, nil, meta, nil

	case info.Mode().IsRegular():
		f, err := os.Open(path)
		if err != nil {
			return 0, nil, meta, fmt.Errorf("open %s: %w", path, err)
		}
		return archive.EntryFile, f, meta, nil

	default:
		return archive.EntrySpecial, nil, meta, nil
	}
}

// compileExcludes builds a pattern.List from glob-syntax exclude
// strings, the same syntax BackupOptions.ExcludePatterns carries over
// from the server's policy configuration.
func compileExcludes(patterns []string) (*pattern.List, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	list := pattern.NewList()
	for _, p := range patterns {
		compiled, err := pattern.Compile(pattern.TypeGlob, p)
		if err != nil {
			return nil, fmt.Errorf("archiveengine: compile exclude pattern %q: %w", p, err)
		}
		list.Add(compiled)
	}
	return list, nil
}

// walkSources walks each source root, invoking visit for every entry
// found (files, directories, and symlinks), skipping anything matched
// by excludePatterns.
func (e *Engine) walkSources(sources []string, excludePatterns []string, visit func(path string, info os.FileInfo) error) error {
	exclude, err := compileExcludes(excludePatterns)
	if err != nil {
		return err
	}

	for _, root := range sources {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return fmt.Errorf("walk %s: %w", path, err)
			}
			if exclude != nil && exclude.MatchAny(path) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return visit(path, info)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
