// Package transport implements the storage back-ends an archive can
// be written to or restored from: local filesystem, FTP, SFTP, WebDAV,
// and named (out-of-core-scope) optical/device targets.
package transport

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested object does not exist on
// the storage back-end.
var ErrNotFound = errors.New("transport: object not found")

// ObjectInfo describes an object on a storage back-end.
type ObjectInfo struct {
	Name    string
	Size    int64
	IsDir   bool
}

// Storage is the minimal operation set the archive engine needs from
// any storage back-end: stream a new object in, stream an existing one
// out, list a directory, and delete/rename objects during volume
// rotation and pruning.
type Storage interface {
	// Create opens name for writing, truncating any existing object.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// Open opens name for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns the entries directly under dir.
	List(ctx context.Context, dir string) ([]ObjectInfo, error)
	// Remove deletes name. It is not an error if name does not exist.
	Remove(ctx context.Context, name string) error
	// Rename moves oldName to newName, used to atomically publish a
	// completed archive volume.
	Rename(ctx context.Context, oldName, newName string) error
	// Close releases any underlying connection (network backends).
	Close() error
}

// URL-less factory functions live in the per-backend files
// (file.go, sftp.go, ftp.go, webdav.go, device.go) since each backend
// has a distinct connection-parameter shape.
