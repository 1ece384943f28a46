package persistence

import (
	"context"
	"fmt"
	"io"

	"github.com/arkeep-io/arkeep/shared/transport"
)

// Mover relocates a storage's object to a moveTo destination instead of
// deleting it outright, per spec.md §4.5's "candidates go to the
// moveTo URI if set, else are purged". It is a thin adapter over
// shared/transport.Storage rather than a new abstraction: Sweeper opens
// the source object on the origin backend and streams it into the
// destination backend resolved from a Node's MoveToURI.
type Mover struct {
	// Resolve opens the transport.Storage addressed by uri. Sweeper
	// calls this once per distinct MoveToURI encountered in a sweep.
	Resolve func(ctx context.Context, uri string) (transport.Storage, error)
}

// Move streams name from origin to the backend resolved from moveToURI,
// then removes it from origin on success.
func (m Mover) Move(ctx context.Context, origin transport.Storage, name, moveToURI string) error {
	if m.Resolve == nil {
		return fmt.Errorf("persistence: move %s: no resolver configured for moveTo %q", name, moveToURI)
	}
	dest, err := m.Resolve(ctx, moveToURI)
	if err != nil {
		return fmt.Errorf("persistence: move %s: resolve %q: %w", name, moveToURI, err)
	}
	defer dest.Close()

	src, err := origin.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("persistence: move %s: open source: %w", name, err)
	}
	defer src.Close()

	w, err := dest.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("persistence: move %s: create destination: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return fmt.Errorf("persistence: move %s: copy: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("persistence: move %s: close destination: %w", name, err)
	}

	if err := origin.Remove(ctx, name); err != nil {
		return fmt.Errorf("persistence: move %s: remove source: %w", name, err)
	}
	return nil
}
