// Package mount implements the reference-counted MountNode lifecycle
// of spec.md §3: a named device becomes mounted on its first acquire
// and is unmounted when its usage count returns to zero. spec.md §5
// calls for the mount list to be "guarded by a binary semaphore with
// read/write acquire; writers wait-forever" — the direct Go expression
// of that is sync.RWMutex, whose Lock has no timeout parameter to begin
// with.
package mount

import (
	"context"
	"fmt"
	"sync"
)

// Mounter performs the actual mount/unmount of a device. Network and
// optical backends implement this differently; server/internal/mount
// only owns the reference-counting, not the I/O.
type Mounter interface {
	Mount(ctx context.Context, device string) error
	Unmount(ctx context.Context, device string) error
}

// Node is one managed mount point: spec.md's MountNode.
type Node struct {
	ID         string
	Name       string
	Device     string
	Mounted    bool
	UsageCount int
}

// Manager owns a set of Nodes keyed by ID, serializing all mutation
// behind a single RWMutex per spec.md §5's shared-resource rule.
type Manager struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	mounter Mounter
}

// NewManager creates an empty Manager. mounter performs the underlying
// mount/unmount syscalls or remote-volume attach/detach.
func NewManager(mounter Mounter) *Manager {
	return &Manager{nodes: make(map[string]*Node), mounter: mounter}
}

// Register adds a mount point definition without mounting it. Acquire
// must be called at least once before the device is actually mounted.
func (m *Manager) Register(id, name, device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[id] = &Node{ID: id, Name: name, Device: device}
}

// Acquire increments id's usage count, mounting the device on the
// transition from 0 to 1. Returns the resulting usage count.
func (m *Manager) Acquire(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[id]
	if !ok {
		return 0, fmt.Errorf("mount: unknown mount point %q", id)
	}

	if node.UsageCount == 0 {
		if err := m.mounter.Mount(ctx, node.Device); err != nil {
			return 0, fmt.Errorf("mount: mount %q: %w", node.Device, err)
		}
		node.Mounted = true
	}
	node.UsageCount++
	return node.UsageCount, nil
}

// Release decrements id's usage count, unmounting the device once the
// count returns to zero. Releasing a node already at zero is a no-op.
func (m *Manager) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("mount: unknown mount point %q", id)
	}
	if node.UsageCount == 0 {
		return nil
	}

	node.UsageCount--
	if node.UsageCount == 0 {
		if err := m.mounter.Unmount(ctx, node.Device); err != nil {
			node.UsageCount++ // leave accounting consistent with the failed unmount
			return fmt.Errorf("mount: unmount %q: %w", node.Device, err)
		}
		node.Mounted = false
	}
	return nil
}

// Snapshot returns a point-in-time copy of id's state.
func (m *Manager) Snapshot(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *node, true
}
