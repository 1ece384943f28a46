package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// dumpTimeout bounds how long the dump goroutine waits for
// runtime.Stack to return before giving up and logging the registry
// snapshot alone. runtime.Stack(all=true) stops the world briefly to
// walk every goroutine, so in practice it never approaches this —
// the timeout exists to match the spec's 30-second contract and to
// guard against a pathological stall.
const dumpTimeout = 30 * time.Second

// dumpBufferStart is the initial buffer size handed to runtime.Stack;
// it doubles until the dump fits, capped at dumpBufferMax.
const (
	dumpBufferStart = 64 * 1024
	dumpBufferMax   = 16 * 1024 * 1024
)

// WatchDumpSignals starts a dedicated diagnostics goroutine that
// listens for SIGQUIT and writes an all-goroutine stack dump to
// stderr on each occurrence, prefixed with the registry's live
// worker list. This is the Go analogue of the archiver's per-thread
// signal/condition-variable dump: runtime.Stack(all=true) already
// captures every goroutine under one stop-the-world pause, so there
// is no need to signal workers individually and wait on them one at
// a time — the fan-out the spec describes is inherent to the
// runtime's own stack walk. The returned func stops the watcher.
func (r *Registry) WatchDumpSignals(logger *zap.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGQUIT)

	stopCh := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-stopCh:
				signal.Stop(sigCh)
				return
			case <-sigCh:
				r.dumpOnce(logger, "")
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopCh) })
	}
}

// WatchCrashes installs a panic recovery wrapper for entry, dumping
// all goroutine stacks with a crash banner before re-panicking. It
// stands in for the SEGV/ABRT handlers: Go cannot recover from a real
// SIGSEGV (the runtime considers memory corruption unrecoverable and
// exits immediately), so the closest faithful analogue is capturing
// Go-level panics — including those from runtime errors such as a nil
// dereference — before they unwind past this boundary.
func (r *Registry) WatchCrashes(logger *zap.Logger, entry func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.dumpOnce(logger, "*** CRASHED ***")
			logger.Error("panic recovered after stack dump",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			panic(rec)
		}
	}()
	entry()
}

// dumpOnce performs one all-goroutine dump, bounded by dumpTimeout.
func (r *Registry) dumpOnce(logger *zap.Logger, banner string) {
	workers := r.snapshot()

	fields := make([]zap.Field, 0, len(workers)+1)
	if banner != "" {
		fields = append(fields, zap.String("banner", banner))
	}
	names := make([]string, 0, len(workers))
	for h, name := range workers {
		names = append(names, fmt.Sprintf("%s=%s", h, name))
	}
	fields = append(fields, zap.Strings("registered_workers", names))

	dumpCh := make(chan string, 1)
	go func() {
		buf := make([]byte, dumpBufferStart)
		for {
			n := runtime.Stack(buf, true)
			if n < len(buf) {
				dumpCh <- string(buf[:n])
				return
			}
			if len(buf) >= dumpBufferMax {
				dumpCh <- string(buf)
				return
			}
			buf = make([]byte, len(buf)*2)
		}
	}()

	select {
	case dump := <-dumpCh:
		fields = append(fields, zap.String("goroutine_dump", dump))
		logger.Warn("diagnostic stack dump", fields...)
	case <-time.After(dumpTimeout):
		logger.Error("diagnostic stack dump not available (terminate failed)", fields...)
	}
}

// WaitForQuitSignal blocks until ctx is cancelled or a SIGQUIT/SIGTERM
// arrives, then returns — used by long-running maintenance loops that
// need to observe both server shutdown and the diagnostic signal.
func WaitForQuitSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
	}
}
