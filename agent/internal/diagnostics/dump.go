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

const dumpTimeout = 30 * time.Second

const (
	dumpBufferStart = 64 * 1024
	dumpBufferMax   = 16 * 1024 * 1024
)

// WatchDumpSignals starts a goroutine that dumps every goroutine's stack
// to the log on SIGQUIT. The returned func stops the watcher.
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

// WatchCrashes runs entry, dumping all goroutine stacks with a crash
// banner before re-panicking if entry panics. The agent cannot recover a
// true SIGSEGV; this only catches Go-level panics.
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
// arrives.
func WaitForQuitSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
	}
}
