// Package bandwidth implements token-bucket throughput shaping for
// archive transport streams, plus the time-of-day node list that lets
// a shaping limit vary by schedule (e.g. throttle during business
// hours, unrestricted overnight).
package bandwidth

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Node is a single bandwidth limit, optionally scoped to a time-of-day
// window. A Node with a zero Window applies at all times.
type Node struct {
	// BytesPerSecond is the sustained rate limit. Zero means unlimited.
	BytesPerSecond int64
	// Window, if non-nil, restricts this Node to the given daily window.
	Window *TimeWindow
}

// TimeWindow is a daily time-of-day range, e.g. 09:00-17:00, that
// includes Start and excludes End.
type TimeWindow struct {
	Start time.Duration // offset from midnight
	End   time.Duration
}

// Contains reports whether t's time-of-day falls within the window.
func (w TimeWindow) Contains(t time.Time) bool {
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	if w.Start <= w.End {
		return offset >= w.Start && offset < w.End
	}
	// Window wraps midnight.
	return offset >= w.Start || offset < w.End
}

// List is an ordered set of Nodes; the active limit at a given instant
// is that of the first Node, in order, whose Window is nil or contains
// that instant. A nil-Window Node placed last acts as a catch-all default.
type List struct {
	nodes []Node
}

// NewList builds a List from the given nodes, evaluated in order.
func NewList(nodes ...Node) *List {
	return &List{nodes: nodes}
}

// ActiveLimit returns the BytesPerSecond in effect at time t, or 0
// (unlimited) if no node applies.
func (l *List) ActiveLimit(t time.Time) int64 {
	for _, n := range l.nodes {
		if n.Window == nil || n.Window.Contains(t) {
			return n.BytesPerSecond
		}
	}
	return 0
}

// Shaper wraps an io.Reader or io.Writer with a token-bucket rate
// limiter governed by a List, re-evaluated on every refill so a
// schedule change (or day boundary) takes effect without restarting
// the transfer.
type Shaper struct {
	list   *List
	now    func() time.Time
	mu     sync.Mutex
	tokens int64
	last   time.Time
}

// NewShaper creates a Shaper driven by list. Pass nil for list to get
// an always-unlimited shaper (useful as a default value).
func NewShaper(list *List) *Shaper {
	if list == nil {
		list = NewList(Node{})
	}
	return &Shaper{list: list, now: time.Now, last: time.Now()}
}

// Wait blocks until n bytes may be transferred under the current
// limit, consuming that allowance. Returns immediately if unlimited.
func (s *Shaper) Wait(ctx context.Context, n int) error {
	limit := s.list.ActiveLimit(s.now())
	if limit <= 0 {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	elapsed := now.Sub(s.last)
	s.last = now
	s.tokens += int64(elapsed.Seconds() * float64(limit))
	if s.tokens > limit {
		s.tokens = limit
	}
	s.tokens -= int64(n)
	deficit := -s.tokens
	s.mu.Unlock()

	if deficit <= 0 {
		return nil
	}

	wait := time.Duration(float64(deficit) / float64(limit) * float64(time.Second))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reader wraps r, shaping reads through s.
func (s *Shaper) Reader(ctx context.Context, r io.Reader) io.Reader {
	return &shapedReader{ctx: ctx, r: r, shaper: s}
}

// Writer wraps w, shaping writes through s.
func (s *Shaper) Writer(ctx context.Context, w io.Writer) io.Writer {
	return &shapedWriter{ctx: ctx, w: w, shaper: s}
}

type shapedReader struct {
	ctx    context.Context
	r      io.Reader
	shaper *Shaper
}

func (s *shapedReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		if werr := s.shaper.Wait(s.ctx, n); werr != nil {
			return n, fmt.Errorf("bandwidth: %w", werr)
		}
	}
	return n, err
}

type shapedWriter struct {
	ctx    context.Context
	w      io.Writer
	shaper *Shaper
}

func (s *shapedWriter) Write(p []byte) (int, error) {
	if err := s.shaper.Wait(s.ctx, len(p)); err != nil {
		return 0, fmt.Errorf("bandwidth: %w", err)
	}
	return s.w.Write(p)
}
