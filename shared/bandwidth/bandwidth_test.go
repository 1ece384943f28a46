package bandwidth

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeWindowContains(t *testing.T) {
	w := TimeWindow{Start: 9 * time.Hour, End: 17 * time.Hour}
	noon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, w.Contains(noon))
	assert.False(t, w.Contains(midnight))
}

func TestTimeWindowWrapsMidnight(t *testing.T) {
	w := TimeWindow{Start: 22 * time.Hour, End: 6 * time.Hour}
	late := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	early := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, w.Contains(late))
	assert.True(t, w.Contains(early))
	assert.False(t, w.Contains(midday))
}

func TestListActiveLimitFallsThroughToDefault(t *testing.T) {
	list := NewList(
		Node{BytesPerSecond: 1000, Window: &TimeWindow{Start: 9 * time.Hour, End: 17 * time.Hour}},
		Node{BytesPerSecond: 0}, // unlimited default
	)
	noon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(1000), list.ActiveLimit(noon))
	assert.Equal(t, int64(0), list.ActiveLimit(midnight))
}

func TestShaperUnlimitedDoesNotBlock(t *testing.T) {
	s := NewShaper(nil)
	err := s.Wait(context.Background(), 10_000_000)
	require.NoError(t, err)
}

func TestShaperWriterRespectsContextCancellation(t *testing.T) {
	list := NewList(Node{BytesPerSecond: 1}) // 1 byte/sec — any nontrivial write should need to wait
	s := NewShaper(list)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	w := s.Writer(ctx, &buf)
	_, err := w.Write(bytes.Repeat([]byte("x"), 1000))
	assert.Error(t, err)
}
