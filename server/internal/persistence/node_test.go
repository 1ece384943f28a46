package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/arkeep/server/internal/catalog"
)

func daysAgo(now time.Time, n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func mustCandidates(now time.Time, ages ...int) []Candidate {
	out := make([]Candidate, len(ages))
	for i, age := range ages {
		out[i] = Candidate{ID: uuid.Must(uuid.NewV7()), CreatedAt: daysAgo(now, age)}
	}
	return out
}

// Ten daily full storages, minKeep=3, maxKeep=7, maxAgeDays=5: keep the
// 5 newest (age <= 5 days), delete the 5 oldest.
func TestEvaluateAgeCutoffWithinMinMax(t *testing.T) {
	now := time.Now()
	candidates := mustCandidates(now, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	node := Node{ArchiveType: catalog.ArchiveTypeFull, MinKeep: 3, MaxKeep: 7, MaxAgeDays: 5}
	keep, del := Evaluate(candidates, node, now)

	require.Len(t, keep, 5)
	require.Len(t, del, 5)
	for _, c := range keep {
		require.LessOrEqual(t, now.Sub(c.CreatedAt), 5*24*time.Hour+time.Second)
	}
}

// If fewer than minKeep satisfy the age cutoff, keep minKeep newest anyway.
func TestEvaluateMinKeepOverridesAge(t *testing.T) {
	now := time.Now()
	candidates := mustCandidates(now, 10, 20, 30, 40)

	node := Node{ArchiveType: catalog.ArchiveTypeFull, MinKeep: 3, MaxKeep: KeepAll, MaxAgeDays: 5}
	keep, del := Evaluate(candidates, node, now)

	require.Len(t, keep, 3)
	require.Len(t, del, 1)
	require.Equal(t, candidates[3].ID, del[0].ID) // the 40-day-old one
}

// maxKeep trims even age-eligible survivors once the count limit is hit.
func TestEvaluateMaxKeepTrimsAgeEligible(t *testing.T) {
	now := time.Now()
	candidates := mustCandidates(now, 1, 1, 1, 1, 1)

	node := Node{ArchiveType: catalog.ArchiveTypeFull, MinKeep: 0, MaxKeep: 2, MaxAgeDays: AgeForever}
	keep, del := Evaluate(candidates, node, now)

	require.Len(t, keep, 2)
	require.Len(t, del, 3)
}

func TestEvaluateKeepAllDisablesCountLimit(t *testing.T) {
	now := time.Now()
	candidates := mustCandidates(now, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	node := Node{ArchiveType: catalog.ArchiveTypeFull, MinKeep: 0, MaxKeep: KeepAll, MaxAgeDays: AgeForever}
	keep, del := Evaluate(candidates, node, now)

	require.Len(t, keep, 10)
	require.Empty(t, del)
}

func TestEvaluateEmptyInput(t *testing.T) {
	keep, del := Evaluate(nil, Node{MinKeep: 3, MaxKeep: 7, MaxAgeDays: 5}, time.Now())
	require.Empty(t, keep)
	require.Empty(t, del)
}
