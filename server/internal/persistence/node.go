// Package persistence implements the retention-policy engine that
// decides which archive storages survive a sweep and which are
// deleted or relocated (spec.md §4.5). It is deliberately independent
// of the catalog/database: Evaluate is a pure function over a slice of
// candidates, and Sweeper (in sweep.go) is the thin wiring layer that
// feeds it real catalog.Storage rows.
package persistence

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arkeep-io/arkeep/server/internal/catalog"
)

// Sentinel values for Node.MaxKeep and Node.MaxAgeDays. spec.md maps
// the config-file wildcard "*" to these: KeepAll disables the count
// limit, AgeForever disables the age limit.
const (
	KeepAll    = -1
	AgeForever = -1
)

// Node is a persistence policy for one archive type: spec.md's
// PersistenceNode. MinKeep always wins over MaxAgeDays — storages are
// only ever deleted for age once at least MinKeep newer ones survive.
type Node struct {
	ArchiveType catalog.ArchiveType
	MinKeep     int
	MaxKeep     int // KeepAll disables
	MaxAgeDays  int // AgeForever disables
	MoveToURI   string
}

// Candidate is the minimal shape Evaluate needs from a catalog.Storage:
// its identity and the timestamp retention is measured against.
type Candidate struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// CandidatesFromStorages adapts catalog.Storage rows to Candidates.
func CandidatesFromStorages(storages []catalog.Storage) []Candidate {
	out := make([]Candidate, len(storages))
	for i, s := range storages {
		out[i] = Candidate{ID: s.ID, CreatedAt: s.CreatedAt}
	}
	return out
}

// Evaluate applies node's retention rule to candidates as of now,
// returning the disjoint keep/delete partitions. candidates need not
// be pre-sorted.
//
// Algorithm (spec.md §4.5):
//  1. Storages whose age exceeds MaxAgeDays are deletion candidates,
//     unless MaxAgeDays is AgeForever.
//  2. At least MinKeep most-recent storages are kept regardless of age
//     — if fewer than MinKeep survive step 1, the MinKeep newest are
//     kept anyway.
//  3. At most MaxKeep storages survive in total, unless MaxKeep is
//     KeepAll; oldest-beyond-the-limit are deleted.
func Evaluate(candidates []Candidate, node Node, now time.Time) (keep, del []Candidate) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	var survivors []Candidate
	if node.MaxAgeDays == AgeForever {
		survivors = ordered
	} else {
		cutoff := now.AddDate(0, 0, -node.MaxAgeDays)
		for _, c := range ordered {
			if !c.CreatedAt.Before(cutoff) {
				survivors = append(survivors, c)
			}
		}
	}

	if len(survivors) < node.MinKeep {
		n := node.MinKeep
		if n > len(ordered) {
			n = len(ordered)
		}
		survivors = ordered[:n]
	}

	if node.MaxKeep != KeepAll && len(survivors) > node.MaxKeep {
		survivors = survivors[:node.MaxKeep]
	}

	keepSet := make(map[uuid.UUID]struct{}, len(survivors))
	for _, c := range survivors {
		keepSet[c.ID] = struct{}{}
	}
	keep = survivors
	for _, c := range ordered {
		if _, ok := keepSet[c.ID]; !ok {
			del = append(del, c)
		}
	}
	return keep, del
}
