package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/arkeep-io/arkeep/server/internal/catalog"
	"github.com/arkeep-io/arkeep/server/internal/db"
)

// CompileRetentionPreset maps a policy's legacy RetentionDaily/Weekly/
// Monthly/Yearly counters onto one Node per non-Normal catalog archive
// type, in the conventional grandfather-father-son order: Incremental
// is the most frequent bucket, Continuous the least. Each bucket keeps
// up to its count most recently, with no age limit — the legacy fields
// never carried an age dimension, only a count.
//
// A policy with PersistenceNodes set skips this entirely; the preset
// is the fallback for policies created before the persistence engine
// existed.
func CompileRetentionPreset(p *db.Policy) []Node {
	return []Node{
		{ArchiveType: catalog.ArchiveTypeIncremental, MinKeep: 1, MaxKeep: keepCount(p.RetentionDaily), MaxAgeDays: AgeForever},
		{ArchiveType: catalog.ArchiveTypeDifferential, MinKeep: 1, MaxKeep: keepCount(p.RetentionWeekly), MaxAgeDays: AgeForever},
		{ArchiveType: catalog.ArchiveTypeFull, MinKeep: 1, MaxKeep: keepCount(p.RetentionMonthly), MaxAgeDays: AgeForever},
		{ArchiveType: catalog.ArchiveTypeContinuous, MinKeep: 1, MaxKeep: keepCount(p.RetentionYearly), MaxAgeDays: AgeForever},
	}
}

// keepCount guards against a zero/negative legacy field meaning
// "disabled" rather than KeepAll's "unlimited": a policy that never set
// a bucket should retain nothing of that type rather than everything.
func keepCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// NodesForPolicy returns the PersistenceNode set to sweep with: the
// policy's explicit PersistenceNodes JSON if set, else the compiled
// legacy preset.
func NodesForPolicy(p *db.Policy) ([]Node, error) {
	if p.PersistenceNodes == "" {
		return CompileRetentionPreset(p), nil
	}
	var nodes []Node
	if err := json.Unmarshal([]byte(p.PersistenceNodes), &nodes); err != nil {
		return nil, fmt.Errorf("persistence: decode policy %s nodes: %w", p.ID, err)
	}
	return nodes, nil
}
