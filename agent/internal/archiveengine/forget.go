package archiveengine

import (
	"context"
	"fmt"
)

// RetentionPolicy mirrors db.Policy's keep_daily/weekly/monthly/yearly
// fields, the same counters agent/internal/restic.RetentionPolicy
// carried for "restic forget --keep-*". archiveengine applies the
// classic grandfather-father-son bucketing directly, since it has no
// restic repository to delegate the decision to.
type RetentionPolicy struct {
	Daily   int
	Weekly  int
	Monthly int
	Yearly  int
}

// Forget deletes every volume of every snapshot at dest that falls
// outside policy's daily/weekly/monthly/yearly keep counts, keeping at
// least one snapshot per retained bucket — the newest snapshot overall
// is always kept regardless of policy.
func (e *Engine) Forget(ctx context.Context, dest Destination, policy RetentionPolicy) error {
	snapshots, err := e.Snapshots(ctx, dest)
	if err != nil {
		return fmt.Errorf("archiveengine: list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil
	}

	keep := make(map[string]bool, len(snapshots))
	keep[snapshots[0].ID] = true // newest is always kept

	keepBucket(snapshots, policy.Daily, keep, func(s SnapshotInfo) string {
		y, m, d := s.Time.Date()
		return fmt.Sprintf("d-%04d-%02d-%02d", y, m, d)
	})
	keepBucket(snapshots, policy.Weekly, keep, func(s SnapshotInfo) string {
		y, w := s.Time.ISOWeek()
		return fmt.Sprintf("w-%04d-%02d", y, w)
	})
	keepBucket(snapshots, policy.Monthly, keep, func(s SnapshotInfo) string {
		y, m, _ := s.Time.Date()
		return fmt.Sprintf("m-%04d-%02d", y, m)
	})
	keepBucket(snapshots, policy.Yearly, keep, func(s SnapshotInfo) string {
		return fmt.Sprintf("y-%04d", s.Time.Year())
	})

	storage, err := ResolveStorage(ctx, dest)
	if err != nil {
		return fmt.Errorf("archiveengine: resolve destination: %w", err)
	}
	defer storage.Close()

	for _, s := range snapshots {
		if keep[s.ID] {
			continue
		}
		volumes, err := volumesForSnapshot(ctx, storage, s.ID)
		if err != nil {
			return err
		}
		for _, name := range volumes {
			if err := storage.Remove(ctx, name); err != nil {
				return fmt.Errorf("archiveengine: remove volume %s: %w", name, err)
			}
		}
	}
	return nil
}

// keepBucket marks up to limit snapshots for retention, one per
// distinct bucket key (snapshots are assumed newest-first), in the
// order encountered. limit <= 0 keeps none via this bucket.
func keepBucket(snapshots []SnapshotInfo, limit int, keep map[string]bool, bucketKey func(SnapshotInfo) string) {
	if limit <= 0 {
		return
	}
	seen := make(map[string]bool)
	for _, s := range snapshots {
		if len(seen) >= limit {
			return
		}
		key := bucketKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		keep[s.ID] = true
	}
}
