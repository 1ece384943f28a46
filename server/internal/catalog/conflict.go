package catalog

import "gorm.io/gorm/clause"

// onConflictDoNothing builds the ON CONFLICT(column) DO NOTHING clause
// GORM needs to express spec.md's "inserts with IGNORE on duplicate,
// then selects" rule for newUUID portably across sqlite/postgres.
func onConflictDoNothing(column string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		DoNothing: true,
	}
}

// onConflictReplaceNewest builds the ON CONFLICT(name, type) DO UPDATE
// clause entriesNewest needs: writing a later entry for the same
// (name, type) repoints the projection row at it instead of failing
// the unique index.
func onConflictReplaceNewest() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_id"}),
	}
}
