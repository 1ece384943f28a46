// Package catalog implements the index catalog: the relational store
// of UUIDs, entities, storages, entries, and fragments that records
// what the archive engine wrote and where, with aggregate maintenance,
// a soft-delete/purge lifecycle, and cross-entity re-assignment.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base mirrors the server's db.base pattern: a UUID v7 primary key
// assigned on insert, plus managed timestamps.
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// softDelete extends base with a tombstone column; the catalog's own
// SoftDeleted→Purged transition (§4.2.3) is modeled explicitly on top
// of this rather than relying on gorm.DeletedAt's automatic query
// scoping, since a storage must stay individually invisible to user
// queries while still being reachable by the purge worker.
type softDelete struct {
	base
	DeletedFlag bool       `gorm:"not null;default:false;index"`
	DeletedAt   *time.Time `gorm:""`
}

// StorageState mirrors spec.md's storages.state enumeration.
type StorageState string

const (
	StorageStateCreate         StorageState = "create"
	StorageStateUpdate         StorageState = "update"
	StorageStateOK             StorageState = "ok"
	StorageStateError          StorageState = "error"
	StorageStateErrorTransient StorageState = "error-transient"
	StorageStateDeleted        StorageState = "deleted"
)

// StorageMode distinguishes operator-initiated from policy-driven storages.
type StorageMode string

const (
	StorageModeManual StorageMode = "manual"
	StorageModeAuto   StorageMode = "auto"
)

// EntryKind mirrors archive.EntryType at the catalog layer (kept as an
// independent string enum so the catalog schema is stable even if the
// archive package's internal numbering changes).
type EntryKind string

const (
	EntryKindFile      EntryKind = "file"
	EntryKindImage     EntryKind = "image"
	EntryKindDirectory EntryKind = "directory"
	EntryKindLink      EntryKind = "link"
	EntryKindHardlink  EntryKind = "hardlink"
	EntryKindSpecial   EntryKind = "special"
)

// ArchiveType mirrors spec.md §6's archive-type option domain.
type ArchiveType string

const (
	ArchiveTypeNormal       ArchiveType = "normal"
	ArchiveTypeFull         ArchiveType = "full"
	ArchiveTypeIncremental  ArchiveType = "incremental"
	ArchiveTypeDifferential ArchiveType = "differential"
	ArchiveTypeContinuous   ArchiveType = "continuous"
)

// Aggregates holds the ten running counters/averages tracked on
// UUIDs, entities, and storages (spec.md §4.2.1's findUUID result and
// §4.2.4's aggregate-maintenance rule). Embedded by value everywhere
// it applies so the "recompute from children" routines share one shape.
type Aggregates struct {
	TotalEntryCount       int64 `gorm:"not null;default:0"`
	TotalEntrySize        int64 `gorm:"not null;default:0"`
	TotalFileCount        int64 `gorm:"not null;default:0"`
	TotalFileSize         int64 `gorm:"not null;default:0"`
	TotalImageCount       int64 `gorm:"not null;default:0"`
	TotalImageSize        int64 `gorm:"not null;default:0"`
	TotalDirectoryCount   int64 `gorm:"not null;default:0"`
	TotalLinkCount        int64 `gorm:"not null;default:0"`
	TotalHardlinkCount    int64 `gorm:"not null;default:0"`
	TotalHardlinkSize     int64 `gorm:"not null;default:0"`
	TotalSpecialCount     int64 `gorm:"not null;default:0"`
	TotalNewestEntryCount int64 `gorm:"not null;default:0"`
	TotalNewestEntrySize  int64 `gorm:"not null;default:0"`
}

// UUIDRow is one logical job: spec.md's `uuids` table.
type UUIDRow struct {
	softDelete
	JobUUID string `gorm:"type:text;uniqueIndex;not null"`
	Aggregates
}

func (UUIDRow) TableName() string { return "catalog_uuids" }

// Entity is one backup run: spec.md's `entities` table.
type Entity struct {
	softDelete
	UUIDID       uuid.UUID   `gorm:"type:text;not null;index"`
	JobUUID      string      `gorm:"type:text;not null"`
	ScheduleUUID string      `gorm:"type:text;index"`
	ArchiveType  ArchiveType `gorm:"type:text;not null"`
	LockedCount  int         `gorm:"not null;default:0"`
	IsDefault    bool        `gorm:"not null;default:false"`
	Aggregates
}

func (Entity) TableName() string { return "catalog_entities" }

// Storage is one archive file: spec.md's `storages` table.
type Storage struct {
	softDelete
	EntityID     uuid.UUID    `gorm:"type:text;not null;index"`
	UUIDID       uuid.UUID    `gorm:"type:text;not null;index"`
	Name         string       `gorm:"type:text;not null"`
	State        StorageState `gorm:"type:text;not null"`
	Mode         StorageMode  `gorm:"type:text;not null"`
	ErrorMessage string       `gorm:"type:text"`
	Size         int64        `gorm:"not null;default:0"`
	Aggregates
}

func (Storage) TableName() string { return "catalog_storages" }

// Entry is one file/image/directory/link/hardlink/special: spec.md's `entries` table.
type Entry struct {
	softDelete
	StorageID       *uuid.UUID `gorm:"type:text;index"`
	EntityID        uuid.UUID  `gorm:"type:text;not null;index"`
	UUIDID          uuid.UUID  `gorm:"type:text;not null;index"`
	Type            EntryKind  `gorm:"type:text;not null"`
	Name            string     `gorm:"type:text;not null;index"`
	TimeLastChanged time.Time  `gorm:"not null"`
	UserID          uint32     `gorm:"not null;default:0"`
	GroupID         uint32     `gorm:"not null;default:0"`
	Permission      uint32     `gorm:"not null;default:0"`
	Size            int64      `gorm:"not null;default:0"`
}

func (Entry) TableName() string { return "catalog_entries" }

// EntryNewest is the per-(name,type) "current state" projection:
// spec.md's `entriesNewest`.
type EntryNewest struct {
	base
	EntryID uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_newest_entry"`
	Name    string    `gorm:"type:text;not null;uniqueIndex:idx_newest_name_type"`
	Type    EntryKind `gorm:"type:text;not null;uniqueIndex:idx_newest_name_type"`
}

func (EntryNewest) TableName() string { return "catalog_entries_newest" }

// EntryFragment is one contiguous byte range of an entry stored in
// one storage: spec.md's `entryFragments`.
type EntryFragment struct {
	base
	EntryID   uuid.UUID `gorm:"type:text;not null;index"`
	StorageID uuid.UUID `gorm:"type:text;not null;index"`
	Offset    int64     `gorm:"column:byte_offset;not null"`
	Size      int64     `gorm:"not null"`
}

func (EntryFragment) TableName() string { return "catalog_entry_fragments" }

// DirectoryEntry carries the directory-specific row for an Entry of
// Type=directory.
type DirectoryEntry struct {
	base
	EntryID   uuid.UUID `gorm:"type:text;not null;index"`
	StorageID uuid.UUID `gorm:"type:text;not null;index"`
}

func (DirectoryEntry) TableName() string { return "catalog_directory_entries" }

// LinkEntry carries the symlink-specific row for an Entry of Type=link.
type LinkEntry struct {
	base
	EntryID    uuid.UUID `gorm:"type:text;not null;index"`
	StorageID  uuid.UUID `gorm:"type:text;not null;index"`
	LinkTarget string    `gorm:"type:text;not null"`
}

func (LinkEntry) TableName() string { return "catalog_link_entries" }

// SpecialEntry carries the device/fifo/socket-specific row for an
// Entry of Type=special.
type SpecialEntry struct {
	base
	EntryID     uuid.UUID `gorm:"type:text;not null;index"`
	StorageID   uuid.UUID `gorm:"type:text;not null;index"`
	SpecialType string    `gorm:"type:text;not null"`
}

func (SpecialEntry) TableName() string { return "catalog_special_entries" }

// History records one completed (or failed) job run, independent of
// whether it produced any storages: spec.md's `history` table.
type History struct {
	base
	JobUUID      string    `gorm:"type:text;not null;index"`
	ScheduleUUID string    `gorm:"type:text;index"`
	Type         string    `gorm:"type:text;not null"`
	Duration     int64     `gorm:"not null;default:0"` // nanoseconds
	ErrorMessage string    `gorm:"type:text"`
	OccurredAt   time.Time `gorm:"not null"`
}

func (History) TableName() string { return "catalog_history" }

// AllModels lists every catalog model for AutoMigrate/migration
// generation call sites.
func AllModels() []any {
	return []any{
		&UUIDRow{}, &Entity{}, &Storage{}, &Entry{}, &EntryNewest{},
		&EntryFragment{}, &DirectoryEntry{}, &LinkEntry{}, &SpecialEntry{},
		&History{},
	}
}
