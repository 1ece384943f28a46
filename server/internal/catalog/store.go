package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the GORM-backed implementation of the index catalog's public
// operations (spec §4.2.1). Every mutating method commits its own
// transaction so a caller never has to reason about partial writes.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store bound to db. Callers are expected to have
// already run AllModels() through AutoMigrate or an equivalent
// golang-migrate migration.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// -----------------------------------------------------------------------------
// uuids
// -----------------------------------------------------------------------------

// FindUUID looks up the catalog row for jobUUID, returning its current
// aggregates. Returns ErrNotFound if no row exists.
func (s *Store) FindUUID(ctx context.Context, jobUUID string) (*UUIDRow, error) {
	var row UUIDRow
	err := s.db.WithContext(ctx).Where("job_uuid = ? AND deleted_flag = ?", jobUUID, false).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: find uuid: %w", err)
	}
	return &row, nil
}

// NewUUID inserts a row for jobUUID if one does not already exist, then
// returns it either way (the "insert with IGNORE on duplicate, then
// select" pattern spec.md describes).
func (s *Store) NewUUID(ctx context.Context, jobUUID string) (*UUIDRow, error) {
	row := &UUIDRow{JobUUID: jobUUID}
	err := s.db.WithContext(ctx).Clauses(onConflictDoNothing("job_uuid")).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: new uuid: %w", err)
	}
	return s.FindUUID(ctx, jobUUID)
}

// DeleteUUID cascades a hard delete through entities, storages, entries,
// and fragments in one transaction.
func (s *Store) DeleteUUID(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entities []Entity
		if err := tx.Where("uuid_id = ?", id).Find(&entities).Error; err != nil {
			return fmt.Errorf("catalog: delete uuid: list entities: %w", err)
		}
		for _, entity := range entities {
			if err := deleteEntityTx(tx, entity.ID); err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Delete(&UUIDRow{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("catalog: delete uuid: %w", err)
		}
		return nil
	})
}

// PruneUUID deletes the uuid row iff it has no remaining entities
// (isEmptyUUID).
func (s *Store) PruneUUID(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		empty, err := isEmptyUUID(tx, id)
		if err != nil {
			return err
		}
		if !empty {
			return nil
		}
		return tx.Unscoped().Delete(&UUIDRow{}, "id = ?", id).Error
	})
}

// UpdateUUIDAggregates recomputes a uuid's aggregates from its
// non-deleted entities.
func (s *Store) UpdateUUIDAggregates(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return recomputeUUIDAggregates(tx, id)
	})
}

func isEmptyUUID(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	if err := tx.Model(&Entity{}).Where("uuid_id = ? AND deleted_flag = ?", id, false).Count(&count).Error; err != nil {
		return false, fmt.Errorf("catalog: is empty uuid: %w", err)
	}
	return count == 0, nil
}

func recomputeUUIDAggregates(tx *gorm.DB, id uuid.UUID) error {
	var agg Aggregates
	err := tx.Model(&Entity{}).
		Where("uuid_id = ? AND deleted_flag = ?", id, false).
		Select(aggregateSelect()).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("catalog: recompute uuid aggregates: %w", err)
	}
	return tx.Model(&UUIDRow{}).Where("id = ?", id).Updates(agg.asUpdateMap()).Error
}

// -----------------------------------------------------------------------------
// entities
// -----------------------------------------------------------------------------

// NewEntity creates a new backup-run entity under uuidID.
func (s *Store) NewEntity(ctx context.Context, uuidID uuid.UUID, jobUUID, scheduleUUID string, archiveType ArchiveType) (*Entity, error) {
	entity := &Entity{
		UUIDID:       uuidID,
		JobUUID:      jobUUID,
		ScheduleUUID: scheduleUUID,
		ArchiveType:  archiveType,
	}
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("catalog: new entity: %w", err)
	}
	return entity, nil
}

// DeleteEntity cascades a hard delete through storages, entries, and
// fragments.
func (s *Store) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteEntityTx(tx, id)
	})
}

func deleteEntityTx(tx *gorm.DB, id uuid.UUID) error {
	var storages []Storage
	if err := tx.Where("entity_id = ?", id).Find(&storages).Error; err != nil {
		return fmt.Errorf("catalog: delete entity: list storages: %w", err)
	}
	for _, storage := range storages {
		if err := deleteStorageTx(tx, storage.ID); err != nil {
			return err
		}
	}
	if err := tx.Unscoped().Delete(&Entity{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: delete entity: %w", err)
	}
	return nil
}

// PruneEntity deletes the entity row iff it has no storages and is not
// locked (isEmptyEntity).
func (s *Store) PruneEntity(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return pruneEntityTx(tx, id)
	})
}

func pruneEntityTx(tx *gorm.DB, id uuid.UUID) error {
	var entity Entity
	if err := tx.Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("catalog: prune entity: %w", err)
	}
	if entity.IsDefault || entity.LockedCount > 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&Storage{}).Where("entity_id = ? AND deleted_flag = ?", id, false).Count(&count).Error; err != nil {
		return fmt.Errorf("catalog: prune entity: count storages: %w", err)
	}
	if count != 0 {
		return nil
	}
	uuidID := entity.UUIDID
	if err := tx.Unscoped().Delete(&Entity{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: prune entity: %w", err)
	}
	return recomputeUUIDAggregates(tx, uuidID)
}

// UpdateEntityAggregates recomputes an entity's aggregates from its
// non-deleted storages, then cascades to its uuid.
func (s *Store) UpdateEntityAggregates(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return recomputeEntityAggregates(tx, id)
	})
}

func recomputeEntityAggregates(tx *gorm.DB, id uuid.UUID) error {
	var entity Entity
	if err := tx.Where("id = ?", id).First(&entity).Error; err != nil {
		return fmt.Errorf("catalog: recompute entity aggregates: %w", err)
	}
	var agg Aggregates
	err := tx.Model(&Storage{}).
		Where("entity_id = ? AND deleted_flag = ?", id, false).
		Select(aggregateSelect()).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("catalog: recompute entity aggregates: %w", err)
	}
	if err := tx.Model(&Entity{}).Where("id = ?", id).Updates(agg.asUpdateMap()).Error; err != nil {
		return fmt.Errorf("catalog: recompute entity aggregates: %w", err)
	}
	return recomputeUUIDAggregates(tx, entity.UUIDID)
}

// -----------------------------------------------------------------------------
// storages
// -----------------------------------------------------------------------------

// NewStorage creates a storage row under entityID, inheriting its uuidID.
func (s *Store) NewStorage(ctx context.Context, entityID uuid.UUID, name string, mode StorageMode) (*Storage, error) {
	var entity Entity
	if err := s.db.WithContext(ctx).Where("id = ?", entityID).First(&entity).Error; err != nil {
		return nil, fmt.Errorf("catalog: new storage: %w", err)
	}
	storage := &Storage{
		EntityID: entityID,
		UUIDID:   entity.UUIDID,
		Name:     name,
		State:    StorageStateCreate,
		Mode:     mode,
	}
	if err := s.db.WithContext(ctx).Create(storage).Error; err != nil {
		return nil, fmt.Errorf("catalog: new storage: %w", err)
	}
	return storage, nil
}

// UpdateStorage updates a storage's state/size/error fields.
func (s *Store) UpdateStorage(ctx context.Context, id uuid.UUID, state StorageState, size int64, errMsg string) error {
	updates := map[string]any{"state": state, "size": size, "error_message": errMsg}
	err := s.db.WithContext(ctx).Model(&Storage{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("catalog: update storage: %w", err)
	}
	return nil
}

// recomputeStorageAggregates sums a storage's non-deleted entries by
// kind (joined through entryFragments, since an entry's content can be
// split across more than one storage) and the entriesNewest-joined
// subset of them, then cascades the result up to the owning entity.
func recomputeStorageAggregates(tx *gorm.DB, storageID uuid.UUID) error {
	var storage Storage
	if err := tx.Where("id = ?", storageID).First(&storage).Error; err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: %w", err)
	}

	var byKind []struct {
		Type  EntryKind
		Count int64
		Size  int64
	}
	err := tx.Model(&Entry{}).
		Joins("JOIN catalog_entry_fragments ON catalog_entry_fragments.entry_id = catalog_entries.id").
		Where("catalog_entry_fragments.storage_id = ? AND catalog_entries.deleted_flag = ?", storageID, false).
		Select("catalog_entries.type AS type, COUNT(DISTINCT catalog_entries.id) AS count, COALESCE(SUM(catalog_entry_fragments.size),0) AS size").
		Group("catalog_entries.type").
		Scan(&byKind).Error
	if err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: by kind: %w", err)
	}

	// Fragment-less entries (directories, links, specials) are parented
	// directly on a storage with no entryFragments row at all, so the
	// join above misses them; count those separately by direct StorageID.
	var direct []struct {
		Type  EntryKind
		Count int64
	}
	err = tx.Model(&Entry{}).
		Where("storage_id = ? AND deleted_flag = ? AND id NOT IN (?)", storageID, false,
			tx.Model(&EntryFragment{}).Select("entry_id")).
		Select("type AS type, COUNT(*) AS count").
		Group("type").
		Scan(&direct).Error
	if err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: direct: %w", err)
	}

	var agg Aggregates
	accumulate := func(kind EntryKind, count, size int64) {
		agg.TotalEntryCount += count
		agg.TotalEntrySize += size
		switch kind {
		case EntryKindFile:
			agg.TotalFileCount += count
			agg.TotalFileSize += size
		case EntryKindImage:
			agg.TotalImageCount += count
			agg.TotalImageSize += size
		case EntryKindDirectory:
			agg.TotalDirectoryCount += count
		case EntryKindLink:
			agg.TotalLinkCount += count
		case EntryKindHardlink:
			agg.TotalHardlinkCount += count
			agg.TotalHardlinkSize += size
		case EntryKindSpecial:
			agg.TotalSpecialCount += count
		}
	}
	for _, r := range byKind {
		accumulate(r.Type, r.Count, r.Size)
	}
	for _, r := range direct {
		accumulate(r.Type, r.Count, 0)
	}

	var newest struct {
		Count int64
		Size  int64
	}
	err = tx.Model(&Entry{}).
		Joins("JOIN catalog_entries_newest ON catalog_entries_newest.entry_id = catalog_entries.id").
		Where("catalog_entries.storage_id = ? AND catalog_entries.deleted_flag = ?", storageID, false).
		Select("COUNT(DISTINCT catalog_entries.id) AS count, COALESCE(SUM(catalog_entries.size),0) AS size").
		Scan(&newest).Error
	if err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: newest: %w", err)
	}
	agg.TotalNewestEntryCount = newest.Count
	agg.TotalNewestEntrySize = newest.Size

	if err := tx.Model(&Storage{}).Where("id = ?", storageID).Updates(agg.asUpdateMap()).Error; err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: %w", err)
	}
	return recomputeEntityAggregates(tx, storage.EntityID)
}

// DeleteStorage marks a storage (and, transitively, the entries that
// have no other remaining storage reference) SoftDeleted.
func (s *Store) DeleteStorage(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Storage{}).Where("id = ?", id).Updates(map[string]any{
			"deleted_flag": true, "deleted_at": now, "state": StorageStateDeleted,
		}).Error; err != nil {
			return fmt.Errorf("catalog: delete storage: %w", err)
		}
		return softDeleteOrphanedEntries(tx, id, now)
	})
}

// PurgeStorage is the physical removal of a storage after soft-delete:
// it recursively purges the storage's fragment and entry-kind rows,
// unlinks entries left with no remaining storage reference, and then
// prunes the now-possibly-empty entity and uuid.
func (s *Store) PurgeStorage(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return purgeStorageTx(tx, id)
	})
}

func deleteStorageTx(tx *gorm.DB, id uuid.UUID) error {
	return purgeStorageTx(tx, id)
}

func purgeStorageTx(tx *gorm.DB, id uuid.UUID) error {
	var storage Storage
	if err := tx.Unscoped().Where("id = ?", id).First(&storage).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("catalog: purge storage: %w", err)
	}

	var entryIDs []uuid.UUID
	if err := tx.Model(&EntryFragment{}).Where("storage_id = ?", id).
		Distinct().Pluck("entry_id", &entryIDs).Error; err != nil {
		return fmt.Errorf("catalog: purge storage: list fragment entries: %w", err)
	}

	if err := tx.Unscoped().Delete(&EntryFragment{}, "storage_id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: purge storage: fragments: %w", err)
	}
	if err := tx.Unscoped().Delete(&DirectoryEntry{}, "storage_id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: purge storage: directory entries: %w", err)
	}
	if err := tx.Unscoped().Delete(&LinkEntry{}, "storage_id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: purge storage: link entries: %w", err)
	}
	if err := tx.Unscoped().Delete(&SpecialEntry{}, "storage_id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: purge storage: special entries: %w", err)
	}

	for _, entryID := range entryIDs {
		if err := unlinkEntryIfOrphaned(tx, entryID); err != nil {
			return err
		}
	}

	if err := tx.Unscoped().Delete(&Storage{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("catalog: purge storage: %w", err)
	}

	return pruneEntityTx(tx, storage.EntityID)
}

// softDeleteOrphanedEntries marks entries whose only storage reference
// is id as SoftDeleted, mirroring spec §4.2.3's "Purge of a storage
// ... unlinks entries that have no remaining storage reference" for
// the soft-delete half of the lifecycle.
func softDeleteOrphanedEntries(tx *gorm.DB, storageID uuid.UUID, at time.Time) error {
	var entryIDs []uuid.UUID
	if err := tx.Model(&EntryFragment{}).Where("storage_id = ?", storageID).
		Distinct().Pluck("entry_id", &entryIDs).Error; err != nil {
		return fmt.Errorf("catalog: soft delete orphaned entries: %w", err)
	}
	for _, entryID := range entryIDs {
		var count int64
		err := tx.Model(&EntryFragment{}).
			Joins("JOIN catalog_storages ON catalog_storages.id = catalog_entry_fragments.storage_id").
			Where("catalog_entry_fragments.entry_id = ? AND catalog_storages.deleted_flag = ?", entryID, false).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("catalog: soft delete orphaned entries: %w", err)
		}
		if count == 0 {
			if err := tx.Model(&Entry{}).Where("id = ?", entryID).Updates(map[string]any{
				"deleted_flag": true, "deleted_at": at,
			}).Error; err != nil {
				return fmt.Errorf("catalog: soft delete orphaned entries: %w", err)
			}
		}
	}
	return nil
}

// unlinkEntryIfOrphaned removes entryID (and its entriesNewest
// projection row) once no fragment references it anymore.
func unlinkEntryIfOrphaned(tx *gorm.DB, entryID uuid.UUID) error {
	var count int64
	if err := tx.Model(&EntryFragment{}).Where("entry_id = ?", entryID).Count(&count).Error; err != nil {
		return fmt.Errorf("catalog: unlink entry: %w", err)
	}
	if count != 0 {
		return nil
	}
	if err := tx.Unscoped().Delete(&EntryNewest{}, "entry_id = ?", entryID).Error; err != nil {
		return fmt.Errorf("catalog: unlink entry: newest projection: %w", err)
	}
	if err := tx.Unscoped().Delete(&Entry{}, "id = ?", entryID).Error; err != nil {
		return fmt.Errorf("catalog: unlink entry: %w", err)
	}
	return nil
}

// ListStoragesForSweep returns the non-deleted storages belonging to
// uuidID's entities of archiveType, newest first. This is the read side
// of the persistence engine's retention sweep (spec.md §4.5): it never
// mutates, leaving the keep/delete decision to the caller.
func (s *Store) ListStoragesForSweep(ctx context.Context, uuidID uuid.UUID, archiveType ArchiveType) ([]Storage, error) {
	var storages []Storage
	err := s.db.WithContext(ctx).
		Joins("JOIN catalog_entities ON catalog_entities.id = catalog_storages.entity_id").
		Where("catalog_storages.uuid_id = ? AND catalog_entities.archive_type = ? AND catalog_storages.deleted_flag = ? AND catalog_entities.deleted_flag = ?",
			uuidID, archiveType, false, false).
		Order("catalog_storages.created_at DESC").
		Find(&storages).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: list storages for sweep: %w", err)
	}
	return storages, nil
}

// ListUUIDsWithArchiveType returns the distinct uuid_ids that have at
// least one non-deleted entity of archiveType, used by the persistence
// sweeper to discover which jobs need a retention pass for a given type.
func (s *Store) ListUUIDsWithArchiveType(ctx context.Context, archiveType ArchiveType) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&Entity{}).
		Where("archive_type = ? AND deleted_flag = ?", archiveType, false).
		Distinct().Pluck("uuid_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: list uuids with archive type: %w", err)
	}
	return ids, nil
}

// -----------------------------------------------------------------------------
// entries / entryFragments
// -----------------------------------------------------------------------------

// EntryFragmentInput is one contiguous byte range of an entry's stored
// content, recorded against the storage (archive volume) that holds it.
type EntryFragmentInput struct {
	StorageID uuid.UUID
	Offset    int64
	Size      int64
}

// NewEntryParams carries what the archive engine's per-entry write
// result supplies about one archived file/directory/link/special.
type NewEntryParams struct {
	EntityID        uuid.UUID
	StorageID       uuid.UUID // the storage this entry belongs to
	Type            EntryKind
	Name            string
	TimeLastChanged time.Time
	UserID          uint32
	GroupID         uint32
	Permission      uint32
	Size            int64
	Fragments       []EntryFragmentInput // empty for directories/links/specials
	LinkTarget      string                // Type == EntryKindLink
}

// NewEntry inserts an entry row, its fragments, its entriesNewest
// projection (spec.md §4.2.1's "latest version of this name" index),
// and its kind-specific side table row, then rolls the entry's counts
// and bytes up into every storage referenced by its fragments (or, for
// fragment-less entries such as directories, the entry's own storage).
// This is the write path spec.md §4.3 describes as "insert entries and
// entryFragments rows in the catalog within one transaction per entry".
func (s *Store) NewEntry(ctx context.Context, p NewEntryParams) (*Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry = Entry{
			StorageID:       &p.StorageID,
			EntityID:        p.EntityID,
			Type:            p.Type,
			Name:            p.Name,
			TimeLastChanged: p.TimeLastChanged,
			UserID:          p.UserID,
			GroupID:         p.GroupID,
			Permission:      p.Permission,
			Size:            p.Size,
		}
		var owner Entity
		if err := tx.Where("id = ?", p.EntityID).First(&owner).Error; err != nil {
			return fmt.Errorf("catalog: new entry: owning entity: %w", err)
		}
		entry.UUIDID = owner.UUIDID

		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("catalog: new entry: %w", err)
		}

		touched := map[uuid.UUID]bool{p.StorageID: true}
		for _, f := range p.Fragments {
			frag := EntryFragment{EntryID: entry.ID, StorageID: f.StorageID, Offset: f.Offset, Size: f.Size}
			if err := tx.Create(&frag).Error; err != nil {
				return fmt.Errorf("catalog: new entry: fragment: %w", err)
			}
			touched[f.StorageID] = true
		}

		if err := tx.Clauses(onConflictReplaceNewest()).
			Create(&EntryNewest{EntryID: entry.ID, Name: entry.Name, Type: entry.Type}).Error; err != nil {
			return fmt.Errorf("catalog: new entry: newest projection: %w", err)
		}

		switch p.Type {
		case EntryKindDirectory:
			if err := tx.Create(&DirectoryEntry{EntryID: entry.ID, StorageID: p.StorageID}).Error; err != nil {
				return fmt.Errorf("catalog: new entry: directory row: %w", err)
			}
		case EntryKindLink:
			if err := tx.Create(&LinkEntry{EntryID: entry.ID, StorageID: p.StorageID, LinkTarget: p.LinkTarget}).Error; err != nil {
				return fmt.Errorf("catalog: new entry: link row: %w", err)
			}
		case EntryKindSpecial:
			if err := tx.Create(&SpecialEntry{EntryID: entry.ID, StorageID: p.StorageID}).Error; err != nil {
				return fmt.Errorf("catalog: new entry: special row: %w", err)
			}
		}

		for storageID := range touched {
			if err := recomputeStorageAggregates(tx, storageID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// -----------------------------------------------------------------------------
// shared helpers
// -----------------------------------------------------------------------------

// aggregateSelect builds the SUM(...) projection shared by every
// aggregate-recompute query.
func aggregateSelect() string {
	return "" +
		"COALESCE(SUM(total_entry_count),0) AS total_entry_count, " +
		"COALESCE(SUM(total_entry_size),0) AS total_entry_size, " +
		"COALESCE(SUM(total_file_count),0) AS total_file_count, " +
		"COALESCE(SUM(total_file_size),0) AS total_file_size, " +
		"COALESCE(SUM(total_image_count),0) AS total_image_count, " +
		"COALESCE(SUM(total_image_size),0) AS total_image_size, " +
		"COALESCE(SUM(total_directory_count),0) AS total_directory_count, " +
		"COALESCE(SUM(total_link_count),0) AS total_link_count, " +
		"COALESCE(SUM(total_hardlink_count),0) AS total_hardlink_count, " +
		"COALESCE(SUM(total_hardlink_size),0) AS total_hardlink_size, " +
		"COALESCE(SUM(total_special_count),0) AS total_special_count, " +
		"COALESCE(SUM(total_newest_entry_count),0) AS total_newest_entry_count, " +
		"COALESCE(SUM(total_newest_entry_size),0) AS total_newest_entry_size"
}

func (a Aggregates) asUpdateMap() map[string]any {
	return map[string]any{
		"total_entry_count":        a.TotalEntryCount,
		"total_entry_size":         a.TotalEntrySize,
		"total_file_count":         a.TotalFileCount,
		"total_file_size":          a.TotalFileSize,
		"total_image_count":        a.TotalImageCount,
		"total_image_size":         a.TotalImageSize,
		"total_directory_count":    a.TotalDirectoryCount,
		"total_link_count":         a.TotalLinkCount,
		"total_hardlink_count":     a.TotalHardlinkCount,
		"total_hardlink_size":      a.TotalHardlinkSize,
		"total_special_count":      a.TotalSpecialCount,
		"total_newest_entry_count": a.TotalNewestEntryCount,
		"total_newest_entry_size":  a.TotalNewestEntrySize,
	}
}
