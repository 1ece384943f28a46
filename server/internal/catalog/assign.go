package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignRequest names the source/destination of an assignTo call.
// Exactly one source field ("Source..." below) and one destination
// field must be set; the zero value of a uuid.UUID pointer means
// "not set", matching the C original's INDEX_ID_NONE sentinel.
//
// The five branches are dispatched on which "to"-field is non-nil, in
// the same priority order documented in spec §4.2.2.
type AssignRequest struct {
	JobUUID       string
	EntityID      *uuid.UUID
	StorageID     *uuid.UUID
	ToJobUUID     string
	ToEntityID    *uuid.UUID
	ToArchiveType ArchiveType
	ToStorageID   *uuid.UUID
}

// AssignTo re-parents a catalog subtree without breaking the
// invariants in spec §3/§8. It dispatches to one of five procedures
// based on which source/destination pair is populated in req.
func (s *Store) AssignTo(ctx context.Context, req AssignRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case req.StorageID != nil && req.ToStorageID != nil:
			return assignStorageEntriesToStorage(tx, *req.StorageID, *req.ToStorageID)
		case req.EntityID != nil && req.ToEntityID != nil && req.StorageID == nil:
			return assignEntityToEntity(tx, *req.EntityID, *req.ToEntityID, req.ToArchiveType)
		case req.StorageID != nil && req.ToEntityID != nil:
			return assignStorageToEntity(tx, *req.StorageID, *req.ToEntityID)
		case req.EntityID != nil && req.ToJobUUID != "" && req.ToEntityID == nil && req.StorageID == nil:
			return assignEntityToJob(tx, *req.EntityID, req.ToJobUUID, req.ToArchiveType)
		case req.JobUUID != "" && req.ToJobUUID != "" && req.EntityID == nil && req.StorageID == nil:
			return assignJobToJob(tx, req.JobUUID, req.ToJobUUID)
		default:
			return ErrStillNotImplemented
		}
	})
}

// branch 1: assign entries of storage -> other storage.
func assignStorageEntriesToStorage(tx *gorm.DB, sourceID, destID uuid.UUID) error {
	if sourceID == destID {
		return nil
	}
	var dest, source Storage
	if err := tx.Where("id = ?", destID).First(&dest).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: destination: %w", err)
	}
	if err := tx.Where("id = ?", sourceID).First(&source).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: source: %w", err)
	}

	// entriesNewest is keyed only by entry_id/name/type, with no
	// uuid/entity columns of its own, so reparenting entries below
	// needs no corresponding write to the projection table.
	var entryIDs []uuid.UUID
	if err := tx.Model(&EntryFragment{}).Where("storage_id = ?", sourceID).
		Distinct().Pluck("entry_id", &entryIDs).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: list entries: %w", err)
	}
	if len(entryIDs) > 0 {
		if err := tx.Model(&Entry{}).Where("id IN ?", entryIDs).
			Updates(map[string]any{"uuid_id": dest.UUIDID, "entity_id": dest.EntityID}).Error; err != nil {
			return fmt.Errorf("catalog: assign storage entries: update entries: %w", err)
		}
	}

	if err := tx.Model(&EntryFragment{}).Where("storage_id = ?", sourceID).
		Update("storage_id", destID).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: fragments: %w", err)
	}
	if err := tx.Model(&DirectoryEntry{}).Where("storage_id = ?", sourceID).
		Update("storage_id", destID).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: directory entries: %w", err)
	}
	if err := tx.Model(&LinkEntry{}).Where("storage_id = ?", sourceID).
		Update("storage_id", destID).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: link entries: %w", err)
	}
	if err := tx.Model(&SpecialEntry{}).Where("storage_id = ?", sourceID).
		Update("storage_id", destID).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: special entries: %w", err)
	}

	if err := recomputeStorageAggregates(tx, destID); err != nil {
		return err
	}

	if err := tx.Unscoped().Delete(&Storage{}, "id = ?", sourceID).Error; err != nil {
		return fmt.Errorf("catalog: assign storage entries: delete source: %w", err)
	}
	return pruneEntityTx(tx, source.EntityID)
}

// assignEntityToEntity is the composite branch 5 variant for entity ->
// entity: it runs branch 3 (entries) then branch 2 (storages), matching
// the original's assignEntityToEntity ordering.
func assignEntityToEntity(tx *gorm.DB, sourceID, destID uuid.UUID, toArchiveType ArchiveType) error {
	var dest Entity
	if err := tx.Where("id = ?", destID).First(&dest).Error; err != nil {
		return fmt.Errorf("catalog: assign entity to entity: destination: %w", err)
	}

	if sourceID != destID {
		if err := reparentEntriesByEntity(tx, sourceID, destID, dest.UUIDID); err != nil {
			return err
		}
		if err := assignEntityStoragesToEntity(tx, sourceID, destID, dest.UUIDID); err != nil {
			return err
		}
		if err := recomputeEntityAggregates(tx, sourceID); err != nil {
			return err
		}
		if err := recomputeEntityAggregates(tx, destID); err != nil {
			return err
		}
		if err := pruneEntityTx(tx, sourceID); err != nil {
			return err
		}
	}

	return applyArchiveTypeOverride(tx, destID, toArchiveType)
}

// branch 2: assign storages of entity -> other entity.
func assignEntityStoragesToEntity(tx *gorm.DB, sourceID, destID, destUUIDID uuid.UUID) error {
	return tx.Model(&Storage{}).Where("entity_id = ?", sourceID).
		Updates(map[string]any{"entity_id": destID, "uuid_id": destUUIDID}).Error
}

// reparentEntriesByEntity bulk-updates entries.uuidId/entityId.
// entriesNewest is keyed only by entry_id/name/type with no uuid/entity
// columns of its own, so it needs no corresponding write here.
func reparentEntriesByEntity(tx *gorm.DB, sourceEntityID, destEntityID, destUUIDID uuid.UUID) error {
	if err := tx.Model(&Entry{}).Where("entity_id = ?", sourceEntityID).
		Updates(map[string]any{"entity_id": destEntityID, "uuid_id": destUUIDID}).Error; err != nil {
		return fmt.Errorf("catalog: reparent entries: update: %w", err)
	}
	return nil
}

// branch 4: assign storage -> other entity.
func assignStorageToEntity(tx *gorm.DB, storageID, destEntityID uuid.UUID) error {
	var storage Storage
	if err := tx.Where("id = ?", storageID).First(&storage).Error; err != nil {
		return fmt.Errorf("catalog: assign storage to entity: source: %w", err)
	}
	if storage.EntityID == destEntityID {
		return nil
	}
	var dest Entity
	if err := tx.Where("id = ?", destEntityID).First(&dest).Error; err != nil {
		return fmt.Errorf("catalog: assign storage to entity: destination: %w", err)
	}
	if dest.IsDefault {
		return ErrDefaultEntity
	}
	oldEntityID := storage.EntityID

	if err := tx.Model(&Storage{}).Where("id = ?", storageID).
		Updates(map[string]any{"entity_id": destEntityID, "uuid_id": dest.UUIDID}).Error; err != nil {
		return fmt.Errorf("catalog: assign storage to entity: %w", err)
	}

	var entryIDs []uuid.UUID
	if err := tx.Model(&EntryFragment{}).Where("storage_id = ?", storageID).
		Distinct().Pluck("entry_id", &entryIDs).Error; err != nil {
		return fmt.Errorf("catalog: assign storage to entity: list entries: %w", err)
	}
	if len(entryIDs) > 0 {
		if err := tx.Model(&Entry{}).Where("id IN ?", entryIDs).
			Updates(map[string]any{"entity_id": destEntityID, "uuid_id": dest.UUIDID}).Error; err != nil {
			return fmt.Errorf("catalog: assign storage to entity: update entries: %w", err)
		}
	}

	if err := recomputeEntityAggregates(tx, destEntityID); err != nil {
		return err
	}
	return pruneEntityTx(tx, oldEntityID)
}

// branch 5 variant: assign entity -> other job. The entity keeps its own
// id and its storages/entries, only its uuid/jobUUID parentage moves —
// mirrors the original's assignEntityToJob, which reparents the
// entity's storages and entries onto the destination uuid (via the same
// assignEntityStoragesToEntity/assignEntityEntriesToEntity calls the
// entity->entity branch uses, with toEntityId left equal to entityId)
// before updating entities.uuidId/jobUUID and pruning the source uuid.
func assignEntityToJob(tx *gorm.DB, entityID uuid.UUID, toJobUUID string, toArchiveType ArchiveType) error {
	var entity Entity
	if err := tx.Where("id = ?", entityID).First(&entity).Error; err != nil {
		return fmt.Errorf("catalog: assign entity to job: source entity: %w", err)
	}
	var dest UUIDRow
	if err := tx.Where("job_uuid = ?", toJobUUID).First(&dest).Error; err != nil {
		return fmt.Errorf("catalog: assign entity to job: destination uuid: %w", err)
	}
	sourceUUIDID := entity.UUIDID

	if dest.ID != sourceUUIDID {
		if err := assignEntityStoragesToEntity(tx, entityID, entityID, dest.ID); err != nil {
			return err
		}
		if err := reparentEntriesByEntity(tx, entityID, entityID, dest.ID); err != nil {
			return err
		}
		if err := tx.Model(&Entity{}).Where("id = ?", entityID).
			Updates(map[string]any{"uuid_id": dest.ID, "job_uuid": toJobUUID}).Error; err != nil {
			return fmt.Errorf("catalog: assign entity to job: reparent entity: %w", err)
		}
		if err := recomputeUUIDAggregates(tx, dest.ID); err != nil {
			return err
		}
		if err := pruneUUIDTx(tx, sourceUUIDID); err != nil {
			return err
		}
	}

	return applyArchiveTypeOverride(tx, entityID, toArchiveType)
}

// branch 5: assign entity -> other entity / -> other job, or job -> job.
func assignJobToJob(tx *gorm.DB, sourceJobUUID, destJobUUID string) error {
	if sourceJobUUID == destJobUUID {
		return nil
	}
	var source, dest UUIDRow
	if err := tx.Where("job_uuid = ?", sourceJobUUID).First(&source).Error; err != nil {
		return fmt.Errorf("catalog: assign job to job: source: %w", err)
	}
	if err := tx.Where("job_uuid = ?", destJobUUID).First(&dest).Error; err != nil {
		return fmt.Errorf("catalog: assign job to job: destination: %w", err)
	}

	var entities []Entity
	if err := tx.Where("uuid_id = ?", source.ID).Find(&entities).Error; err != nil {
		return fmt.Errorf("catalog: assign job to job: list entities: %w", err)
	}
	for _, entity := range entities {
		if err := tx.Model(&Entity{}).Where("id = ?", entity.ID).
			Updates(map[string]any{"uuid_id": dest.ID, "job_uuid": destJobUUID}).Error; err != nil {
			return fmt.Errorf("catalog: assign job to job: reparent entity: %w", err)
		}
		if err := tx.Model(&Storage{}).Where("entity_id = ?", entity.ID).
			Update("uuid_id", dest.ID).Error; err != nil {
			return fmt.Errorf("catalog: assign job to job: reparent storages: %w", err)
		}
		if err := tx.Model(&Entry{}).Where("entity_id = ?", entity.ID).
			Update("uuid_id", dest.ID).Error; err != nil {
			return fmt.Errorf("catalog: assign job to job: reparent entries: %w", err)
		}
	}

	if err := recomputeUUIDAggregates(tx, dest.ID); err != nil {
		return err
	}
	return pruneUUIDTx(tx, source.ID)
}

func pruneUUIDTx(tx *gorm.DB, id uuid.UUID) error {
	empty, err := isEmptyUUID(tx, id)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	return tx.Unscoped().Delete(&UUIDRow{}, "id = ?", id).Error
}

func applyArchiveTypeOverride(tx *gorm.DB, entityID uuid.UUID, toArchiveType ArchiveType) error {
	if toArchiveType == "" {
		return nil
	}
	if err := tx.Model(&Entity{}).Where("id = ?", entityID).
		Update("archive_type", toArchiveType).Error; err != nil {
		return fmt.Errorf("catalog: archive type override: %w", err)
	}
	return nil
}

func recomputeStorageAggregates(tx *gorm.DB, storageID uuid.UUID) error {
	var storage Storage
	if err := tx.Where("id = ?", storageID).First(&storage).Error; err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: %w", err)
	}
	var count int64
	var size int64
	if err := tx.Model(&Entry{}).
		Joins("JOIN catalog_entry_fragments ON catalog_entry_fragments.entry_id = catalog_entries.id").
		Where("catalog_entry_fragments.storage_id = ? AND catalog_entries.deleted_flag = ?", storageID, false).
		Distinct("catalog_entries.id").
		Count(&count).Error; err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: count: %w", err)
	}
	if err := tx.Model(&Entry{}).
		Joins("JOIN catalog_entry_fragments ON catalog_entry_fragments.entry_id = catalog_entries.id").
		Where("catalog_entry_fragments.storage_id = ? AND catalog_entries.deleted_flag = ?", storageID, false).
		Select("COALESCE(SUM(catalog_entries.size),0)").
		Scan(&size).Error; err != nil {
		return fmt.Errorf("catalog: recompute storage aggregates: size: %w", err)
	}
	return tx.Model(&Storage{}).Where("id = ?", storageID).Updates(map[string]any{
		"total_entry_count": count, "total_entry_size": size,
	}).Error
}
