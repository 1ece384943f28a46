package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAssignStorageToEntityScenario grounds the "index assign
// storage->entity" walkthrough: uuid U, entities E1/E2, storage S
// under E1 with 3 entries. After assignTo(storageId=S,
// toEntityId=E2): S.entityId=E2, every entry reached from S has
// entityId=E2 and uuidId=entities[E2].uuidId, and E1 is pruned empty.
func TestAssignStorageToEntityScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	e1, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	e2, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeIncremental)
	require.NoError(t, err)
	s, err := store.NewStorage(ctx, e1.ID, "storage-1", StorageModeAuto)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		seedEntryUnderStorage(t, db, *e1, s.ID)
	}

	err = store.AssignTo(ctx, AssignRequest{StorageID: &s.ID, ToEntityID: &e2.ID})
	require.NoError(t, err)

	var gotStorage Storage
	require.NoError(t, db.Where("id = ?", s.ID).First(&gotStorage).Error)
	require.Equal(t, e2.ID, gotStorage.EntityID)

	var entries []Entry
	require.NoError(t, db.
		Joins("JOIN catalog_entry_fragments ON catalog_entry_fragments.entry_id = catalog_entries.id").
		Where("catalog_entry_fragments.storage_id = ?", s.ID).
		Find(&entries).Error)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		require.Equal(t, e2.ID, entry.EntityID)
		require.Equal(t, e2.UUIDID, entry.UUIDID)
	}

	var e1Count int64
	require.NoError(t, db.Model(&Entity{}).Where("id = ?", e1.ID).Count(&e1Count).Error)
	require.Zero(t, e1Count, "E1 should have been pruned once empty")
}

func TestAssignToIsNoOpWhenSourceEqualsDestination(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	e1, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)

	err = store.AssignTo(ctx, AssignRequest{EntityID: &e1.ID, ToEntityID: &e1.ID})
	require.NoError(t, err)
}

func TestAssignToRejectsReassigningDefaultEntity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	e1, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	def, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	require.NoError(t, db.Model(&Entity{}).Where("id = ?", def.ID).Update("is_default", true).Error)

	s, err := store.NewStorage(ctx, e1.ID, "storage-1", StorageModeAuto)
	require.NoError(t, err)

	err = store.AssignTo(ctx, AssignRequest{StorageID: &s.ID, ToEntityID: &def.ID})
	require.ErrorIs(t, err, ErrDefaultEntity)
}

func TestAssignToUnsupportedCombinationIsStillNotImplemented(t *testing.T) {
	store := NewStore(newTestDB(t))
	err := store.AssignTo(context.Background(), AssignRequest{})
	require.ErrorIs(t, err, ErrStillNotImplemented)
}

// TestAssignEntityToJobScenario grounds the "index assign entity -> other
// job" walkthrough: entity E with storage S (3 entries) under uuid
// job-1. After assignTo(entityId=E, toJobUUID="job-2"): E's uuidId and
// jobUUID point at job-2, S and its entries carry job-2's uuidId while
// staying under E, and job-1's now-empty uuid row is pruned.
func TestAssignEntityToJobScenario(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	source, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	dest, err := store.NewUUID(ctx, "job-2")
	require.NoError(t, err)

	e, err := store.NewEntity(ctx, source.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	s, err := store.NewStorage(ctx, e.ID, "storage-1", StorageModeAuto)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		seedEntryUnderStorage(t, db, *e, s.ID)
	}

	err = store.AssignTo(ctx, AssignRequest{EntityID: &e.ID, ToJobUUID: "job-2"})
	require.NoError(t, err)

	var gotEntity Entity
	require.NoError(t, db.Where("id = ?", e.ID).First(&gotEntity).Error)
	require.Equal(t, dest.ID, gotEntity.UUIDID)
	require.Equal(t, "job-2", gotEntity.JobUUID)

	var gotStorage Storage
	require.NoError(t, db.Where("id = ?", s.ID).First(&gotStorage).Error)
	require.Equal(t, e.ID, gotStorage.EntityID)
	require.Equal(t, dest.ID, gotStorage.UUIDID)

	var entries []Entry
	require.NoError(t, db.
		Joins("JOIN catalog_entry_fragments ON catalog_entry_fragments.entry_id = catalog_entries.id").
		Where("catalog_entry_fragments.storage_id = ?", s.ID).
		Find(&entries).Error)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		require.Equal(t, e.ID, entry.EntityID)
		require.Equal(t, dest.ID, entry.UUIDID)
	}

	var sourceCount int64
	require.NoError(t, db.Model(&UUIDRow{}).Where("id = ?", source.ID).Count(&sourceCount).Error)
	require.Zero(t, sourceCount, "job-1's uuid row should have been pruned once empty")
}

func TestAssignStorageEntriesToStorage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	entity, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	source, err := store.NewStorage(ctx, entity.ID, "storage-source", StorageModeAuto)
	require.NoError(t, err)
	dest, err := store.NewStorage(ctx, entity.ID, "storage-dest", StorageModeAuto)
	require.NoError(t, err)

	seedEntryUnderStorage(t, db, *entity, source.ID)

	err = store.AssignTo(ctx, AssignRequest{StorageID: &source.ID, ToStorageID: &dest.ID})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&Storage{}).Where("id = ?", source.ID).Count(&count).Error)
	require.Zero(t, count, "source storage should have been deleted")

	var fragCount int64
	require.NoError(t, db.Model(&EntryFragment{}).Where("storage_id = ?", dest.ID).Count(&fragCount).Error)
	require.Equal(t, int64(1), fragCount)
}
