package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

func TestNewUUIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	first, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)

	second, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

func TestFindUUIDNotFound(t *testing.T) {
	store := NewStore(newTestDB(t))
	_, err := store.FindUUID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPruneEntityDeletesWhenEmpty(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	entity, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)

	require.NoError(t, store.PruneEntity(ctx, entity.ID))

	var count int64
	require.NoError(t, db.Model(&Entity{}).Where("id = ?", entity.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestPruneEntityKeepsNonEmpty(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	entity, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	_, err = store.NewStorage(ctx, entity.ID, "storage-1", StorageModeAuto)
	require.NoError(t, err)

	require.NoError(t, store.PruneEntity(ctx, entity.ID))

	var count int64
	require.NoError(t, db.Model(&Entity{}).Where("id = ?", entity.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

// seedEntryUnderStorage inserts one entry, one fragment, and the
// entriesNewest projection row for it, all parented under storageID.
func seedEntryUnderStorage(t *testing.T, db *gorm.DB, entity Entity, storageID uuid.UUID) Entry {
	t.Helper()
	entry := Entry{
		EntityID: entity.ID,
		UUIDID:   entity.UUIDID,
		Type:     EntryKindFile,
		Name:     "/data/file-" + uuid.NewString(),
		Size:     1024,
	}
	require.NoError(t, db.Create(&entry).Error)
	require.NoError(t, db.Create(&EntryFragment{EntryID: entry.ID, StorageID: storageID, Offset: 0, Size: 1024}).Error)
	require.NoError(t, db.Create(&EntryNewest{EntryID: entry.ID, Name: entry.Name, Type: entry.Type}).Error)
	return entry
}

// TestNewEntryInsertsFragmentsAndRollsUpAggregates grounds the write
// path recordDestinationResults drives per archived file: one Entry
// row, its fragment rows, and an entriesNewest projection, landing a
// storage's and its entity's and its uuid's aggregate counters.
func TestNewEntryInsertsFragmentsAndRollsUpAggregates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	entity, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	storage, err := store.NewStorage(ctx, entity.ID, "storage-1", StorageModeAuto)
	require.NoError(t, err)

	entry, err := store.NewEntry(ctx, NewEntryParams{
		EntityID:  entity.ID,
		StorageID: storage.ID,
		Type:      EntryKindFile,
		Name:      "/data/a.txt",
		Size:      2048,
		Fragments: []EntryFragmentInput{
			{StorageID: storage.ID, Offset: 0, Size: 1024},
			{StorageID: storage.ID, Offset: 1024, Size: 1024},
		},
	})
	require.NoError(t, err)
	require.Equal(t, entity.UUIDID, entry.UUIDID)

	var fragCount int64
	require.NoError(t, db.Model(&EntryFragment{}).Where("entry_id = ?", entry.ID).Count(&fragCount).Error)
	require.Equal(t, int64(2), fragCount)

	var newestCount int64
	require.NoError(t, db.Model(&EntryNewest{}).Where("entry_id = ?", entry.ID).Count(&newestCount).Error)
	require.Equal(t, int64(1), newestCount)

	var gotStorage Storage
	require.NoError(t, db.Where("id = ?", storage.ID).First(&gotStorage).Error)
	require.Equal(t, int64(1), gotStorage.TotalFileCount)
	require.Equal(t, int64(2048), gotStorage.TotalFileSize)
	require.Equal(t, int64(1), gotStorage.TotalEntryCount)

	var gotEntity Entity
	require.NoError(t, db.Where("id = ?", entity.ID).First(&gotEntity).Error)
	require.Equal(t, int64(1), gotEntity.TotalFileCount)

	var gotUUID UUIDRow
	require.NoError(t, db.Where("id = ?", row.ID).First(&gotUUID).Error)
	require.Equal(t, int64(1), gotUUID.TotalFileCount)
}

// TestNewEntryDirectoryHasNoFragments grounds the fragment-less entry
// case: a directory is cataloged directly against its storage (entries.storageId)
// with no entryFragments rows, and still rolls up a directory count.
func TestNewEntryDirectoryHasNoFragments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewStore(db)

	row, err := store.NewUUID(ctx, "job-1")
	require.NoError(t, err)
	entity, err := store.NewEntity(ctx, row.ID, "job-1", "", ArchiveTypeFull)
	require.NoError(t, err)
	storage, err := store.NewStorage(ctx, entity.ID, "storage-1", StorageModeAuto)
	require.NoError(t, err)

	entry, err := store.NewEntry(ctx, NewEntryParams{
		EntityID:  entity.ID,
		StorageID: storage.ID,
		Type:      EntryKindDirectory,
		Name:      "/data/sub",
	})
	require.NoError(t, err)

	var fragCount int64
	require.NoError(t, db.Model(&EntryFragment{}).Where("entry_id = ?", entry.ID).Count(&fragCount).Error)
	require.Zero(t, fragCount)

	var dirCount int64
	require.NoError(t, db.Model(&DirectoryEntry{}).Where("entry_id = ?", entry.ID).Count(&dirCount).Error)
	require.Equal(t, int64(1), dirCount)

	var gotStorage Storage
	require.NoError(t, db.Where("id = ?", storage.ID).First(&gotStorage).Error)
	require.Equal(t, int64(1), gotStorage.TotalDirectoryCount)
}
