package grpc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arkeep-io/arkeep/server/internal/agentmanager"
	"github.com/arkeep-io/arkeep/server/internal/catalog"
	"github.com/arkeep-io/arkeep/server/internal/db"
	"github.com/arkeep-io/arkeep/server/internal/repositories"
	"github.com/arkeep-io/arkeep/server/internal/websocket"
	"github.com/arkeep-io/arkeep/shared/wire"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, repositories.JobRepository) {
	t.Helper()
	gormDB, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&db.Job{}, &db.JobDestination{}, &db.JobLog{}, &db.Snapshot{}))
	require.NoError(t, gormDB.AutoMigrate(catalog.AllModels()...))

	jobRepo := repositories.NewJobRepository(gormDB)
	snapshotRepo := repositories.NewSnapshotRepository(gormDB)
	catalogStore := catalog.NewStore(gormDB)
	agentRepo := repositories.NewAgentRepository(gormDB)

	srv := New(
		Config{ListenAddr: ":0", SharedSecret: ""},
		agentmanager.New(zap.NewNop()),
		agentRepo,
		jobRepo,
		snapshotRepo,
		catalogStore,
		websocket.NewHub(),
		zap.NewNop(),
	)
	return srv, jobRepo
}

func TestReportJobStatusSucceededRecordsSnapshotAndCatalogStorage(t *testing.T) {
	ctx := context.Background()
	srv, jobRepo := newTestServer(t)

	job := &db.Job{PolicyID: uuid.Must(uuid.NewV7()), AgentID: uuid.Must(uuid.NewV7()), Status: "running"}
	require.NoError(t, jobRepo.Create(ctx, job))

	destID := uuid.Must(uuid.NewV7())
	jd := &db.JobDestination{JobID: job.ID, DestinationID: destID, Status: "running"}
	require.NoError(t, jobRepo.CreateDestination(ctx, jd))

	ack, err := srv.ReportJobStatus(ctx, &wire.JobStatusReport{
		JobID:   job.ID.String(),
		AgentID: job.AgentID.String(),
		Status:  wire.JobStatusSucceeded,
		Message: "backup completed",
		Results: []wire.JobDestinationResult{
			{DestinationID: destID.String(), SnapshotID: "snap-abc123", SizeBytes: 4096},
		},
	})
	require.NoError(t, err)
	require.True(t, ack.OK)

	updatedJob, err := jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", updatedJob.Status)

	destinations, err := jobRepo.ListDestinationsByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, destinations, 1)
	require.Equal(t, "succeeded", destinations[0].Status)
	require.Equal(t, "snap-abc123", destinations[0].SnapshotID)
	require.Equal(t, int64(4096), destinations[0].SizeBytes)

	snapshots, _, err := srv.snapshotRepo.List(ctx, repositories.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "snap-abc123", snapshots[0].SnapshotID)
	require.Equal(t, job.PolicyID, snapshots[0].PolicyID)

	uuidRow, err := srv.catalogStore.FindUUID(ctx, job.PolicyID.String())
	require.NoError(t, err)
	require.NotNil(t, uuidRow)

	storages, err := srv.catalogStore.ListStoragesForSweep(ctx, uuidRow.ID, catalog.ArchiveTypeIncremental)
	require.NoError(t, err)
	require.Len(t, storages, 1)
	require.Equal(t, "snap-abc123", storages[0].Name)
}

func TestReportJobStatusSucceededRecordsCatalogEntries(t *testing.T) {
	ctx := context.Background()
	srv, jobRepo := newTestServer(t)

	job := &db.Job{PolicyID: uuid.Must(uuid.NewV7()), AgentID: uuid.Must(uuid.NewV7()), Status: "running"}
	require.NoError(t, jobRepo.Create(ctx, job))

	destID := uuid.Must(uuid.NewV7())
	jd := &db.JobDestination{JobID: job.ID, DestinationID: destID, Status: "running"}
	require.NoError(t, jobRepo.CreateDestination(ctx, jd))

	ack, err := srv.ReportJobStatus(ctx, &wire.JobStatusReport{
		JobID:   job.ID.String(),
		AgentID: job.AgentID.String(),
		Status:  wire.JobStatusSucceeded,
		Message: "backup completed",
		Results: []wire.JobDestinationResult{
			{
				DestinationID: destID.String(),
				SnapshotID:    "snap-entries",
				SizeBytes:     2048,
				Entries: []wire.EntryResult{
					{
						Type: "file", Name: "/data/a.txt", Size: 2048,
						HashAlgorithm: "sha256",
						Fragments: []wire.EntryFragmentResult{
							{FragmentIndex: 0, Offset: 0, Size: 2048},
						},
					},
					{Type: "directory", Name: "/data/sub"},
				},
			},
		},
	})
	require.NoError(t, err)
	require.True(t, ack.OK)

	uuidRow, err := srv.catalogStore.FindUUID(ctx, job.PolicyID.String())
	require.NoError(t, err)

	storages, err := srv.catalogStore.ListStoragesForSweep(ctx, uuidRow.ID, catalog.ArchiveTypeIncremental)
	require.NoError(t, err)
	require.Len(t, storages, 1)
	require.Equal(t, int64(1), storages[0].TotalFileCount)
	require.Equal(t, int64(1), storages[0].TotalDirectoryCount)
	require.Equal(t, int64(2), storages[0].TotalEntryCount)
}

func TestReportJobStatusFailedDestinationSkipsSnapshotButUpdatesStatus(t *testing.T) {
	ctx := context.Background()
	srv, jobRepo := newTestServer(t)

	job := &db.Job{PolicyID: uuid.Must(uuid.NewV7()), AgentID: uuid.Must(uuid.NewV7()), Status: "running"}
	require.NoError(t, jobRepo.Create(ctx, job))

	destID := uuid.Must(uuid.NewV7())
	jd := &db.JobDestination{JobID: job.ID, DestinationID: destID, Status: "running"}
	require.NoError(t, jobRepo.CreateDestination(ctx, jd))

	_, err := srv.ReportJobStatus(ctx, &wire.JobStatusReport{
		JobID:   job.ID.String(),
		AgentID: job.AgentID.String(),
		Status:  wire.JobStatusFailed,
		Message: "one or more destinations failed",
		Results: []wire.JobDestinationResult{
			{DestinationID: destID.String(), Error: "connection refused"},
		},
	})
	require.NoError(t, err)

	destinations, err := jobRepo.ListDestinationsByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, destinations, 1)
	require.Equal(t, "failed", destinations[0].Status)
	require.Equal(t, "connection refused", destinations[0].Error)

	snapshots, _, err := srv.snapshotRepo.List(ctx, repositories.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, snapshots, 0)
}

func TestReportJobStatusRunningIgnoresResults(t *testing.T) {
	ctx := context.Background()
	srv, jobRepo := newTestServer(t)

	job := &db.Job{PolicyID: uuid.Must(uuid.NewV7()), AgentID: uuid.Must(uuid.NewV7()), Status: "pending"}
	require.NoError(t, jobRepo.Create(ctx, job))

	_, err := srv.ReportJobStatus(ctx, &wire.JobStatusReport{
		JobID:   job.ID.String(),
		AgentID: job.AgentID.String(),
		Status:  wire.JobStatusRunning,
		Message: "starting backup",
	})
	require.NoError(t, err)

	updatedJob, err := jobRepo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, "running", updatedJob.Status)
}
