package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkeep-io/arkeep/server/internal/catalog"
	"github.com/arkeep-io/arkeep/server/internal/db"
	"github.com/arkeep-io/arkeep/server/internal/repositories"
	"github.com/arkeep-io/arkeep/shared/transport"
)

// Sweeper runs the retention sweep described by Evaluate against the
// index catalog, one enabled policy at a time. It is driven by
// maintenance.Node's background-index-and-purge window, not by the
// schedule ticks themselves — retention is a housekeeping pass, not a
// per-job action.
type Sweeper struct {
	catalog  *catalog.Store
	policies repositories.PolicyRepository
	origin   transport.Storage // where storage objects physically live; nil disables MoveToURI handling
	mover    Mover
	logger   *zap.Logger
}

// NewSweeper builds a Sweeper. origin may be nil if no policy uses
// MoveToURI — Move is only ever invoked for nodes that set it.
func NewSweeper(store *catalog.Store, policies repositories.PolicyRepository, origin transport.Storage, mover Mover, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		catalog:  store,
		policies: policies,
		origin:   origin,
		mover:    mover,
		logger:   logger.Named("persistence"),
	}
}

// RunOnce sweeps every enabled policy's PersistenceNode set against the
// catalog and reports how many storages were kept/deleted/moved.
func (sw *Sweeper) RunOnce(ctx context.Context) error {
	enabled, err := sw.policies.ListEnabled(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range enabled {
		policy := &enabled[i]
		if err := sw.sweepPolicy(ctx, policy, now); err != nil {
			sw.logger.Error("persistence sweep failed for policy",
				zap.String("policy_id", policy.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (sw *Sweeper) sweepPolicy(ctx context.Context, policy *db.Policy, now time.Time) error {
	uuidRow, err := sw.catalog.FindUUID(ctx, policy.ID.String())
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil // no archives have been cataloged for this policy yet
		}
		return err
	}

	nodes, err := NodesForPolicy(policy)
	if err != nil {
		return err
	}

	for _, node := range nodes {
		if err := sw.sweepNode(ctx, uuidRow.ID, node, now); err != nil {
			sw.logger.Error("persistence sweep failed for node",
				zap.String("policy_id", policy.ID.String()),
				zap.String("archive_type", string(node.ArchiveType)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (sw *Sweeper) sweepNode(ctx context.Context, uuidID uuid.UUID, node Node, now time.Time) error {
	storages, err := sw.catalog.ListStoragesForSweep(ctx, uuidID, node.ArchiveType)
	if err != nil {
		return err
	}
	if len(storages) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]catalog.Storage, len(storages))
	for _, s := range storages {
		byID[s.ID] = s
	}

	_, del := Evaluate(CandidatesFromStorages(storages), node, now)
	if len(del) == 0 {
		return nil
	}

	sw.logger.Info("persistence sweep deleting storages",
		zap.String("archive_type", string(node.ArchiveType)),
		zap.Int("kept", len(storages)-len(del)),
		zap.Int("deleted", len(del)),
	)

	for _, c := range del {
		storage := byID[c.ID]
		if node.MoveToURI != "" && sw.origin != nil {
			if err := sw.mover.Move(ctx, sw.origin, storage.Name, node.MoveToURI); err != nil {
				sw.logger.Error("persistence sweep: move before delete failed, leaving storage in place",
					zap.String("storage_id", storage.ID.String()),
					zap.String("move_to", node.MoveToURI),
					zap.Error(err),
				)
				continue
			}
		}
		if err := sw.catalog.DeleteStorage(ctx, storage.ID); err != nil {
			sw.logger.Error("persistence sweep: delete storage failed",
				zap.String("storage_id", storage.ID.String()),
				zap.Error(err),
			)
			continue
		}
	}

	return sw.catalog.UpdateEntityAggregates(ctx, storages[0].EntityID)
}
