package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/arkeep/server/internal/catalog"
	"github.com/arkeep-io/arkeep/server/internal/db"
)

func TestCompileRetentionPresetMapsLegacyBuckets(t *testing.T) {
	p := &db.Policy{
		RetentionDaily:   7,
		RetentionWeekly:  4,
		RetentionMonthly: 6,
		RetentionYearly:  1,
	}

	nodes := CompileRetentionPreset(p)
	require.Len(t, nodes, 4)

	byType := make(map[catalog.ArchiveType]Node, len(nodes))
	for _, n := range nodes {
		byType[n.ArchiveType] = n
	}

	require.Equal(t, 7, byType[catalog.ArchiveTypeIncremental].MaxKeep)
	require.Equal(t, 4, byType[catalog.ArchiveTypeDifferential].MaxKeep)
	require.Equal(t, 6, byType[catalog.ArchiveTypeFull].MaxKeep)
	require.Equal(t, 1, byType[catalog.ArchiveTypeContinuous].MaxKeep)
	for _, n := range nodes {
		require.Equal(t, AgeForever, n.MaxAgeDays)
	}
}

func TestNodesForPolicyPrefersExplicitOverride(t *testing.T) {
	p := &db.Policy{
		RetentionDaily:   7,
		PersistenceNodes: `[{"ArchiveType":"full","MinKeep":3,"MaxKeep":7,"MaxAgeDays":5}]`,
	}

	nodes, err := NodesForPolicy(p)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, catalog.ArchiveTypeFull, nodes[0].ArchiveType)
	require.Equal(t, 5, nodes[0].MaxAgeDays)
}

func TestNodesForPolicyFallsBackToPreset(t *testing.T) {
	p := &db.Policy{RetentionDaily: 7, RetentionWeekly: 4, RetentionMonthly: 6, RetentionYearly: 1}
	nodes, err := NodesForPolicy(p)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
}
