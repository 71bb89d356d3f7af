package neo4j

import (
	"context"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

func TestCreateNodeMergesByID(t *testing.T) {
	store, tx := newFakeStore(func(cypher string, params map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record([]string{"created"}, []any{true})}}, nil
	})

	created, err := store.CreateNode(context.Background(), kg.Node{
		ID:     "sub-1",
		Labels: []string{string(kg.KindSubstance)},
		Properties: map[string]interface{}{
			"name":         "Sulfuric Acid",
			"hazard_class": "corrosive",
		},
	})
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, tx.queries, 1)
	assert.Contains(t, tx.queries[0], "MERGE (n:HazardousSubstance {id: $id})")
	assert.Contains(t, tx.queries[0], "ON CREATE SET n.created_at")
	assert.Equal(t, "sub-1", tx.params[0]["id"])

	props := tx.params[0]["props"].(map[string]interface{})
	assert.Equal(t, "Sulfuric Acid", props["name"])
	// id and created_at never travel in the property bag
	assert.NotContains(t, props, "id")
	assert.NotContains(t, props, "created_at")
}

func TestCreateNodeExistingReturnsFalse(t *testing.T) {
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record([]string{"created"}, []any{false})}}, nil
	})

	created, err := store.CreateNode(context.Background(), kg.Node{
		ID:     "sub-1",
		Labels: []string{string(kg.KindSubstance)},
	})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateNodeRejectsUnknownLabel(t *testing.T) {
	store, tx := newFakeStore(func(string, map[string]any) (Result, error) {
		t.Fatal("no query expected")
		return nil, nil
	})

	_, err := store.CreateNode(context.Background(), kg.Node{ID: "x", Labels: []string{"Recipe"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaViolation))
	assert.Empty(t, tx.queries)

	_, err = store.CreateNode(context.Background(), kg.Node{Labels: []string{string(kg.KindSubstance)}})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaViolation))
}

func TestCreateEdgeDanglingEndpoint(t *testing.T) {
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record([]string{"created"}, []any{int64(0)})}}, nil
	})

	err := store.CreateEdge(context.Background(), kg.Edge{
		SourceID: "sub-1", TargetID: "missing", Type: kg.RelStoredIn,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDanglingEdge))
}

func TestCreateEdgeRejectsUnknownType(t *testing.T) {
	store, tx := newFakeStore(func(string, map[string]any) (Result, error) {
		t.Fatal("no query expected")
		return nil, nil
	})

	err := store.CreateEdge(context.Background(), kg.Edge{
		SourceID: "a", TargetID: "b", Type: kg.RelationType("EXPLODES_NEAR"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaViolation))
	assert.Empty(t, tx.queries)
}

func TestCreateEdgeSuccess(t *testing.T) {
	store, tx := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record([]string{"created"}, []any{int64(1)})}}, nil
	})

	err := store.CreateEdge(context.Background(), kg.Edge{
		SourceID: "sub-1", TargetID: "cont-1", Type: kg.RelStoredIn,
		Properties: map[string]interface{}{"quantity": "5L"},
	})
	require.NoError(t, err)
	require.Len(t, tx.queries, 1)
	assert.Contains(t, tx.queries[0], "MERGE (a)-[r:STORED_IN]->(b)")

	props := tx.params[0]["props"].(map[string]interface{})
	assert.Equal(t, "5L", props["quantity"])
	assert.Contains(t, props, "created_at")
}

func TestGetNodeNotFound(t *testing.T) {
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{}, nil
	})

	_, err := store.GetNode(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestGetNodeFound(t *testing.T) {
	n := neo4j.Node{
		Labels: []string{string(kg.KindSubstance)},
		Props:  map[string]interface{}{"id": "sub-1", "name": "Acetone"},
	}
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record([]string{"n"}, []any{n})}}, nil
	})

	node, err := store.GetNode(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", node.ID)
	assert.Equal(t, []string{"HazardousSubstance"}, node.Labels)
	assert.Equal(t, "Acetone", node.Properties["name"])
}

func TestListNodesRejectsUnknownKind(t *testing.T) {
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{}, nil
	})
	_, err := store.ListNodes(context.Background(), kg.EntityKind("Recipe"), 10, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaViolation))
}

func TestEnsureSchemaEmitsConstraintsAndIndexes(t *testing.T) {
	store, tx := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{}, nil
	})

	err := store.EnsureSchema(context.Background(), kg.DefaultSchema())
	require.NoError(t, err)

	all := strings.Join(tx.queries, "\n")
	for _, kind := range kg.EntityKinds() {
		assert.Contains(t, all, "FOR (n:"+string(kind)+") REQUIRE n.id IS UNIQUE")
	}
	assert.Contains(t, all, "FOR (n:HazardousSubstance) ON (n.cas_number)")
	assert.Contains(t, all, "FOR (n:Container) ON (n.material)")
	for _, q := range tx.queries {
		assert.Contains(t, q, "IF NOT EXISTS")
	}
}

func TestShortestPath(t *testing.T) {
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record(
			[]string{"ids", "len"},
			[]any{[]interface{}{"a", "b", "c"}, int64(2)},
		)}}, nil
	})

	path, err := store.ShortestPath(context.Background(), "a", "c", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, path.NodeIDs)
	assert.Equal(t, 2, path.Length)
}

func TestStats(t *testing.T) {
	calls := 0
	store, _ := newFakeStore(func(cypher string, _ map[string]any) (Result, error) {
		calls++
		if strings.Contains(cypher, "labels(n)") {
			return &fakeResult{records: []*neo4j.Record{
				record([]string{"label", "c"}, []any{"HazardousSubstance", int64(3)}),
				record([]string{"label", "c"}, []any{"Container", int64(2)}),
			}}, nil
		}
		return &fakeResult{records: []*neo4j.Record{
			record([]string{"t", "c"}, []any{"STORED_IN", int64(4)}),
		}}, nil
	})

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(5), stats.TotalNodes)
	assert.Equal(t, int64(4), stats.TotalEdges)
	assert.Equal(t, int64(3), stats.NodeCounts["HazardousSubstance"])
	assert.Equal(t, int64(4), stats.EdgeCounts["STORED_IN"])
}

func TestDeleteNodeNotFound(t *testing.T) {
	store, _ := newFakeStore(func(string, map[string]any) (Result, error) {
		return &fakeResult{records: []*neo4j.Record{record([]string{"deleted"}, []any{int64(0)})}}, nil
	})

	err := store.DeleteNode(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestClosedDriverRefusesWork(t *testing.T) {
	tx := &fakeTx{run: func(string, map[string]any) (Result, error) { return &fakeResult{}, nil }}
	d := &Driver{driver: &fakeDriver{tx: tx}, logger: logging.NewNopLogger()}
	require.NoError(t, d.Close())

	store := NewGraphStore(d, logging.NewNopLogger(), nil)
	_, err := store.GetNode(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotConnected))
}
