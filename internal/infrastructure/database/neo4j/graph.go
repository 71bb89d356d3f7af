package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// GraphStore is the property-graph adapter.  Labels and relationship types
// are restricted to the kg vocabulary; everything else is refused before any
// Cypher is built, which also keeps interpolated labels injection-safe.
type GraphStore struct {
	driver  *Driver
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewGraphStore wires the store over an open driver.  metrics may be nil.
func NewGraphStore(d *Driver, log logging.Logger, metrics *prometheus.AppMetrics) *GraphStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &GraphStore{driver: d, logger: log, metrics: metrics}
}

// GraphStats summarizes the stored graph.
type GraphStats struct {
	TotalNodes int64            `json:"total_nodes"`
	TotalEdges int64            `json:"total_edges"`
	NodeCounts map[string]int64 `json:"node_counts"`
	EdgeCounts map[string]int64 `json:"edge_counts"`
}

// GraphExport is the full dump consumed by the export endpoint.
type GraphExport struct {
	Nodes []kg.Node `json:"nodes"`
	Edges []kg.Edge `json:"edges"`
}

// PathResult is one shortest path between two nodes.
type PathResult struct {
	NodeIDs []string `json:"node_ids"`
	Length  int      `json:"length"`
}

func validLabel(label string) bool {
	for _, k := range kg.EntityKinds() {
		if string(k) == label {
			return true
		}
	}
	return false
}

func validRelation(rel kg.RelationType) bool {
	for _, r := range kg.RelationTypes() {
		if r == rel {
			return true
		}
	}
	return false
}

func (g *GraphStore) observe(operation string, start time.Time) {
	if g.metrics != nil {
		g.metrics.GraphQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// EnsureSchema creates the unique-id constraints and lookup indexes.  All
// statements are idempotent.
func (g *GraphStore) EnsureSchema(ctx context.Context, schema kg.GraphSchema) error {
	defer g.observe("ensure_schema", time.Now())

	var stmts []string
	for _, kind := range schema.UniqueID {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
			strings.ToLower(string(kind)), kind))
	}
	kinds := make([]kg.EntityKind, 0, len(schema.Indexes))
	for kind := range schema.Indexes {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		for _, prop := range schema.Indexes[kind] {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX %s_%s_idx IF NOT EXISTS FOR (n:%s) ON (n.%s)",
				strings.ToLower(string(kind)), prop, kind, prop))
		}
	}

	_, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (interface{}, error) {
		for _, stmt := range stmts {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// CreateNode upserts a node by (label, id).  Re-running with the same id
// updates properties in place; created_at is only written on first create.
// Returns true when the node was newly created.
func (g *GraphStore) CreateNode(ctx context.Context, node kg.Node) (bool, error) {
	defer g.observe("create_node", time.Now())

	if len(node.Labels) != 1 || !validLabel(node.Labels[0]) {
		return false, apperrors.Newf(apperrors.ErrCodeSchemaViolation, "unknown node label %v", node.Labels)
	}
	if node.ID == "" {
		return false, apperrors.New(apperrors.ErrCodeSchemaViolation, "node id must not be empty")
	}
	label := node.Labels[0]

	props := map[string]interface{}{}
	for k, v := range node.Properties {
		props[k] = v
	}
	delete(props, "id")
	delete(props, "created_at")

	query := fmt.Sprintf(`
		MERGE (n:%s {id: $id})
		ON CREATE SET n.created_at = $now, n._was_created = true
		ON MATCH SET n._was_created = false
		SET n += $props, n.updated_at = $now
		WITH n, n._was_created AS created
		REMOVE n._was_created
		RETURN created
	`, label)

	res, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, map[string]any{
			"id":    node.ID,
			"props": props,
			"now":   time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			created, _ := result.Record().Get("created")
			b, _ := created.(bool)
			return b, nil
		}
		return false, result.Err()
	})
	if err != nil {
		return false, err
	}
	created := res.(bool)
	if created && g.metrics != nil {
		g.metrics.GraphNodesCreated.WithLabelValues(label).Inc()
	}
	return created, nil
}

// CreateEdge upserts a typed relationship between two existing nodes.  A
// missing endpoint fails with a dangling-edge error and writes nothing.
func (g *GraphStore) CreateEdge(ctx context.Context, edge kg.Edge) error {
	defer g.observe("create_edge", time.Now())

	if !validRelation(edge.Type) {
		return apperrors.Newf(apperrors.ErrCodeSchemaViolation, "unknown relation type %q", edge.Type)
	}

	props := map[string]interface{}{}
	for k, v := range edge.Properties {
		props[k] = v
	}
	if _, ok := props["created_at"]; !ok {
		props["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	query := fmt.Sprintf(`
		OPTIONAL MATCH (a {id: $src})
		OPTIONAL MATCH (b {id: $dst})
		WITH a, b
		WHERE a IS NOT NULL AND b IS NOT NULL
		MERGE (a)-[r:%s]->(b)
		SET r += $props
		RETURN count(r) AS created
	`, edge.Type)

	res, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, map[string]any{
			"src":   edge.SourceID,
			"dst":   edge.TargetID,
			"props": props,
		})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			created, _ := result.Record().Get("created")
			n, _ := created.(int64)
			return n, nil
		}
		return int64(0), result.Err()
	})
	if err != nil {
		return err
	}
	if res.(int64) == 0 {
		return apperrors.Newf(apperrors.ErrCodeDanglingEdge,
			"edge %s: endpoint %q or %q does not exist", edge.Type, edge.SourceID, edge.TargetID)
	}
	if g.metrics != nil {
		g.metrics.GraphEdgesCreated.WithLabelValues(string(edge.Type)).Inc()
	}
	return nil
}

// GetNode fetches one node by id.
func (g *GraphStore) GetNode(ctx context.Context, id string) (*kg.Node, error) {
	defer g.observe("get_node", time.Now())

	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, "MATCH (n {id: $id}) RETURN n LIMIT 1", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			val, _ := result.Record().Get("n")
			if n, ok := val.(neo4j.Node); ok {
				node := nodeFromNeo4j(n)
				return &node, nil
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return (*kg.Node)(nil), nil
	})
	if err != nil {
		return nil, err
	}
	node := res.(*kg.Node)
	if node == nil {
		return nil, apperrors.NotFound(fmt.Sprintf("node %q", id))
	}
	return node, nil
}

// ListNodes pages through the nodes of one label.
func (g *GraphStore) ListNodes(ctx context.Context, kind kg.EntityKind, limit, offset int) ([]kg.Node, error) {
	defer g.observe("list_nodes", time.Now())

	if !validLabel(string(kind)) {
		return nil, apperrors.Newf(apperrors.ErrCodeSchemaViolation, "unknown node label %q", kind)
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf("MATCH (n:%s) RETURN n ORDER BY n.id SKIP $offset LIMIT $limit", kind)
	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, map[string]any{"offset": offset, "limit": limit})
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, recordToNode)
	})
	if err != nil {
		return nil, err
	}
	return res.([]kg.Node), nil
}

// Search matches query case-insensitively against the searchable text fields
// of the given kinds (all kinds when empty).
func (g *GraphStore) Search(ctx context.Context, query string, kinds []kg.EntityKind, limit int) ([]kg.Node, error) {
	defer g.observe("search", time.Now())

	if limit <= 0 {
		limit = 25
	}
	if len(kinds) == 0 {
		kinds = kg.EntityKinds()
	}
	labels := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if !validLabel(string(k)) {
			return nil, apperrors.Newf(apperrors.ErrCodeSchemaViolation, "unknown node label %q", k)
		}
		labels = append(labels, string(k))
	}

	cypher := `
		MATCH (n)
		WHERE any(l IN labels(n) WHERE l IN $labels)
		  AND (toLower(coalesce(n.name, '')) CONTAINS toLower($q)
		    OR toLower(coalesce(n.title, '')) CONTAINS toLower($q)
		    OR toLower(coalesce(n.description, '')) CONTAINS toLower($q)
		    OR toLower(coalesce(n.cas_number, '')) CONTAINS toLower($q))
		RETURN n ORDER BY n.id LIMIT $limit
	`
	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"labels": labels, "q": query, "limit": limit})
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, recordToNode)
	})
	if err != nil {
		return nil, err
	}
	return res.([]kg.Node), nil
}

// ShortestPath finds one undirected shortest path between two nodes, bounded
// by maxDepth hops.
func (g *GraphStore) ShortestPath(ctx context.Context, fromID, toID string, maxDepth int) (*PathResult, error) {
	defer g.observe("shortest_path", time.Now())

	if maxDepth <= 0 || maxDepth > 10 {
		maxDepth = 6
	}
	query := fmt.Sprintf(`
		MATCH (a {id: $from}), (b {id: $to}),
		      p = shortestPath((a)-[*..%d]-(b))
		RETURN [n IN nodes(p) | n.id] AS ids, length(p) AS len
	`, maxDepth)

	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, map[string]any{"from": fromID, "to": toID})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			rec := result.Record()
			idsVal, _ := rec.Get("ids")
			lenVal, _ := rec.Get("len")
			path := &PathResult{}
			if ids, ok := idsVal.([]interface{}); ok {
				for _, id := range ids {
					if s, ok := id.(string); ok {
						path.NodeIDs = append(path.NodeIDs, s)
					}
				}
			}
			if l, ok := lenVal.(int64); ok {
				path.Length = int(l)
			}
			return path, nil
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return (*PathResult)(nil), nil
	})
	if err != nil {
		return nil, err
	}
	path := res.(*PathResult)
	if path == nil {
		return nil, apperrors.NotFound(fmt.Sprintf("no path between %q and %q", fromID, toID))
	}
	return path, nil
}

// Recommendations suggests containers for a substance: vessels already used
// for substances of the same hazard class, most used first.
func (g *GraphStore) Recommendations(ctx context.Context, substanceID string, limit int) ([]kg.Node, error) {
	defer g.observe("recommendations", time.Now())

	if limit <= 0 {
		limit = 10
	}
	cypher := `
		MATCH (s:HazardousSubstance {id: $id})
		MATCH (peer:HazardousSubstance)
		WHERE peer.hazard_class = s.hazard_class AND peer.id <> s.id
		MATCH (peer)-[:STORED_IN]->(c:Container)
		WHERE NOT (s)-[:STORED_IN]->(c)
		RETURN c AS n, count(peer) AS uses
		ORDER BY uses DESC, c.id
		LIMIT $limit
	`
	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": substanceID, "limit": limit})
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, result, recordToNode)
	})
	if err != nil {
		return nil, err
	}
	return res.([]kg.Node), nil
}

// Stats returns node and edge counts by label and type.
func (g *GraphStore) Stats(ctx context.Context) (*GraphStats, error) {
	defer g.observe("stats", time.Now())

	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		stats := &GraphStats{NodeCounts: map[string]int64{}, EdgeCounts: map[string]int64{}}

		result, err := tx.Run(ctx, "MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS c", nil)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			label, _ := rec.Get("label")
			c, _ := rec.Get("c")
			if l, ok := label.(string); ok {
				n, _ := c.(int64)
				stats.NodeCounts[l] = n
				stats.TotalNodes += n
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		result, err = tx.Run(ctx, "MATCH ()-[r]->() RETURN type(r) AS t, count(*) AS c", nil)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			t, _ := rec.Get("t")
			c, _ := rec.Get("c")
			if ts, ok := t.(string); ok {
				n, _ := c.(int64)
				stats.EdgeCounts[ts] = n
				stats.TotalEdges += n
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*GraphStats), nil
}

// Export dumps every node and edge.
func (g *GraphStore) Export(ctx context.Context) (*GraphExport, error) {
	defer g.observe("export", time.Now())

	res, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		export := &GraphExport{}

		result, err := tx.Run(ctx, "MATCH (n) RETURN n ORDER BY n.id", nil)
		if err != nil {
			return nil, err
		}
		nodes, err := CollectRecords(ctx, result, recordToNode)
		if err != nil {
			return nil, err
		}
		export.Nodes = nodes

		result, err = tx.Run(ctx,
			"MATCH (a)-[r]->(b) RETURN a.id AS src, b.id AS dst, type(r) AS t, properties(r) AS props ORDER BY src, dst, t", nil)
		if err != nil {
			return nil, err
		}
		edges, err := CollectRecords(ctx, result, func(rec *neo4j.Record) (kg.Edge, error) {
			src, _ := rec.Get("src")
			dst, _ := rec.Get("dst")
			t, _ := rec.Get("t")
			props, _ := rec.Get("props")
			edge := kg.Edge{}
			edge.SourceID, _ = src.(string)
			edge.TargetID, _ = dst.(string)
			if ts, ok := t.(string); ok {
				edge.Type = kg.RelationType(ts)
			}
			edge.Properties, _ = props.(map[string]interface{})
			return edge, nil
		})
		if err != nil {
			return nil, err
		}
		export.Edges = edges
		return export, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*GraphExport), nil
}

// DeleteNode removes a node and its relationships.
func (g *GraphStore) DeleteNode(ctx context.Context, id string) error {
	defer g.observe("delete_node", time.Now())

	res, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (interface{}, error) {
		result, err := tx.Run(ctx,
			"MATCH (n {id: $id}) DETACH DELETE n RETURN count(n) AS deleted", map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			deleted, _ := result.Record().Get("deleted")
			n, _ := deleted.(int64)
			return n, nil
		}
		return int64(0), result.Err()
	})
	if err != nil {
		return err
	}
	if res.(int64) == 0 {
		return apperrors.NotFound(fmt.Sprintf("node %q", id))
	}
	return nil
}

func nodeFromNeo4j(n neo4j.Node) kg.Node {
	node := kg.Node{Labels: n.Labels, Properties: n.Props}
	if id, ok := n.Props["id"].(string); ok {
		node.ID = id
	}
	return node
}

func recordToNode(rec *neo4j.Record) (kg.Node, error) {
	val, _ := rec.Get("n")
	n, ok := val.(neo4j.Node)
	if !ok {
		return kg.Node{}, apperrors.New(apperrors.ErrCodeSerialization, "record does not contain a node")
	}
	return nodeFromNeo4j(n), nil
}
