package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
)

// runFunc handles one tx.Run call in a fake transaction.
type runFunc func(cypher string, params map[string]any) (Result, error)

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func record(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos < len(r.records) {
		r.pos++
		return true
	}
	return false
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }
func (r *fakeResult) Err() error            { return r.err }
func (r *fakeResult) Consume(context.Context) (neo4j.ResultSummary, error) {
	return nil, r.err
}

type fakeTx struct {
	run     runFunc
	queries []string
	params  []map[string]any
}

func (t *fakeTx) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	t.queries = append(t.queries, cypher)
	t.params = append(t.params, params)
	return t.run(cypher, params)
}

type fakeSession struct {
	tx *fakeTx
}

func (s *fakeSession) ExecuteRead(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(s.tx)
}

func (s *fakeSession) ExecuteWrite(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(s.tx)
}

func (s *fakeSession) Close(context.Context) error { return nil }

type fakeDriver struct {
	tx *fakeTx
}

func (d *fakeDriver) VerifyConnectivity(context.Context) error { return nil }
func (d *fakeDriver) NewSession(context.Context, neo4j.SessionConfig) internalSession {
	return &fakeSession{tx: d.tx}
}
func (d *fakeDriver) Close(context.Context) error { return nil }

// newFakeStore returns a GraphStore backed by a scripted transaction.
func newFakeStore(run runFunc) (*GraphStore, *fakeTx) {
	tx := &fakeTx{run: run}
	d := &Driver{driver: &fakeDriver{tx: tx}, logger: logging.NewNopLogger()}
	return NewGraphStore(d, logging.NewNopLogger(), nil), tx
}
