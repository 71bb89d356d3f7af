package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/ingestion"
	"github.com/hazardsafe/hazardsafe-kg/internal/validation"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// TabularResult is the outcome of one CSV ingest run.
type TabularResult struct {
	Summary

	Kind         kg.EntityKind           `json:"kind"`
	Rows         int                     `json:"rows"`
	Validation   *validation.BatchReport `json:"validation,omitempty"`
	QualityGate  string                  `json:"quality_gate,omitempty"`
	QualityGrade string                  `json:"quality_grade,omitempty"`
	Stored       int                     `json:"stored"`
}

// TabularPipeline ingests one CSV file of a single entity kind into the graph.
type TabularPipeline struct {
	deps *Deps
}

func NewTabularPipeline(deps *Deps) *TabularPipeline {
	return &TabularPipeline{deps: deps}
}

// Run reads, validates, quality-gates, and stores one CSV batch. Rows with
// row-level errors are dropped; batch-level errors, or a batch with no
// surviving rows, fail the run at the validation stage. A quality score under
// the storage floor ends the run with nothing stored, which still counts as a
// successful run of the pipeline itself.
func (p *TabularPipeline) Run(ctx context.Context, path string, kind kg.EntityKind) *TabularResult {
	run := NewRun()
	result := &TabularResult{
		Summary: Summary{
			RunID:     run.ID,
			Pipeline:  "tabular",
			StartedAt: time.Now(),
		},
		Kind: kind,
	}
	defer result.finish(p.deps.Metrics, run)
	log := p.deps.logger().With(logging.String("run_id", run.ID), logging.String("path", path))

	// Stage 1: read the file.
	run.To(StateIngesting)
	batch, ok := p.ingest(ctx, run, result, path)
	if !ok {
		return result
	}

	// Stage 2: validate against the kind's rule table.
	if err := p.advanceTabular(ctx, run, result, StateValidating); err != nil {
		return result
	}
	rows, ok := p.validate(run, result, kind, batch)
	if !ok {
		return result
	}

	// Stage 3: quality gate over the rows that passed validation.
	if err := p.advanceTabular(ctx, run, result, StateQualityChecking); err != nil {
		return result
	}
	if !p.qualityGate(run, result, kind, batch.Columns, rows) {
		return result
	}

	// Stage 4: bulk node creation.
	if err := p.advanceTabular(ctx, run, result, StateStoring); err != nil {
		return result
	}
	p.store(ctx, result, kind, rows)

	run.To(StateDone)
	result.OverallSuccess = true
	log.Info("tabular run complete",
		logging.String("kind", string(kind)),
		logging.Int("rows", result.Rows),
		logging.Int("stored", result.Stored))
	return result
}

func (p *TabularPipeline) advanceTabular(ctx context.Context, run *Run, result *TabularResult, to RunState) error {
	if err := ctx.Err(); err != nil {
		run.To(StateCancelled)
		appErr := apperrors.FromContext(err)
		result.Errors = append(result.Errors, appErr.Error())
		return appErr
	}
	return run.To(to)
}

func (p *TabularPipeline) ingest(ctx context.Context, run *Run, result *TabularResult, path string) (*ingestion.TabularBatch, bool) {
	clock := result.startStage(p.deps.Metrics, "ingest")
	defer clock.done()

	if err := ctx.Err(); err != nil {
		run.To(StateCancelled)
		clock.fail(apperrors.FromContext(err))
		return nil, false
	}
	batch, err := ingestion.ReadCSVBatch(path)
	if err != nil {
		run.To(FailedAt(StateIngesting))
		clock.fail(err)
		return nil, false
	}
	result.Rows = len(batch.Rows)
	clock.detail("columns", len(batch.Columns))
	clock.detail("rows", len(batch.Rows))
	return batch, true
}

// validate drops rows with row-level errors. The run fails on batch-level
// findings such as a missing required column, and when no row survives.
func (p *TabularPipeline) validate(run *Run, result *TabularResult, kind kg.EntityKind, batch *ingestion.TabularBatch) ([]map[string]string, bool) {
	clock := result.startStage(p.deps.Metrics, "validate")
	defer clock.done()

	report, err := validation.ValidateBatch(kind, batch.Columns, batch.Rows)
	if err != nil {
		run.To(FailedAt(StateValidating))
		clock.fail(err)
		return nil, false
	}
	result.Validation = report
	for _, w := range report.Warnings {
		clock.warn(fmt.Sprintf("row %d %s: %s", w.Row, w.Field, w.Message))
	}
	if p.deps.Metrics != nil {
		for _, issue := range report.Errors {
			p.deps.Metrics.ValidationErrorsTotal.WithLabelValues(string(kind), string(issue.Code)).Inc()
		}
	}

	badRows := map[int]bool{}
	for _, issue := range report.Errors {
		if issue.Row == 0 {
			run.To(FailedAt(StateValidating))
			clock.fail(apperrors.Newf(apperrors.ErrCodeSchemaViolation, "%s", issue.Message))
			return nil, false
		}
		badRows[issue.Row] = true
		clock.recordErr(apperrors.Newf(issue.Code, "row %d %s: %s", issue.Row, issue.Field, issue.Message))
	}

	kept := make([]map[string]string, 0, len(batch.Rows))
	for i, row := range batch.Rows {
		if badRows[i+1] {
			continue
		}
		kept = append(kept, row)
	}
	clock.detail("valid_rows", len(kept))
	clock.detail("dropped_rows", len(badRows))
	if len(kept) == 0 {
		code := apperrors.ErrCodeSchemaViolation
		if len(report.Errors) > 0 {
			code = report.Errors[0].Code
		}
		run.To(FailedAt(StateValidating))
		clock.fail(apperrors.Newf(code, "no rows survived validation (%d of %d dropped)",
			len(badRows), len(batch.Rows)))
		return nil, false
	}
	return kept, true
}

func (p *TabularPipeline) qualityGate(run *Run, result *TabularResult, kind kg.EntityKind, columns []string, rows []map[string]string) bool {
	clock := result.startStage(p.deps.Metrics, "quality")
	defer clock.done()

	report := p.deps.Quality.Assess(kind, columns, rows)
	result.QualityScore = report.Overall
	result.QualityGrade = report.Grade
	if p.deps.Metrics != nil {
		p.deps.Metrics.QualityScore.WithLabelValues(result.Pipeline).Set(report.Overall)
	}
	clock.detail("overall", report.Overall)
	clock.detail("grade", report.Grade)

	if report.Overall < p.deps.Config.Quality.MinOverallForStorage {
		result.QualityGate = GateFailed
		run.To(StateQualityFailed)
		result.OverallSuccess = true
		clock.recordErr(apperrors.Newf(apperrors.ErrCodeQualityBelowThreshold,
			"overall quality %.3f below storage floor %.3f",
			report.Overall, p.deps.Config.Quality.MinOverallForStorage))
		if p.deps.Metrics != nil {
			p.deps.Metrics.QualityGateFailures.WithLabelValues(result.Pipeline).Inc()
		}
		return false
	}
	result.QualityGate = GatePassed
	return true
}

// store bulk-creates one node per surviving row. Per-row failures are
// collected and never abort the stage.
func (p *TabularPipeline) store(ctx context.Context, result *TabularResult, kind kg.EntityKind, rows []map[string]string) {
	clock := result.startStage(p.deps.Metrics, "store")
	defer clock.done()

	if err := p.deps.Graph.EnsureSchema(ctx, kg.DefaultSchema()); err != nil {
		clock.fail(err)
		return
	}

	for i, row := range rows {
		node := kg.Node{
			ID:         rowNodeID(kind, row),
			Labels:     []string{string(kind)},
			Properties: rowProperties(row),
		}
		created, err := p.deps.Graph.CreateNode(ctx, node)
		if err != nil {
			clock.recordErr(apperrors.Wrapf(err, apperrors.ErrCodeBackendUnavailable, "row %d", i+1))
			continue
		}
		result.Stored++
		if created {
			result.EntitiesCreated++
			if p.deps.Metrics != nil {
				p.deps.Metrics.GraphNodesCreated.WithLabelValues(string(kind)).Inc()
			}
		}
	}
	clock.detail("stored", result.Stored)
}

// rowNodeID derives a deterministic natural key from the name column so
// re-ingesting the same file updates rather than duplicates.
func rowNodeID(kind kg.EntityKind, row map[string]string) string {
	name := strings.TrimSpace(row["name"])
	if name == "" {
		return kg.NewID()
	}
	slug := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	return strings.ToLower(string(kind)) + ":" + slug
}

// rowProperties copies non-empty cells, converting numeric and boolean values.
func rowProperties(row map[string]string) map[string]interface{} {
	props := make(map[string]interface{}, len(row))
	for key, value := range row {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			props[key] = f
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil {
			props[key] = b
			continue
		}
		props[key] = value
	}
	return props
}
