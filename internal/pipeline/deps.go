package pipeline

import (
	"context"
	"time"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/vector"
	"github.com/hazardsafe/hazardsafe-kg/internal/ingestion"
	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	"github.com/hazardsafe/hazardsafe-kg/internal/quality"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// GraphWriter is the slice of the graph store the pipelines mutate.
type GraphWriter interface {
	EnsureSchema(ctx context.Context, schema kg.GraphSchema) error
	CreateNode(ctx context.Context, node kg.Node) (bool, error)
	CreateEdge(ctx context.Context, edge kg.Edge) error
}

// Deps carries everything a pipeline needs. Pipelines are the only writers
// of the graph and vector stores.
type Deps struct {
	Config    *config.Config
	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
	Graph     GraphWriter
	Vector    vector.Store
	Embedder  vector.Embedder
	Quality   *quality.Engine
	Extractor *ingestion.Extractor
	Entities  *nlp.EntityExtractor
	Relations *nlp.RelationExtractor
}

func (d *Deps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	return d.Logger
}

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Name     string         `json:"name"`
	Success  bool           `json:"success"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Summary aggregates the run-level outcome shared by both pipelines.
type Summary struct {
	RunID                string        `json:"run_id"`
	Pipeline             string        `json:"pipeline"`
	OverallSuccess       bool          `json:"overall_success"`
	State                RunState      `json:"state"`
	Stages               []StageResult `json:"stages"`
	Errors               []string      `json:"errors,omitempty"`
	EntitiesCreated      int           `json:"entities_created"`
	RelationshipsCreated int           `json:"relationships_created"`
	QualityScore         float64       `json:"quality_score"`
	StartedAt            time.Time     `json:"started_at"`
	FinishedAt           time.Time     `json:"finished_at"`
}

// stageClock times one stage and appends its result to the summary.
type stageClock struct {
	summary  *Summary
	metrics  *prometheus.AppMetrics
	pipeline string
	stage    StageResult
	started  time.Time
}

func (s *Summary) startStage(metrics *prometheus.AppMetrics, name string) *stageClock {
	return &stageClock{
		summary:  s,
		metrics:  metrics,
		pipeline: s.Pipeline,
		stage:    StageResult{Name: name, Success: true},
		started:  time.Now(),
	}
}

func (c *stageClock) detail(key string, value any) {
	if c.stage.Details == nil {
		c.stage.Details = map[string]any{}
	}
	c.stage.Details[key] = value
}

func (c *stageClock) warn(message string) {
	c.stage.Warnings = append(c.stage.Warnings, message)
}

// fail records a stage-level error; the stage and the run count as failed.
func (c *stageClock) fail(err error) {
	c.stage.Success = false
	c.stage.Errors = append(c.stage.Errors, err.Error())
	c.summary.Errors = append(c.summary.Errors, c.stage.Name+": "+err.Error())
}

// recordErr collects a record-level error without failing the stage.
func (c *stageClock) recordErr(err error) {
	c.stage.Errors = append(c.stage.Errors, err.Error())
}

func (c *stageClock) done() {
	c.stage.Duration = time.Since(c.started)
	c.summary.Stages = append(c.summary.Stages, c.stage)
	if c.metrics != nil {
		c.metrics.PipelineStageDuration.
			WithLabelValues(c.pipeline, c.stage.Name).
			Observe(c.stage.Duration.Seconds())
	}
}

func (s *Summary) finish(metrics *prometheus.AppMetrics, run *Run) {
	s.FinishedAt = time.Now()
	s.State = run.State()
	if metrics != nil {
		outcome := "failure"
		if s.OverallSuccess {
			outcome = "success"
		}
		metrics.PipelineRunsTotal.WithLabelValues(s.Pipeline, outcome).Inc()
	}
}
