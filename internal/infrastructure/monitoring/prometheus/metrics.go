package prometheus

// AppMetrics holds every metric emitted by the pipelines and store adapters.
type AppMetrics struct {
	// Pipelines
	PipelineRunsTotal     CounterVec   // pipeline, outcome
	PipelineStageDuration HistogramVec // pipeline, stage
	PipelineStageErrors   CounterVec   // pipeline, stage, code

	// Validation / quality
	ValidationErrorsTotal   CounterVec // kind, code
	QualityScore            GaugeVec   // pipeline
	QualityGateFailures     CounterVec // pipeline
	QualityAssessmentsTotal CounterVec // kind, grade

	// Graph store
	GraphNodesCreated  CounterVec   // label
	GraphEdgesCreated  CounterVec   // type
	GraphQueryDuration HistogramVec // operation

	// Vector store
	ChunksUpserted       CounterVec   // backend
	VectorUpsertRetries  CounterVec   // backend
	VectorSearchDuration HistogramVec // backend

	// Ontology store
	TriplesLoaded CounterVec // format
	FilesLoaded   CounterVec // format, status
}

// Default buckets.
var (
	DefaultStageDurationBuckets = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600}
	DefaultQueryDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics on collector and returns the set.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.PipelineRunsTotal = collector.RegisterCounter("pipeline_runs_total", "Pipeline runs by outcome", "pipeline", "outcome")
	m.PipelineStageDuration = collector.RegisterHistogram("pipeline_stage_duration_seconds", "Per-stage duration", DefaultStageDurationBuckets, "pipeline", "stage")
	m.PipelineStageErrors = collector.RegisterCounter("pipeline_stage_errors_total", "Record-level errors per stage", "pipeline", "stage", "code")

	m.ValidationErrorsTotal = collector.RegisterCounter("validation_errors_total", "Validation errors by entity kind", "kind", "code")
	m.QualityScore = collector.RegisterGauge("quality_overall_score", "Last computed overall quality score", "pipeline")
	m.QualityGateFailures = collector.RegisterCounter("quality_gate_failures_total", "Runs refused storage by the quality gate", "pipeline")
	m.QualityAssessmentsTotal = collector.RegisterCounter("quality_assessments_total", "Quality assessments by entity kind and grade", "kind", "grade")

	m.GraphNodesCreated = collector.RegisterCounter("graph_nodes_created_total", "Nodes created", "label")
	m.GraphEdgesCreated = collector.RegisterCounter("graph_edges_created_total", "Edges created", "type")
	m.GraphQueryDuration = collector.RegisterHistogram("graph_query_duration_seconds", "Graph operation duration", DefaultQueryDurationBuckets, "operation")

	m.ChunksUpserted = collector.RegisterCounter("vector_chunks_upserted_total", "Chunks upserted", "backend")
	m.VectorUpsertRetries = collector.RegisterCounter("vector_upsert_retries_total", "Upsert retries after retryable errors", "backend")
	m.VectorSearchDuration = collector.RegisterHistogram("vector_search_duration_seconds", "Similarity search duration", DefaultQueryDurationBuckets, "backend")

	m.TriplesLoaded = collector.RegisterCounter("ontology_triples_loaded_total", "Triples added by loader", "format")
	m.FilesLoaded = collector.RegisterCounter("ontology_files_loaded_total", "Ontology files processed", "format", "status")

	return m
}
