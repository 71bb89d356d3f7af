package quality

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

func testEngine() *Engine {
	return NewEngine(config.QualityConfig{
		CompletenessThreshold: 0.8,
		AccuracyThreshold:     0.9,
		ConsistencyThreshold:  0.85,
		TimelinessThreshold:   0.95,
		UniquenessThreshold:   0.9,
		MinOverallForStorage:  0.7,
	}, nil, nil)
}

func TestAssessCountsAssessmentsByGrade(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(
		prometheus.CollectorConfig{Namespace: "hazkg"}, logging.NewNopLogger())
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	e := NewEngine(config.QualityConfig{MinOverallForStorage: 0.7}, nil, metrics)
	e.Assess(kg.KindSubstance,
		[]string{"name", "hazard_class"},
		[]map[string]string{{"name": "Acetone", "hazard_class": "flammable"}})

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "hazkg_quality_assessments_total")
	assert.Contains(t, body, `kind="HazardousSubstance"`)
	assert.Contains(t, body, `grade="A"`)
}

func TestAssessPerfectBatch(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.KindSubstance,
		[]string{"name", "hazard_class", "molecular_weight"},
		[]map[string]string{
			{"name": "Sulfuric Acid", "hazard_class": "corrosive", "molecular_weight": "98.08"},
			{"name": "Acetone", "hazard_class": "flammable", "molecular_weight": "58.08"},
		})

	assert.Equal(t, 1.0, report.Dimensions.Completeness)
	assert.Equal(t, 1.0, report.Dimensions.Accuracy)
	assert.Equal(t, 1.0, report.Dimensions.Uniqueness)
	assert.Equal(t, defaultTimeliness, report.Dimensions.Timeliness)
	assert.GreaterOrEqual(t, report.Overall, 0.7)
	assert.Empty(t, report.Recommendations[1:], "timeliness default sits under its threshold")
}

func TestAssessWeightedOverall(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.KindSubstance,
		[]string{"name", "hazard_class"},
		[]map[string]string{{"name": "Sulfuric Acid", "hazard_class": "corrosive"}})

	d := report.Dimensions
	want := 0.25*d.Completeness + 0.30*d.Accuracy + 0.20*d.Consistency +
		0.15*d.Timeliness + 0.10*d.Uniqueness
	assert.InDelta(t, want, report.Overall, 1e-9)
}

func TestAssessCompleteness(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.KindSubstance,
		[]string{"name", "hazard_class"},
		[]map[string]string{
			{"name": "Sulfuric Acid", "hazard_class": "corrosive"},
			{"name": "Acetone", "hazard_class": ""},
		})

	// 3 of 4 cells filled
	assert.InDelta(t, 0.75, report.Dimensions.Completeness, 1e-9)
	assert.InDelta(t, 1.0, report.ColumnCompleteness["name"], 1e-9)
	assert.InDelta(t, 0.5, report.ColumnCompleteness["hazard_class"], 1e-9)
}

func TestAssessAccuracyAgainstRules(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.KindSubstance,
		[]string{"name", "molecular_weight"},
		[]map[string]string{
			{"name": "Sulfuric Acid", "molecular_weight": "98.08"},
			{"name": "Broken", "molecular_weight": "not-a-number"},
		})

	// 3 of 4 non-empty cells accurate
	assert.InDelta(t, 0.75, report.Dimensions.Accuracy, 1e-9)
}

func TestAssessAccuracyFallbackWithoutRules(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.EntityKind(""),
		[]string{"subject", "value"},
		[]map[string]string{
			{"subject": "hs:acid", "value": "98.08"},
			{"subject": "hs:base", "value": "12x9"}, // numeric-looking, does not parse
		})

	assert.InDelta(t, 0.75, report.Dimensions.Accuracy, 1e-9)
}

func TestAssessConsistencyMixedTypes(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.EntityKind(""),
		[]string{"reading"},
		[]map[string]string{
			{"reading": "ten"},
			{"reading": "12"},
			{"reading": "13"},
			{"reading": "14"},
		})

	// First value is a string, 1 of 4 matches. The three numerics carry no
	// outliers, so the numeric half scores 1.
	assert.InDelta(t, (0.25+1.0)/2, report.Dimensions.Consistency, 1e-9)
}

func TestAssessConsistencyOutliers(t *testing.T) {
	e := testEngine()
	rows := make([]map[string]string, 0, 12)
	for i := 0; i < 11; i++ {
		rows = append(rows, map[string]string{"mass": fmt.Sprintf("%d", 100+i)})
	}
	rows = append(rows, map[string]string{"mass": "100000"})
	report := e.Assess(kg.EntityKind(""), []string{"mass"}, rows)
	assert.Less(t, report.Dimensions.Consistency, 1.0)
}

func TestAssessTimeliness(t *testing.T) {
	e := testEngine()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	report := e.Assess(kg.EntityKind(""),
		[]string{"name", "created_at"},
		[]map[string]string{
			{"name": "fresh", "created_at": now.Add(-time.Hour).Format(time.RFC3339)},
			{"name": "stale", "created_at": now.Add(-48 * time.Hour).Format(time.RFC3339)},
		})
	assert.InDelta(t, 0.5, report.Dimensions.Timeliness, 1e-9)

	report = e.Assess(kg.EntityKind(""),
		[]string{"name"},
		[]map[string]string{{"name": "x"}})
	assert.InDelta(t, defaultTimeliness, report.Dimensions.Timeliness, 1e-9)
}

func TestAssessUniqueness(t *testing.T) {
	e := testEngine()
	row := map[string]string{"name": "Sulfuric Acid", "hazard_class": "corrosive"}
	report := e.Assess(kg.KindSubstance,
		[]string{"name", "hazard_class"},
		[]map[string]string{row, row,
			{"name": "Acetone", "hazard_class": "flammable"}})

	assert.InDelta(t, 2.0/3.0, report.Dimensions.Uniqueness, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.ColumnDistinct["name"], 1e-9)
}

func TestGrades(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{0.95, "A"}, {0.9, "A"}, {0.85, "B"}, {0.8, "B"},
		{0.75, "C"}, {0.65, "D"}, {0.55, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, gradeFor(tc.score), "score %v", tc.score)
	}
}

func TestRecommendationsNameShortfalls(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.KindSubstance,
		[]string{"name", "hazard_class"},
		[]map[string]string{
			{"name": "Sulfuric Acid", "hazard_class": "spicy"},
			{"name": "Sulfuric Acid", "hazard_class": "spicy"},
			{"name": "", "hazard_class": ""},
		})

	require.NotEmpty(t, report.Recommendations)
	joined := fmt.Sprint(report.Recommendations)
	assert.Contains(t, joined, "completeness")
	assert.Contains(t, joined, "accuracy")
	assert.Contains(t, joined, "uniqueness")
}

func TestEmptyBatchScoresPerfect(t *testing.T) {
	e := testEngine()
	report := e.Assess(kg.KindSubstance, nil, nil)
	assert.Equal(t, 1.0, report.Overall)
	assert.Equal(t, "A", report.Grade)
}

func TestHistoryAppendOnly(t *testing.T) {
	e := testEngine()
	assert.Empty(t, e.History())

	e.Assess(kg.KindSubstance, []string{"name", "hazard_class"},
		[]map[string]string{{"name": "A", "hazard_class": "toxic"}})
	e.Assess(kg.KindContainer, []string{"name", "material"},
		[]map[string]string{{"name": "Drum", "material": "glass"}})

	history := e.History()
	require.Len(t, history, 2)
	assert.Equal(t, kg.KindSubstance, history[0].Kind)
	assert.Equal(t, kg.KindContainer, history[1].Kind)

	history[0].Overall = -1
	assert.NotEqual(t, -1.0, e.History()[0].Overall, "History returns a copy")
}
