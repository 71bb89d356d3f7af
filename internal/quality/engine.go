// Package quality scores tabular batches along five dimensions and derives
// the weighted overall score consumed by the pipeline quality gates.
package quality

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hazardsafe/hazardsafe-kg/internal/config"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/prometheus"
	"github.com/hazardsafe/hazardsafe-kg/internal/validation"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// Dimension weights. They sum to 1.
const (
	WeightCompleteness = 0.25
	WeightAccuracy     = 0.30
	WeightConsistency  = 0.20
	WeightTimeliness   = 0.15
	WeightUniqueness   = 0.10
)

// defaultTimeliness applies when the batch carries no timestamp column.
const defaultTimeliness = 0.8

// timelinessWindow is the age under which a record counts as fresh.
const timelinessWindow = 24 * time.Hour

var timestampColumns = []string{"updated_at", "created_at", "date", "timestamp"}

// Dimensions holds the five normalized scores.
type Dimensions struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
	Timeliness   float64 `json:"timeliness"`
	Uniqueness   float64 `json:"uniqueness"`
}

// Report is the outcome of one assessment.
type Report struct {
	Kind               kg.EntityKind      `json:"kind,omitempty"`
	Rows               int                `json:"rows"`
	Columns            int                `json:"columns"`
	Dimensions         Dimensions         `json:"dimensions"`
	ColumnCompleteness map[string]float64 `json:"column_completeness,omitempty"`
	ColumnDistinct     map[string]float64 `json:"column_distinct,omitempty"`
	Overall            float64            `json:"overall"`
	Grade              string             `json:"grade"`
	Recommendations    []string           `json:"recommendations,omitempty"`
	Timestamp          time.Time          `json:"timestamp"`
}

// Engine computes quality reports and keeps an append-only score history.
type Engine struct {
	cfg     config.QualityConfig
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	now     func() time.Time

	mu      sync.Mutex
	history []Report
}

// NewEngine builds an Engine. metrics may be nil.
func NewEngine(cfg config.QualityConfig, logger logging.Logger, metrics *prometheus.AppMetrics) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{cfg: cfg, logger: logger, metrics: metrics, now: time.Now}
}

// Assess scores one tabular batch. When kind names a known entity kind, the
// accuracy dimension uses its rule table; otherwise accuracy falls back to
// format sanity. An empty batch scores 1.0 on every dimension.
func (e *Engine) Assess(kind kg.EntityKind, columns []string, rows []map[string]string) *Report {
	report := &Report{
		Kind:      kind,
		Rows:      len(rows),
		Columns:   len(columns),
		Timestamp: e.now(),
	}

	if len(rows) == 0 || len(columns) == 0 {
		report.Dimensions = Dimensions{1, 1, 1, 1, 1}
		report.Overall = 1
		report.Grade = gradeFor(1)
		e.record(*report)
		return report
	}

	report.Dimensions.Completeness, report.ColumnCompleteness = completeness(columns, rows)
	report.Dimensions.Accuracy = e.accuracy(kind, columns, rows)
	report.Dimensions.Consistency = consistency(columns, rows)
	report.Dimensions.Timeliness = e.timeliness(columns, rows)
	report.Dimensions.Uniqueness, report.ColumnDistinct = uniqueness(columns, rows)

	d := report.Dimensions
	report.Overall = WeightCompleteness*d.Completeness +
		WeightAccuracy*d.Accuracy +
		WeightConsistency*d.Consistency +
		WeightTimeliness*d.Timeliness +
		WeightUniqueness*d.Uniqueness
	report.Grade = gradeFor(report.Overall)
	report.Recommendations = e.recommendations(d)

	e.logger.Debug("quality assessed",
		logging.String("kind", string(kind)),
		logging.Int("rows", report.Rows),
		logging.Any("overall", report.Overall),
		logging.String("grade", report.Grade))

	e.record(*report)
	return report
}

// History returns a copy of all reports computed so far, oldest first.
func (e *Engine) History() []Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Report, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) record(r Report) {
	if e.metrics != nil {
		e.metrics.QualityAssessmentsTotal.WithLabelValues(string(r.Kind), r.Grade).Inc()
	}
	e.mu.Lock()
	e.history = append(e.history, r)
	e.mu.Unlock()
}

func gradeFor(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.8:
		return "B"
	case score >= 0.7:
		return "C"
	case score >= 0.6:
		return "D"
	default:
		return "F"
	}
}

func (e *Engine) recommendations(d Dimensions) []string {
	var out []string
	if d.Completeness < e.cfg.CompletenessThreshold {
		out = append(out, fmt.Sprintf("completeness %.2f below threshold %.2f: fill missing cells or drop sparse columns",
			d.Completeness, e.cfg.CompletenessThreshold))
	}
	if d.Accuracy < e.cfg.AccuracyThreshold {
		out = append(out, fmt.Sprintf("accuracy %.2f below threshold %.2f: fix values that fail type or range checks",
			d.Accuracy, e.cfg.AccuracyThreshold))
	}
	if d.Consistency < e.cfg.ConsistencyThreshold {
		out = append(out, fmt.Sprintf("consistency %.2f below threshold %.2f: normalize mixed-type columns and review outliers",
			d.Consistency, e.cfg.ConsistencyThreshold))
	}
	if d.Timeliness < e.cfg.TimelinessThreshold {
		out = append(out, fmt.Sprintf("timeliness %.2f below threshold %.2f: refresh stale records",
			d.Timeliness, e.cfg.TimelinessThreshold))
	}
	if d.Uniqueness < e.cfg.UniquenessThreshold {
		out = append(out, fmt.Sprintf("uniqueness %.2f below threshold %.2f: deduplicate repeated rows",
			d.Uniqueness, e.cfg.UniquenessThreshold))
	}
	return out
}

func completeness(columns []string, rows []map[string]string) (float64, map[string]float64) {
	perColumn := make(map[string]float64, len(columns))
	total := 0
	filled := 0
	for _, col := range columns {
		colFilled := 0
		for _, row := range rows {
			total++
			if strings.TrimSpace(row[col]) != "" {
				filled++
				colFilled++
			}
		}
		perColumn[col] = float64(colFilled) / float64(len(rows))
	}
	return float64(filled) / float64(total), perColumn
}

// accuracy is the share of non-empty cells that satisfy their declared type
// and range. Columns without a rule fall back to a format-sanity check.
func (e *Engine) accuracy(kind kg.EntityKind, columns []string, rows []map[string]string) float64 {
	ruleByName := map[string]validation.FieldRule{}
	for _, rule := range validation.RulesFor(kind) {
		ruleByName[rule.Name] = rule
	}

	checked := 0
	accurate := 0
	for _, col := range columns {
		rule, hasRule := ruleByName[col]
		for _, row := range rows {
			value := strings.TrimSpace(row[col])
			if value == "" {
				continue
			}
			checked++
			if hasRule {
				if len(validation.CheckValue(rule, 0, value)) == 0 {
					accurate++
				}
			} else if saneValue(value) {
				accurate++
			}
		}
	}
	if checked == 0 {
		return 1
	}
	return float64(accurate) / float64(checked)
}

// saneValue is the reference-free fallback: numeric-looking values must parse,
// anything else passes as long as it is printable.
func saneValue(value string) bool {
	if looksNumeric(value) {
		_, err := strconv.ParseFloat(value, 64)
		return err == nil
	}
	for _, r := range value {
		if r < ' ' && r != '\t' {
			return false
		}
	}
	return true
}

func looksNumeric(value string) bool {
	if value == "" {
		return false
	}
	r := rune(value[0])
	if r == '-' || r == '+' {
		if len(value) == 1 {
			return false
		}
		r = rune(value[1])
	}
	return r >= '0' && r <= '9'
}

// consistency averages, per column, the share of values whose runtime type
// matches the first non-null value, and for numeric columns the share inside
// mean plus or minus three standard deviations.
func consistency(columns []string, rows []map[string]string) float64 {
	var sum float64
	scored := 0
	for _, col := range columns {
		values := nonEmpty(col, rows)
		if len(values) == 0 {
			continue
		}
		scored++
		sum += columnConsistency(values)
	}
	if scored == 0 {
		return 1
	}
	return sum / float64(scored)
}

func columnConsistency(values []string) float64 {
	firstNumeric := isNumber(values[0])
	matching := 0
	var nums []float64
	for _, v := range values {
		if isNumber(v) == firstNumeric {
			matching++
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			nums = append(nums, f)
		}
	}
	typeRate := float64(matching) / float64(len(values))
	if len(nums) < 2 {
		return typeRate
	}
	return (typeRate + outlierFreeRate(nums)) / 2
}

func outlierFreeRate(nums []float64) float64 {
	var sum float64
	for _, f := range nums {
		sum += f
	}
	mean := sum / float64(len(nums))
	var variance float64
	for _, f := range nums {
		variance += (f - mean) * (f - mean)
	}
	sigma := math.Sqrt(variance / float64(len(nums)))
	if sigma == 0 {
		return 1
	}
	inside := 0
	for _, f := range nums {
		if math.Abs(f-mean) <= 3*sigma {
			inside++
		}
	}
	return float64(inside) / float64(len(nums))
}

// timeliness is the share of timestamped records at most 24 hours old. With
// no timestamp column the dimension defaults to 0.8.
func (e *Engine) timeliness(columns []string, rows []map[string]string) float64 {
	col := ""
	for _, candidate := range timestampColumns {
		for _, c := range columns {
			if c == candidate {
				col = c
				break
			}
		}
		if col != "" {
			break
		}
	}
	if col == "" {
		return defaultTimeliness
	}

	now := e.now()
	stamped := 0
	fresh := 0
	for _, row := range rows {
		ts, ok := parseTimestamp(strings.TrimSpace(row[col]))
		if !ok {
			continue
		}
		stamped++
		if now.Sub(ts) <= timelinessWindow {
			fresh++
		}
	}
	if stamped == 0 {
		return defaultTimeliness
	}
	return float64(fresh) / float64(stamped)
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func uniqueness(columns []string, rows []map[string]string) (float64, map[string]float64) {
	sortedCols := append([]string(nil), columns...)
	sort.Strings(sortedCols)

	seen := map[string]bool{}
	for _, row := range rows {
		var b strings.Builder
		for _, col := range sortedCols {
			b.WriteString(row[col])
			b.WriteByte('\x1f')
		}
		seen[b.String()] = true
	}

	perColumn := make(map[string]float64, len(columns))
	for _, col := range columns {
		values := nonEmpty(col, rows)
		if len(values) == 0 {
			perColumn[col] = 1
			continue
		}
		distinct := map[string]bool{}
		for _, v := range values {
			distinct[v] = true
		}
		perColumn[col] = float64(len(distinct)) / float64(len(values))
	}
	return float64(len(seen)) / float64(len(rows)), perColumn
}

func nonEmpty(col string, rows []map[string]string) []string {
	var out []string
	for _, row := range rows {
		if v := strings.TrimSpace(row[col]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isNumber(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}
