package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// Severity distinguishes blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.  Row is 1-based over the data rows; 0
// marks batch-level findings such as a missing column.
type Issue struct {
	Row      int                 `json:"row"`
	Field    string              `json:"field,omitempty"`
	Severity Severity            `json:"severity"`
	Code     apperrors.ErrorCode `json:"code"`
	Message  string              `json:"message"`
}

// BatchReport is the outcome of validating one tabular batch.
type BatchReport struct {
	Valid     bool    `json:"valid"`
	Errors    []Issue `json:"errors"`
	Warnings  []Issue `json:"warnings"`
	TotalRows int     `json:"total_rows"`
	ValidRows int     `json:"valid_rows"`
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02", "02.01.2006"}

// ValidateBatch checks a tabular batch against the rule table for kind.  The
// batch is valid iff no errors are reported; warnings never block.  Missing
// required columns each yield one error and the remaining checks still run on
// the columns that are present.
func ValidateBatch(kind kg.EntityKind, columns []string, rows []map[string]string) (*BatchReport, error) {
	rules := RulesFor(kind)
	if rules == nil {
		return nil, apperrors.Newf(apperrors.ErrCodeSchemaViolation, "unknown entity kind %q", kind)
	}

	report := &BatchReport{TotalRows: len(rows)}
	present := map[string]bool{}
	for _, c := range columns {
		present[c] = true
	}

	for _, rule := range rules {
		if rule.Required && !present[rule.Name] {
			report.Errors = append(report.Errors, Issue{
				Field:    rule.Name,
				Severity: SeverityError,
				Code:     apperrors.ErrCodeSchemaViolation,
				Message:  fmt.Sprintf("required column %q is missing", rule.Name),
			})
		}
	}

	for i, row := range rows {
		rowNum := i + 1
		rowValid := true
		for _, rule := range rules {
			if !present[rule.Name] {
				continue
			}
			issues := CheckValue(rule, rowNum, row[rule.Name])
			for _, issue := range issues {
				if issue.Severity == SeverityError {
					rowValid = false
					report.Errors = append(report.Errors, issue)
				} else {
					report.Warnings = append(report.Warnings, issue)
				}
			}
		}
		if rowValid {
			report.ValidRows++
		}
	}

	if present["name"] {
		report.Warnings = append(report.Warnings, duplicateNameWarnings(rows)...)
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

// CheckValue applies one field rule to a single value. Row is carried into
// the returned issues unchanged.
func CheckValue(rule FieldRule, row int, value string) []Issue {
	value = strings.TrimSpace(value)
	if value == "" {
		if rule.Required {
			return []Issue{{
				Row: row, Field: rule.Name, Severity: SeverityError,
				Code:    apperrors.ErrCodeSchemaViolation,
				Message: fmt.Sprintf("required field %q is empty", rule.Name),
			}}
		}
		return nil
	}

	var issues []Issue
	switch rule.Type {
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return []Issue{{
				Row: row, Field: rule.Name, Severity: SeverityError,
				Code:    apperrors.ErrCodeSchemaViolation,
				Message: fmt.Sprintf("%q is not a number", value),
			}}
		}
		if issue := checkRange(rule, row, f); issue != nil {
			issues = append(issues, *issue)
		}
	case TypeStringOrFloat:
		// any value is admitted; numeric range applies when it parses
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			if issue := checkRange(rule, row, f); issue != nil {
				issues = append(issues, *issue)
			}
		}
	case TypeDate:
		if !parseableDate(value) {
			issues = append(issues, Issue{
				Row: row, Field: rule.Name, Severity: SeverityError,
				Code:    apperrors.ErrCodeSchemaViolation,
				Message: fmt.Sprintf("%q is not a recognizable date", value),
			})
		}
	}

	if len(rule.Vocabulary) > 0 && !kg.InVocabulary(value, rule.Vocabulary) {
		issues = append(issues, Issue{
			Row: row, Field: rule.Name, Severity: SeverityError,
			Code:    apperrors.ErrCodeSchemaViolation,
			Message: fmt.Sprintf("%q is not in the %s vocabulary", value, rule.Name),
		})
	}
	if rule.CAS {
		if err := ValidateCAS(value); err != nil {
			issues = append(issues, Issue{
				Row: row, Field: rule.Name, Severity: SeverityError,
				Code:    apperrors.ErrCodeCASInvalid,
				Message: err.Error(),
			})
		}
	}
	if rule.Formula {
		if err := ValidateFormula(value); err != nil {
			issues = append(issues, Issue{
				Row: row, Field: rule.Name, Severity: SeverityError,
				Code:    apperrors.ErrCodeFormulaInvalid,
				Message: err.Error(),
			})
		}
	}
	return issues
}

func checkRange(rule FieldRule, row int, f float64) *Issue {
	outOfRange := false
	if rule.Min != nil {
		if rule.Min.Exclusive && f <= rule.Min.Value {
			outOfRange = true
		}
		if !rule.Min.Exclusive && f < rule.Min.Value {
			outOfRange = true
		}
	}
	if rule.Max != nil {
		if rule.Max.Exclusive && f >= rule.Max.Value {
			outOfRange = true
		}
		if !rule.Max.Exclusive && f > rule.Max.Value {
			outOfRange = true
		}
	}
	if !outOfRange {
		return nil
	}
	return &Issue{
		Row: row, Field: rule.Name, Severity: SeverityError,
		Code:    apperrors.ErrCodeRangeViolation,
		Message: fmt.Sprintf("%s value %g is out of range", rule.Name, f),
	}
}

func parseableDate(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func duplicateNameWarnings(rows []map[string]string) []Issue {
	seen := map[string]int{} // lowercased name -> first row
	var out []Issue
	for i, row := range rows {
		name := strings.ToLower(strings.TrimSpace(row["name"]))
		if name == "" {
			continue
		}
		if first, dup := seen[name]; dup {
			out = append(out, Issue{
				Row: i + 1, Field: "name", Severity: SeverityWarning,
				Code:    apperrors.ErrCodeConflict,
				Message: fmt.Sprintf("duplicate name %q (first seen in row %d)", row["name"], first),
			})
			continue
		}
		seen[name] = i + 1
	}
	return out
}

// ValidateRecord applies the semantic safety rules to a single record:
// combinations that are individually legal but operationally risky.
func ValidateRecord(kind kg.EntityKind, record map[string]string) []Issue {
	var issues []Issue
	switch kind {
	case kg.KindSubstance:
		if fp, err := strconv.ParseFloat(strings.TrimSpace(record["flash_point"]), 64); err == nil && fp < 23 {
			issues = append(issues, Issue{
				Field: "flash_point", Severity: SeverityWarning,
				Code:    apperrors.ErrCodeRangeViolation,
				Message: "flash point below 23: highly flammable, review storage requirements",
			})
		}
		if record["hazard_class"] == "toxic" {
			if mw, err := strconv.ParseFloat(strings.TrimSpace(record["molecular_weight"]), 64); err == nil && mw < 100 {
				issues = append(issues, Issue{
					Field: "molecular_weight", Severity: SeverityWarning,
					Code:    apperrors.ErrCodeRangeViolation,
					Message: "low-molecular-weight toxic substance: elevated exposure risk",
				})
			}
		}
		if record["hazard_class"] == "corrosive" {
			issues = append(issues, Issue{
				Field: "hazard_class", Severity: SeverityWarning,
				Code:    apperrors.ErrCodeSchemaViolation,
				Message: "corrosive substance: appropriate PPE required for handling",
			})
		}
	case kg.KindContainer:
		if record["material"] == "plastic" {
			if pr, err := strconv.ParseFloat(strings.TrimSpace(record["pressure_rating"]), 64); err == nil && pr > 100 {
				issues = append(issues, Issue{
					Field: "pressure_rating", Severity: SeverityWarning,
					Code:    apperrors.ErrCodeRangeViolation,
					Message: "plastic container rated above 100: verify the rating",
				})
			}
		}
	case kg.KindAssessment:
		level := record["risk_level"]
		if (level == "high" || level == "critical") && strings.TrimSpace(record["emergency_procedures"]) == "" {
			issues = append(issues, Issue{
				Field: "emergency_procedures", Severity: SeverityError,
				Code:    apperrors.ErrCodeSchemaViolation,
				Message: fmt.Sprintf("%s-risk assessment requires emergency procedures", level),
			})
		}
		if level == "critical" && strings.TrimSpace(record["ppe"]) == "" {
			issues = append(issues, Issue{
				Field: "ppe", Severity: SeverityError,
				Code:    apperrors.ErrCodeSchemaViolation,
				Message: "critical-risk assessment requires PPE",
			})
		}
	}
	return issues
}
