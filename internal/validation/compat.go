package validation

import (
	"fmt"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// forbiddenMaterials maps a hazard class to the container materials it must
// never be stored in.
var forbiddenMaterials = map[string][]string{
	"corrosive": {"aluminum", "carbon_steel"},
	"oxidizing": {"plastic"},
	"flammable": {"plastic"},
}

// CompatReport is the outcome of one substance/container check.
type CompatReport struct {
	Compatible bool    `json:"compatible"`
	Errors     []Issue `json:"errors"`
	Warnings   []Issue `json:"warnings"`
}

// CheckCompatibility decides whether a substance may be stored in a
// container.  The fixed incompatibility table yields errors; thermal and
// pressure concerns yield warnings only.
func CheckCompatibility(substance kg.HazardousSubstance, container kg.Container) *CompatReport {
	report := &CompatReport{Compatible: true}

	for _, material := range forbiddenMaterials[substance.HazardClass] {
		if container.Material == material {
			report.Compatible = false
			report.Errors = append(report.Errors, Issue{
				Field: "material", Severity: SeverityError,
				Code: apperrors.ErrCodeCompatibilityForbidden,
				Message: fmt.Sprintf("%s substances must not be stored in %s containers",
					substance.HazardClass, container.Material),
			})
		}
	}

	if substance.BoilingPoint != nil && container.TemperatureRating != nil &&
		*substance.BoilingPoint > *container.TemperatureRating {
		report.Warnings = append(report.Warnings, Issue{
			Field: "temperature_rating", Severity: SeverityWarning,
			Code: apperrors.ErrCodeRangeViolation,
			Message: fmt.Sprintf("substance boiling point %.1f exceeds container temperature rating %.1f",
				*substance.BoilingPoint, *container.TemperatureRating),
		})
	}
	if container.PressureRating != nil && *container.PressureRating < 1 {
		report.Warnings = append(report.Warnings, Issue{
			Field: "pressure_rating", Severity: SeverityWarning,
			Code:    apperrors.ErrCodeRangeViolation,
			Message: fmt.Sprintf("container pressure rating %.2f is below 1", *container.PressureRating),
		})
	}
	return report
}
