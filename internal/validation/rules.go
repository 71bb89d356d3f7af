// Package validation is the single authority for structural correctness of
// tabular batches and individual records, plus the fixed substance/container
// compatibility rules.
package validation

import (
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// FieldType declares how a column value is parsed.
type FieldType int

const (
	TypeString FieldType = iota
	TypeFloat
	TypeStringOrFloat
	TypeDate
)

// Bound is one end of a numeric range.
type Bound struct {
	Value     float64
	Exclusive bool
}

func incl(v float64) *Bound { return &Bound{Value: v} }
func excl(v float64) *Bound { return &Bound{Value: v, Exclusive: true} }

// FieldRule describes the admitted values of one column.
type FieldRule struct {
	Name       string
	Required   bool
	Type       FieldType
	Min, Max   *Bound
	Vocabulary []string
	// CAS and Formula trigger the dedicated format validators.
	CAS     bool
	Formula bool
}

// RulesFor returns the rule table for one entity kind, nil for unknown kinds.
func RulesFor(kind kg.EntityKind) []FieldRule {
	switch kind {
	case kg.KindSubstance:
		return []FieldRule{
			{Name: "name", Required: true, Type: TypeString},
			{Name: "hazard_class", Required: true, Type: TypeString, Vocabulary: kg.HazardClasses},
			{Name: "chemical_formula", Type: TypeString, Formula: true},
			{Name: "molecular_weight", Type: TypeFloat, Min: excl(0), Max: excl(10000)},
			{Name: "flash_point", Type: TypeStringOrFloat},
			{Name: "boiling_point", Type: TypeFloat, Min: incl(-273), Max: incl(5000)},
			{Name: "melting_point", Type: TypeFloat, Min: incl(-273), Max: incl(5000)},
			{Name: "density", Type: TypeFloat, Min: incl(0), Max: incl(100)},
			{Name: "cas_number", Type: TypeString, CAS: true},
			{Name: "description", Type: TypeString},
		}
	case kg.KindContainer:
		return []FieldRule{
			{Name: "name", Required: true, Type: TypeString},
			{Name: "material", Required: true, Type: TypeString, Vocabulary: kg.ContainerMaterials},
			{Name: "capacity", Type: TypeFloat, Min: incl(0), Max: incl(100000)},
			{Name: "unit", Type: TypeString},
			{Name: "pressure_rating", Type: TypeFloat, Min: incl(0), Max: incl(10000)},
			{Name: "temperature_rating", Type: TypeFloat, Min: incl(-200), Max: incl(1000)},
			{Name: "manufacturer", Type: TypeString},
			{Name: "model", Type: TypeString},
		}
	case kg.KindSafetyTest:
		return []FieldRule{
			{Name: "name", Required: true, Type: TypeString},
			{Name: "test_type", Required: true, Type: TypeString, Vocabulary: kg.TestTypes},
			{Name: "standard", Type: TypeString},
			{Name: "method", Type: TypeString},
			{Name: "duration", Type: TypeFloat, Min: incl(0), Max: incl(10000)},
			{Name: "temperature", Type: TypeFloat, Min: incl(-200), Max: incl(1000)},
			{Name: "pressure", Type: TypeFloat, Min: incl(0), Max: incl(10000)},
			{Name: "result", Type: TypeString},
		}
	case kg.KindAssessment:
		return []FieldRule{
			{Name: "title", Required: true, Type: TypeString},
			{Name: "substance_id", Required: true, Type: TypeString},
			{Name: "risk_level", Required: true, Type: TypeString, Vocabulary: kg.RiskLevels},
			{Name: "hazards", Type: TypeString},
			{Name: "mitigation", Type: TypeString},
			{Name: "ppe", Type: TypeString},
			{Name: "storage_requirements", Type: TypeString},
			{Name: "emergency_procedures", Type: TypeString},
			{Name: "assessor", Type: TypeString},
			{Name: "date", Type: TypeDate},
		}
	case kg.KindLocation:
		return []FieldRule{
			{Name: "name", Required: true, Type: TypeString},
			{Name: "location_type", Required: true, Type: TypeString},
			{Name: "building", Type: TypeString},
			{Name: "floor", Type: TypeString},
			{Name: "room", Type: TypeString},
		}
	default:
		return nil
	}
}
