// Package kg defines the knowledge-graph data model for HazardSafe-KG: the
// five entity kinds, their controlled vocabularies, the typed relationship
// vocabulary, and the graph schema consumed by the storage adapter.
package kg

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies one of the node kinds stored in the property graph.
type EntityKind string

const (
	KindSubstance  EntityKind = "HazardousSubstance"
	KindContainer  EntityKind = "Container"
	KindSafetyTest EntityKind = "SafetyTest"
	KindAssessment EntityKind = "RiskAssessment"
	KindLocation   EntityKind = "Location"
)

// EntityKinds lists every node label in a fixed order.
func EntityKinds() []EntityKind {
	return []EntityKind{KindSubstance, KindContainer, KindSafetyTest, KindAssessment, KindLocation}
}

// RelationType identifies a typed edge in the property graph.
type RelationType string

const (
	RelHasHazardClass   RelationType = "HAS_HAZARD_CLASS"
	RelStoredIn         RelationType = "STORED_IN"
	RelTestedWith       RelationType = "TESTED_WITH"
	RelAssessedFor      RelationType = "ASSESSED_FOR"
	RelCompatibleWith   RelationType = "COMPATIBLE_WITH"
	RelIncompatibleWith RelationType = "INCOMPATIBLE_WITH"
	RelRequiresPPE      RelationType = "REQUIRES_PPE"
	RelLocatedAt        RelationType = "LOCATED_AT"
	RelManufacturedBy   RelationType = "MANUFACTURED_BY"
	RelContains         RelationType = "CONTAINS"
	RelSimilarTo        RelationType = "SIMILAR_TO"
	RelReplaces         RelationType = "REPLACES"
)

// RelationTypes lists every admitted edge type.
func RelationTypes() []RelationType {
	return []RelationType{
		RelHasHazardClass, RelStoredIn, RelTestedWith, RelAssessedFor,
		RelCompatibleWith, RelIncompatibleWith, RelRequiresPPE, RelLocatedAt,
		RelManufacturedBy, RelContains, RelSimilarTo, RelReplaces,
	}
}

// Controlled vocabularies.  These are the only admitted values for their
// corresponding enumerated fields; the validation engine rejects everything
// else with a schema violation.
var (
	HazardClasses = []string{
		"flammable", "toxic", "corrosive", "explosive", "oxidizing",
		"environmental", "health", "irritant", "sensitizer", "carcinogen",
		"mutagen", "reproductive_toxin",
	}

	ContainerMaterials = []string{
		"stainless_steel", "glass", "plastic", "aluminum", "carbon_steel",
		"titanium", "ceramic",
	}

	TestTypes = []string{
		"pressure_test", "leak_test", "material_compatibility",
		"temperature_test", "corrosion_test", "impact_test",
	}

	RiskLevels = []string{"low", "medium", "high", "critical"}
)

// InVocabulary reports whether value appears in vocab.
func InVocabulary(value string, vocab []string) bool {
	for _, v := range vocab {
		if v == value {
			return true
		}
	}
	return false
}

// HazardousSubstance is a chemical substance node.  Optional numeric fields
// use pointers so that "absent" and "zero" stay distinguishable.
type HazardousSubstance struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ChemicalFormula string   `json:"chemical_formula,omitempty"`
	MolecularWeight *float64 `json:"molecular_weight,omitempty"`
	HazardClass     string   `json:"hazard_class,omitempty"`
	FlashPoint      string   `json:"flash_point,omitempty"`
	BoilingPoint    *float64 `json:"boiling_point,omitempty"`
	MeltingPoint    *float64 `json:"melting_point,omitempty"`
	Density         *float64 `json:"density,omitempty"`
	CASNumber       string   `json:"cas_number,omitempty"`
	Description     string   `json:"description,omitempty"`
	SourceDocument  string   `json:"source_document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Container is a storage vessel node.
type Container struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Material          string   `json:"material"`
	Capacity          *float64 `json:"capacity,omitempty"`
	Unit              string   `json:"unit,omitempty"`
	PressureRating    *float64 `json:"pressure_rating,omitempty"`
	TemperatureRating *float64 `json:"temperature_rating,omitempty"`
	Manufacturer      string   `json:"manufacturer,omitempty"`
	Model             string   `json:"model,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SafetyTest is a test-procedure node.
type SafetyTest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	TestType    string   `json:"test_type"`
	Standard    string   `json:"standard,omitempty"`
	Method      string   `json:"method,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
	Result      string   `json:"result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RiskAssessment is an assessment node referencing an existing substance.
type RiskAssessment struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	SubstanceID         string `json:"substance_id"`
	RiskLevel           string `json:"risk_level"`
	Hazards             string `json:"hazards,omitempty"`
	Mitigation          string `json:"mitigation,omitempty"`
	PPE                 string `json:"ppe,omitempty"`
	StorageRequirements string `json:"storage_requirements,omitempty"`
	EmergencyProcedures string `json:"emergency_procedures,omitempty"`
	Assessor            string `json:"assessor,omitempty"`
	Date                string `json:"date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a physical storage location node.
type Location struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LocationType string `json:"location_type,omitempty"`
	Building     string `json:"building,omitempty"`
	Floor        string `json:"floor,omitempty"`
	Room         string `json:"room,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Node is the label-agnostic form consumed by the graph store adapter: one
// label per entity kind plus a flat property bag.
type Node struct {
	ID         string                 `json:"id"`
	Labels     []string               `json:"labels"`
	Properties map[string]interface{} `json:"properties"`
}

// Edge is a typed relationship between two stored nodes.  The edge itself
// carries created-at plus any relation-specific properties (quantity,
// date_stored, result, notes).
type Edge struct {
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	Type       RelationType           `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// NewID returns a fresh entity identifier.  Used when the input supplies no
// natural key (blank RDF nodes, extracted entities without a CAS number).
func NewID() string {
	return uuid.NewString()
}

// GraphSchema describes the constraints and indexes the adapter bootstraps.
type GraphSchema struct {
	// UniqueID lists the labels that receive a unique-id constraint.
	UniqueID []EntityKind
	// Indexes maps a label to the properties receiving a lookup index.
	Indexes map[EntityKind][]string
}

// DefaultSchema returns the schema the pipelines rely on: a unique-id
// constraint per label and indexes on the searchable fields.
func DefaultSchema() GraphSchema {
	return GraphSchema{
		UniqueID: EntityKinds(),
		Indexes: map[EntityKind][]string{
			KindSubstance:  {"name", "cas_number", "hazard_class"},
			KindContainer:  {"name", "material"},
			KindSafetyTest: {"name", "test_type"},
			KindAssessment: {"title", "risk_level"},
			KindLocation:   {"name"},
		},
	}
}
