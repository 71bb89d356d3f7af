package ontology

import (
	"fmt"
	"strconv"
)

// PropertyShape is one property constraint of a node shape.
type PropertyShape struct {
	Path     string
	MinCount int // -1 when unset
	MaxCount int // -1 when unset
	Datatype string
	In       []string
	Message  string
}

// NodeShape is a SHACL-style shape: which properties a node of the target
// class must carry and their admitted value spaces.
type NodeShape struct {
	ID          Term
	TargetClass string
	Properties  []PropertyShape
}

// Violation is one shape-validation finding.  Violations are returned, never
// raised.
type Violation struct {
	FocusNode string `json:"focus_node"`
	Path      string `json:"path"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// ValidationReport is the outcome of validating a data graph against a
// shapes graph.
type ValidationReport struct {
	Conforms   bool        `json:"conforms"`
	Violations []Violation `json:"violations"`
}

// ExtractShapes pulls every sh:NodeShape with its property constraints out of
// the store.
func (s *Store) ExtractShapes() []NodeShape {
	var shapes []NodeShape
	for _, shapeSubj := range s.Subjects(Pattern{Predicate: P(RDFType), Object: OIRI(SHNodeShape)}) {
		shape := NodeShape{ID: shapeSubj}
		if tc, ok := s.FirstObject(shapeSubj, SHTargetClass); ok {
			shape.TargetClass = tc.Value
		}
		for _, propNode := range s.Objects(shapeSubj, SHProperty) {
			ps := PropertyShape{MinCount: -1, MaxCount: -1}
			if path, ok := s.FirstObject(propNode, SHPath); ok {
				ps.Path = path.Value
			}
			if mc, ok := s.FirstObject(propNode, SHMinCount); ok {
				if v, err := strconv.Atoi(mc.Value); err == nil {
					ps.MinCount = v
				}
			}
			if mc, ok := s.FirstObject(propNode, SHMaxCount); ok {
				if v, err := strconv.Atoi(mc.Value); err == nil {
					ps.MaxCount = v
				}
			}
			if dt, ok := s.FirstObject(propNode, SHDatatype); ok {
				ps.Datatype = dt.Value
			}
			if msg, ok := s.FirstObject(propNode, SHMessage); ok {
				ps.Message = msg.Value
			}
			if in, ok := s.FirstObject(propNode, SHIn); ok {
				for _, member := range s.List(in) {
					ps.In = append(ps.In, member.Value)
				}
			}
			if ps.Path != "" {
				shape.Properties = append(shape.Properties, ps)
			}
		}
		shapes = append(shapes, shape)
	}
	return shapes
}

// ValidateShapes validates data against the given shapes and returns a
// report.  Focus nodes are the typed instances of each shape's target class.
func ValidateShapes(data *Store, shapes []NodeShape) *ValidationReport {
	report := &ValidationReport{Conforms: true}
	for _, shape := range shapes {
		if shape.TargetClass == "" {
			continue
		}
		focus := data.Subjects(Pattern{Predicate: P(RDFType), Object: OIRI(shape.TargetClass)})
		for _, node := range focus {
			report.Violations = append(report.Violations, ValidateNode(data, node, shape)...)
		}
	}
	report.Conforms = len(report.Violations) == 0
	return report
}

// ValidateNode checks a single focus node against one shape.
func ValidateNode(data *Store, node Term, shape NodeShape) []Violation {
	var out []Violation
	for _, ps := range shape.Properties {
		values := data.Objects(node, ps.Path)

		if ps.MinCount >= 0 && len(values) < ps.MinCount {
			out = append(out, Violation{
				FocusNode: node.Value,
				Path:      ps.Path,
				Severity:  "Violation",
				Message:   violationMessage(ps, fmt.Sprintf("expected at least %d value(s), found %d", ps.MinCount, len(values))),
			})
		}
		if ps.MaxCount >= 0 && len(values) > ps.MaxCount {
			out = append(out, Violation{
				FocusNode: node.Value,
				Path:      ps.Path,
				Severity:  "Violation",
				Message:   violationMessage(ps, fmt.Sprintf("expected at most %d value(s), found %d", ps.MaxCount, len(values))),
			})
		}

		for _, v := range values {
			if ps.Datatype != "" && !literalMatchesDatatype(v, ps.Datatype) {
				out = append(out, Violation{
					FocusNode: node.Value,
					Path:      ps.Path,
					Severity:  "Violation",
					Message:   violationMessage(ps, fmt.Sprintf("value %q does not match datatype <%s>", v.Value, ps.Datatype)),
				})
			}
			if len(ps.In) > 0 && !inList(v.Value, ps.In) {
				out = append(out, Violation{
					FocusNode: node.Value,
					Path:      ps.Path,
					Severity:  "Violation",
					Message:   violationMessage(ps, fmt.Sprintf("value %q is not in the admitted list", v.Value)),
				})
			}
		}
	}
	return out
}

func violationMessage(ps PropertyShape, fallback string) string {
	if ps.Message != "" {
		return ps.Message
	}
	return fallback
}

func inList(value string, list []string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// literalMatchesDatatype checks a literal against the xsd datatypes the
// hazard shapes actually use.  Untagged literals are accepted when their
// lexical form parses.
func literalMatchesDatatype(t Term, datatype string) bool {
	if !t.IsLiteral() {
		return false
	}
	if t.Datatype == datatype {
		return true
	}
	switch datatype {
	case XSDNS + "string":
		return t.Datatype == ""
	case XSDNS + "float", XSDNS + "double", XSDNS + "decimal":
		_, err := strconv.ParseFloat(t.Value, 64)
		return err == nil
	case XSDNS + "integer", XSDNS + "int":
		_, err := strconv.Atoi(t.Value)
		return err == nil
	case XSDNS + "boolean":
		return t.Value == "true" || t.Value == "false"
	default:
		return true
	}
}
