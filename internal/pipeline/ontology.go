package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/ontology"
	"github.com/hazardsafe/hazardsafe-kg/internal/validation"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// Gate outcomes reported by the quality stage.
const (
	GatePassed = "passed"
	GateFailed = "failed"
)

// candidate is one typed subject pulled out of the loaded triples.
type candidate struct {
	subject ontology.Term
	class   string
	kind    kg.EntityKind
	// properties maps the predicate local name to its values in triple
	// order; the last value wins on conflicts.
	properties map[string][]string
}

func (c *candidate) value(name string) string {
	values := c.properties[name]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

// candidateRelation is one edge candidate between two typed subjects.
type candidateRelation struct {
	source, target ontology.Term
	relType        kg.RelationType
}

// OntologyResult is the structured outcome of one ontology-directory run.
type OntologyResult struct {
	Summary

	FilesLoaded   int            `json:"files_loaded"`
	TriplesLoaded int            `json:"triples_loaded"`
	Candidates    int            `json:"candidates"`
	Validated     int            `json:"validated"`
	Dropped       map[string]int `json:"dropped,omitempty"`
	QualityGate   string         `json:"quality_gate"`
	QualityGrade  string         `json:"quality_grade,omitempty"`
	Stored        int            `json:"stored"`
	Compatibility []string       `json:"compatibility_violations,omitempty"`
}

// OntologyPipeline loads an ontology directory into the property graph in
// five strictly sequential stages.
type OntologyPipeline struct {
	deps *Deps
}

func NewOntologyPipeline(deps *Deps) *OntologyPipeline {
	return &OntologyPipeline{deps: deps}
}

// Run executes the five stages over dir. A non-success at any stage halts the
// run and returns the partial result; a quality-gate failure still counts as
// a successfully completed run with nothing stored.
func (p *OntologyPipeline) Run(ctx context.Context, dir string) *OntologyResult {
	run := NewRun()
	result := &OntologyResult{
		Summary: Summary{
			RunID:     run.ID,
			Pipeline:  "ontology",
			StartedAt: time.Now(),
		},
		Dropped:     map[string]int{},
		QualityGate: GateFailed,
	}
	defer result.finish(p.deps.Metrics, run)
	log := p.deps.logger().With(logging.String("run_id", run.ID), logging.String("dir", dir))

	// Stage 1: ingest the directory.
	run.To(StateIngesting)
	store, ok := p.ingest(ctx, run, result, dir)
	if !ok {
		return result
	}

	// Stage 2: extract schema and shapes.
	if err := p.advance(ctx, run, result, StateExtracting); err != nil {
		return result
	}
	shapes := p.manage(store, result)

	// Stage 3: shape-validate candidates.
	if err := p.advance(ctx, run, result, StateValidating); err != nil {
		return result
	}
	candidates, relations := p.extractCandidates(store)
	validated, validRelations := p.shapeValidate(store, shapes, candidates, relations, result)

	// Stage 4: quality gate over every candidate, not only the survivors.
	if err := p.advance(ctx, run, result, StateQualityChecking); err != nil {
		return result
	}
	passed := p.qualityGate(candidates, result)
	if !passed {
		run.To(StateQualityFailed)
		result.QualityGate = GateFailed
		result.OverallSuccess = true
		if p.deps.Metrics != nil {
			p.deps.Metrics.QualityGateFailures.WithLabelValues(result.Pipeline).Inc()
		}
		log.Warn("quality gate refused storage",
			logging.Any("score", result.QualityScore))
		return result
	}
	result.QualityGate = GatePassed

	// Stage 5: store.
	if err := p.advance(ctx, run, result, StateStoring); err != nil {
		return result
	}
	if !p.store(ctx, validated, validRelations, result) {
		run.To(FailedAt(StateStoring))
		return result
	}

	run.To(StateDone)
	result.OverallSuccess = true
	log.Info("ontology run complete",
		logging.Int("stored", result.Stored),
		logging.Any("quality", result.QualityScore))
	return result
}

// advance moves the run forward, cancelling first when the context died.
func (p *OntologyPipeline) advance(ctx context.Context, run *Run, result *OntologyResult, to RunState) error {
	if err := ctx.Err(); err != nil {
		run.To(StateCancelled)
		appErr := apperrors.FromContext(err)
		result.Errors = append(result.Errors, appErr.Error())
		return appErr
	}
	return run.To(to)
}

func (p *OntologyPipeline) ingest(ctx context.Context, run *Run, result *OntologyResult, dir string) (*ontology.Store, bool) {
	clock := result.startStage(p.deps.Metrics, "ingest")
	defer clock.done()

	if err := ctx.Err(); err != nil {
		run.To(StateCancelled)
		clock.fail(apperrors.FromContext(err))
		return nil, false
	}

	cfg := p.deps.Config.Ontology
	store := ontology.NewStore(cfg.Prefix, cfg.PrefixURI, p.deps.logger())
	report, err := store.LoadDirectory(dir)
	if err != nil {
		run.To(FailedAt(StateIngesting))
		clock.fail(err)
		return nil, false
	}
	if report.FilesLoaded == 0 {
		run.To(FailedAt(StateIngesting))
		clock.fail(apperrors.Newf(apperrors.ErrCodeOntologyEmpty, "no ontology files loaded from %s", dir))
		return nil, false
	}

	result.FilesLoaded = report.FilesLoaded
	result.TriplesLoaded = report.TriplesAdded
	clock.detail("files_loaded", report.FilesLoaded)
	clock.detail("files_failed", report.FilesFailed)
	clock.detail("triples", report.TriplesAdded)
	files := make([]map[string]any, 0, len(report.Files))
	for _, f := range report.Files {
		entry := map[string]any{
			"path": f.Path, "format": string(f.Format),
			"size_bytes": f.SizeBytes, "triples": f.TriplesAdded,
		}
		if f.Err != nil {
			entry["error"] = f.Err.Error()
		}
		files = append(files, entry)
	}
	clock.detail("files", files)
	return store, true
}

// manage extracts the class/property schema and caches the shapes graph.
func (p *OntologyPipeline) manage(store *ontology.Store, result *OntologyResult) []ontology.NodeShape {
	clock := result.startStage(p.deps.Metrics, "manage")
	defer clock.done()

	classes := map[string]bool{}
	for _, classIRI := range []string{ontology.OWLClass, ontology.RDFSClass} {
		for _, subj := range store.Subjects(ontology.Pattern{
			Predicate: ontology.P(ontology.RDFType), Object: ontology.OIRI(classIRI),
		}) {
			classes[subj.Value] = true
		}
	}
	properties := map[string]bool{}
	for _, propIRI := range []string{ontology.OWLObjectProp, ontology.OWLDataProp} {
		for _, subj := range store.Subjects(ontology.Pattern{
			Predicate: ontology.P(ontology.RDFType), Object: ontology.OIRI(propIRI),
		}) {
			properties[subj.Value] = true
		}
	}
	shapes := store.ExtractShapes()

	clock.detail("classes", len(classes))
	clock.detail("properties", len(properties))
	clock.detail("shapes", len(shapes))
	return shapes
}

// extractCandidates pulls the typed entity and relation candidates out of the
// loaded triples.
func (p *OntologyPipeline) extractCandidates(store *ontology.Store) ([]*candidate, []candidateRelation) {
	kindByName := map[string]kg.EntityKind{}
	for _, kind := range kg.EntityKinds() {
		kindByName[string(kind)] = kind
	}
	relByName := map[string]kg.RelationType{}
	for _, rel := range kg.RelationTypes() {
		relByName[string(rel)] = rel
	}

	var candidates []*candidate
	bySubject := map[string]*candidate{}
	for _, t := range store.Query(ontology.Pattern{Predicate: ontology.P(ontology.RDFType)}) {
		kind, ok := kindByName[localName(t.Object.Value)]
		if !ok {
			continue
		}
		c := &candidate{
			subject:    t.Subject,
			class:      t.Object.Value,
			kind:       kind,
			properties: map[string][]string{},
		}
		for _, pt := range store.Query(ontology.Pattern{Subject: &t.Subject}) {
			if pt.Predicate.Value == ontology.RDFType || !pt.Object.IsLiteral() {
				continue
			}
			name := localName(pt.Predicate.Value)
			c.properties[name] = append(c.properties[name], pt.Object.Value)
		}
		candidates = append(candidates, c)
		bySubject[t.Subject.String()] = c
	}

	var relations []candidateRelation
	for _, t := range store.Triples() {
		if !t.Object.IsIRI() && !t.Object.IsBlank() {
			continue
		}
		rel, ok := relByName[upperSnake(localName(t.Predicate.Value))]
		if !ok {
			continue
		}
		if bySubject[t.Subject.String()] == nil || bySubject[t.Object.String()] == nil {
			continue
		}
		relations = append(relations, candidateRelation{source: t.Subject, target: t.Object, relType: rel})
	}
	return candidates, relations
}

// shapeValidate drops ill-formed candidates per reason and keeps relations
// whose endpoints both survive.
func (p *OntologyPipeline) shapeValidate(store *ontology.Store, shapes []ontology.NodeShape,
	candidates []*candidate, relations []candidateRelation, result *OntologyResult) ([]*candidate, []candidateRelation) {

	clock := result.startStage(p.deps.Metrics, "shape_validate")
	defer clock.done()

	shapeByClass := map[string]ontology.NodeShape{}
	for _, shape := range shapes {
		if shape.TargetClass != "" {
			shapeByClass[shape.TargetClass] = shape
		}
	}

	var validated []*candidate
	surviving := map[string]bool{}
	for _, c := range candidates {
		shape, ok := shapeByClass[c.class]
		if !ok {
			validated = append(validated, c)
			surviving[c.subject.String()] = true
			continue
		}
		violations := ontology.ValidateNode(store, c.subject, shape)
		if len(violations) == 0 {
			validated = append(validated, c)
			surviving[c.subject.String()] = true
			continue
		}
		reason := violations[0].Path
		result.Dropped[localName(reason)]++
		clock.recordErr(apperrors.Newf(apperrors.ErrCodeShapeViolation,
			"%s: %s", c.subject.Value, violations[0].Message))
	}

	var validRelations []candidateRelation
	for _, r := range relations {
		if surviving[r.source.String()] && surviving[r.target.String()] {
			validRelations = append(validRelations, r)
		}
	}

	result.Candidates = len(candidates)
	result.Validated = len(validated)
	clock.detail("candidates", len(candidates))
	clock.detail("validated", len(validated))
	clock.detail("relations", len(validRelations))
	return validated, validRelations
}

// qualityGate scores every candidate as one tabular row, so dropped entities
// weigh the batch down.
func (p *OntologyPipeline) qualityGate(candidates []*candidate, result *OntologyResult) bool {
	clock := result.startStage(p.deps.Metrics, "quality_gate")
	defer clock.done()

	columnSet := map[string]bool{}
	for _, c := range candidates {
		for name := range c.properties {
			columnSet[name] = true
		}
	}
	columns := make([]string, 0, len(columnSet))
	for name := range columnSet {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	rows := make([]map[string]string, 0, len(candidates))
	for _, c := range candidates {
		row := map[string]string{}
		for _, col := range columns {
			row[col] = c.value(col)
		}
		rows = append(rows, row)
	}

	report := p.deps.Quality.Assess("", columns, rows)
	result.QualityScore = report.Overall
	result.QualityGrade = report.Grade
	clock.detail("overall", report.Overall)
	clock.detail("grade", report.Grade)
	clock.detail("dimensions", report.Dimensions)
	if p.deps.Metrics != nil {
		p.deps.Metrics.QualityScore.WithLabelValues(result.Pipeline).Set(report.Overall)
	}

	min := p.deps.Config.Quality.MinOverallForStorage
	if report.Overall < min {
		clock.recordErr(apperrors.Newf(apperrors.ErrCodeQualityBelowThreshold,
			"overall score %.3f below storage minimum %.2f", report.Overall, min))
		return false
	}
	return true
}

// storageCompat runs the substance/container compatibility table over one
// STORED_IN candidate pair. Pairs the table forbids come back with a message
// and ok=false; anything else, including pairs of other kinds, is admissible.
func storageCompat(source, target *candidate) (string, bool) {
	if source == nil || target == nil ||
		source.kind != kg.KindSubstance || target.kind != kg.KindContainer {
		return "", true
	}
	substance := kg.HazardousSubstance{
		Name:         source.value("name"),
		HazardClass:  source.value("hazardClass"),
		BoilingPoint: floatProp(source, "boilingPoint"),
	}
	container := kg.Container{
		Name:              target.value("name"),
		Material:          target.value("material"),
		TemperatureRating: floatProp(target, "temperatureRating"),
		PressureRating:    floatProp(target, "pressureRating"),
	}
	report := validation.CheckCompatibility(substance, container)
	if report.Compatible {
		return "", true
	}
	return fmt.Sprintf("%s / %s: %s", substance.Name, container.Name, report.Errors[0].Message), false
}

// store creates one node per validated entity and one edge per surviving
// relation. A STORED_IN edge whose substance/container pair the compatibility
// table forbids is rejected, never created. Per-item failures are recorded
// and do not abort the stage.
func (p *OntologyPipeline) store(ctx context.Context, validated []*candidate,
	relations []candidateRelation, result *OntologyResult) bool {

	clock := result.startStage(p.deps.Metrics, "store")
	defer clock.done()

	if err := p.deps.Graph.EnsureSchema(ctx, kg.DefaultSchema()); err != nil {
		clock.fail(err)
		return false
	}

	ids := map[string]string{}
	byID := map[string]*candidate{}
	for _, c := range validated {
		byID[c.subject.String()] = c
	}
	for _, c := range validated {
		node := kg.Node{
			ID:         subjectID(c.subject),
			Labels:     []string{string(c.kind)},
			Properties: map[string]interface{}{},
		}
		ids[c.subject.String()] = node.ID
		for name, values := range c.properties {
			node.Properties[name] = typedValue(values[len(values)-1])
		}
		if _, ok := node.Properties["name"]; !ok {
			node.Properties["name"] = localName(c.subject.Value)
		}
		if _, err := p.deps.Graph.CreateNode(ctx, node); err != nil {
			clock.recordErr(err)
			continue
		}
		result.Stored++
		result.EntitiesCreated++
	}

	for _, r := range relations {
		if r.relType == kg.RelStoredIn {
			msg, ok := storageCompat(byID[r.source.String()], byID[r.target.String()])
			if !ok {
				result.Compatibility = append(result.Compatibility, msg)
				clock.recordErr(apperrors.Newf(apperrors.ErrCodeCompatibilityForbidden, "%s", msg))
				continue
			}
		}
		edge := kg.Edge{
			SourceID: ids[r.source.String()],
			TargetID: ids[r.target.String()],
			Type:     r.relType,
		}
		if err := p.deps.Graph.CreateEdge(ctx, edge); err != nil {
			clock.recordErr(err)
			continue
		}
		result.RelationshipsCreated++
	}

	clock.detail("nodes_created", result.EntitiesCreated)
	clock.detail("edges_created", result.RelationshipsCreated)
	return true
}

// subjectID keeps the IRI as the natural key and mints an id for blanks.
func subjectID(subject ontology.Term) string {
	if subject.IsIRI() {
		return subject.Value
	}
	return kg.NewID()
}

// localName is the fragment after '#', or after the last '/'.
func localName(iri string) string {
	if i := strings.LastIndexByte(iri, '#'); i >= 0 {
		return iri[i+1:]
	}
	if i := strings.LastIndexByte(iri, '/'); i >= 0 {
		return iri[i+1:]
	}
	return iri
}

// upperSnake maps a camelCase predicate local name to the edge vocabulary:
// storedIn becomes STORED_IN.
func upperSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func typedValue(value string) interface{} {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	return value
}

func floatProp(c *candidate, name string) *float64 {
	v := c.value(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
