package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/vector"
	"github.com/hazardsafe/hazardsafe-kg/internal/ingestion"
	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	"github.com/hazardsafe/hazardsafe-kg/internal/validation"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
	"github.com/hazardsafe/hazardsafe-kg/pkg/types/kg"
)

// TypeAuto asks the pipeline to classify the document itself.
const TypeAuto = "auto"

const descriptionLimit = 200
const sourceSpan = 50

// DocumentResult is the structured outcome of one document run.
type DocumentResult struct {
	Summary

	Document      *ingestion.DocumentRecord `json:"document,omitempty"`
	DocType       string                    `json:"doc_type,omitempty"`
	Entities      []nlp.Entity              `json:"entities,omitempty"`
	Relations     []nlp.Relation            `json:"relations,omitempty"`
	Dropped       map[string]int            `json:"dropped,omitempty"`
	Chunks        int                       `json:"chunks"`
	Compatibility []string                  `json:"compatibility_violations,omitempty"`
}

// DocumentPipeline runs a document through extraction, NLP, chunk embedding,
// entity validation, and the graph merge.
type DocumentPipeline struct {
	deps *Deps
}

func NewDocumentPipeline(deps *Deps) *DocumentPipeline {
	return &DocumentPipeline{deps: deps}
}

// Run processes one file. docType may name a category or TypeAuto. Failures
// before the merge stage short-circuit the rest; per-item failures inside a
// stage are collected and never abort it.
func (p *DocumentPipeline) Run(ctx context.Context, path, docType string) *DocumentResult {
	run := NewRun()
	result := &DocumentResult{
		Summary: Summary{
			RunID:     run.ID,
			Pipeline:  "document",
			StartedAt: time.Now(),
		},
		Dropped: map[string]int{},
	}
	defer result.finish(p.deps.Metrics, run)
	log := p.deps.logger().With(logging.String("run_id", run.ID), logging.String("path", path))

	// Stage 1: ingest the file.
	run.To(StateIngesting)
	if !p.ingest(ctx, run, result, path) {
		return result
	}

	// Stages 2-4: classify and extract.
	if err := p.advance(ctx, run, result, StateExtracting); err != nil {
		return result
	}
	p.classify(result, docType)
	p.extract(result)

	// Stage 6 runs before the writes: drop ill-formed entities first.
	if err := p.advance(ctx, run, result, StateValidating); err != nil {
		return result
	}
	p.validateEntities(result)

	// Stages 5 and 7: chunk embeddings into the vector store, then merge the
	// surviving entities into the graph.
	if err := p.advance(ctx, run, result, StateStoring); err != nil {
		return result
	}
	if !p.embedChunks(ctx, result) {
		run.To(FailedAt(StateStoring))
		return result
	}
	if !p.merge(ctx, result) {
		run.To(FailedAt(StateStoring))
		return result
	}

	run.To(StateDone)
	result.OverallSuccess = true
	log.Info("document run complete",
		logging.String("doc_id", result.Document.ID),
		logging.Int("entities", result.EntitiesCreated),
		logging.Int("chunks", result.Chunks))
	return result
}

// RunBatch processes several files, at most Pipeline.IngestConcurrency at a
// time. Results keep the order of paths; a failed run never stops the batch.
func (p *DocumentPipeline) RunBatch(ctx context.Context, paths []string, docType string) []*DocumentResult {
	limit := p.deps.Config.Pipeline.IngestConcurrency
	if limit < 1 {
		limit = 1
	}

	results := make([]*DocumentResult, len(paths))
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			r := p.Run(ctx, path, docType)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	group.Wait()
	return results
}

func (p *DocumentPipeline) advance(ctx context.Context, run *Run, result *DocumentResult, to RunState) error {
	if err := ctx.Err(); err != nil {
		run.To(StateCancelled)
		appErr := apperrors.FromContext(err)
		result.Errors = append(result.Errors, appErr.Error())
		return appErr
	}
	return run.To(to)
}

func (p *DocumentPipeline) ingest(ctx context.Context, run *Run, result *DocumentResult, path string) bool {
	clock := result.startStage(p.deps.Metrics, "ingest")
	defer clock.done()

	record := p.deps.Extractor.Extract(ctx, path)
	result.Document = record
	if record.Failed() {
		run.To(FailedAt(StateIngesting))
		clock.fail(apperrors.Newf(apperrors.ErrCodeDocumentExtraction, "%s: %s", path, record.Error))
		return false
	}
	clock.detail("document_id", record.ID)
	clock.detail("characters", record.Metadata.CharacterCount)
	return true
}

func (p *DocumentPipeline) classify(result *DocumentResult, docType string) {
	clock := result.startStage(p.deps.Metrics, "classify")
	defer clock.done()

	if docType == TypeAuto || docType == "" {
		docType = nlp.ClassifyDocument(result.Document.Content)
		clock.detail("classified", true)
	}
	result.DocType = docType
	result.Document.Type = docType
	clock.detail("doc_type", docType)
}

// extract runs entity then relation extraction, attaching the trailing
// source-text span to each entity.
func (p *DocumentPipeline) extract(result *DocumentResult) {
	clock := result.startStage(p.deps.Metrics, "extract")
	defer clock.done()

	content := result.Document.Content
	entities := p.deps.Entities.Extract(content)
	for i := range entities {
		end := entities[i].End + sourceSpan
		if end > len(content) {
			end = len(content)
		}
		entities[i].SourceText = content[entities[i].Start:end]
	}
	result.Entities = entities
	result.Relations = p.deps.Relations.Extract(content, entities)

	clock.detail("entities", len(entities))
	clock.detail("relations", len(result.Relations))
}

// validateEntities drops chemical entities whose name or CAS number fails the
// format grammar. An out-of-vocabulary hazard keyword is only a warning.
func (p *DocumentPipeline) validateEntities(result *DocumentResult) {
	clock := result.startStage(p.deps.Metrics, "validate")
	defer clock.done()

	kept := result.Entities[:0]
	for _, e := range result.Entities {
		switch e.Type {
		case nlp.EntityChemicalFormula, nlp.EntityMolecularFormula:
			if err := validation.ValidateFormula(e.Text); err != nil {
				result.Dropped["formula"]++
				clock.recordErr(err)
				continue
			}
		case nlp.EntityCASNumber:
			if err := validation.ValidateCAS(e.Text); err != nil {
				result.Dropped["cas_number"]++
				clock.recordErr(err)
				continue
			}
		case nlp.EntityHazard:
			if !kg.InVocabulary(strings.ToLower(e.Text), kg.HazardClasses) {
				clock.warn(fmt.Sprintf("hazard %q is not in the controlled vocabulary", e.Text))
			}
		}
		kept = append(kept, e)
	}
	result.Entities = kept
	clock.detail("kept", len(kept))
	clock.detail("dropped", len(result.Dropped))
}

// embedChunks cleans and chunks the text, embeds every chunk, and upserts in
// batches with exponential backoff on retryable failures.
func (p *DocumentPipeline) embedChunks(ctx context.Context, result *DocumentResult) bool {
	clock := result.startStage(p.deps.Metrics, "embed")
	defer clock.done()

	cfg := p.deps.Config
	text := nlp.CleanText(result.Document.Content)
	pieces := nlp.ChunkText(text, cfg.Chunking.Size, cfg.Chunking.Overlap)

	chunks := make([]vector.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, vector.Chunk{
			ID:         fmt.Sprintf("%s:%d", result.Document.ID, i),
			DocumentID: result.Document.ID,
			Index:      i,
			Text:       piece,
			Metadata: map[string]interface{}{
				"document_id": result.Document.ID,
				"chunk_index": i,
				"doc_type":    result.DocType,
			},
			Embedding: p.deps.Embedder.Embed(piece),
		})
	}

	batchSize := cfg.Pipeline.BatchSize
	if batchSize < 1 {
		batchSize = len(chunks)
	}
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.upsertWithRetry(ctx, chunks[start:end]); err != nil {
			clock.fail(err)
			return false
		}
	}

	result.Chunks = len(chunks)
	clock.detail("chunks", len(chunks))
	return true
}

func (p *DocumentPipeline) upsertWithRetry(ctx context.Context, batch []vector.Chunk) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(),
			uint64(p.deps.Config.Pipeline.MaxRetries)), ctx)
	return backoff.Retry(func() error {
		err := p.deps.Vector.Upsert(ctx, batch)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if p.deps.Metrics != nil {
			p.deps.Metrics.VectorUpsertRetries.WithLabelValues(p.deps.Config.Vector.Backend).Inc()
		}
		return err
	}, policy)
}

func retryable(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrCodeBackendUnavailable) ||
		apperrors.IsCode(err, apperrors.ErrCodeTimeout)
}

// merge creates substance nodes for the chemical entities and resolves
// hazard-class and storage relations against them. Hazard mentions stay
// in-memory; they never become nodes of their own. Storage relations whose
// substance/container pair the compatibility table forbids are rejected
// before any container node or edge is written.
func (p *DocumentPipeline) merge(ctx context.Context, result *DocumentResult) bool {
	clock := result.startStage(p.deps.Metrics, "merge")
	defer clock.done()

	if err := p.deps.Graph.EnsureSchema(ctx, kg.DefaultSchema()); err != nil {
		clock.fail(err)
		return false
	}

	doc := result.Document
	description := doc.Metadata.Summary
	if len(description) > descriptionLimit {
		description = description[:descriptionLimit]
	}

	// One node per distinct chemical name; formulas and CAS numbers attach
	// to the nearest named chemical.
	substanceIDs := map[string]string{} // lowercased name -> node id
	for _, e := range result.Entities {
		if e.Type != nlp.EntityChemicalName {
			continue
		}
		name := strings.ToLower(e.Text)
		if _, ok := substanceIDs[name]; ok {
			continue
		}
		node := kg.Node{
			ID:     substanceNodeID(e.Text),
			Labels: []string{string(kg.KindSubstance)},
			Properties: map[string]interface{}{
				"name":            e.Text,
				"description":     description,
				"source_document": doc.ID,
			},
		}
		if formula := p.nearestEntity(result.Entities, e, nlp.EntityChemicalFormula); formula != "" {
			node.Properties["chemical_formula"] = formula
		}
		if cas := p.nearestEntity(result.Entities, e, nlp.EntityCASNumber); cas != "" {
			node.Properties["cas_number"] = cas
		}
		if hazard := p.hazardFor(result.Relations, e.Text); hazard != "" {
			node.Properties["hazard_class"] = hazard
		}
		if _, err := p.deps.Graph.CreateNode(ctx, node); err != nil {
			clock.recordErr(err)
			continue
		}
		substanceIDs[name] = node.ID
		result.EntitiesCreated++
	}

	for _, r := range result.Relations {
		sourceID, ok := substanceIDs[strings.ToLower(r.Source)]
		if !ok {
			continue
		}
		var edge kg.Edge
		switch r.Type {
		case nlp.RelationHazardClass:
			// Hazard endpoint resolves in-memory to the source substance.
			edge = kg.Edge{
				SourceID: sourceID, TargetID: sourceID, Type: kg.RelHasHazardClass,
				Properties: map[string]interface{}{
					"hazard_class": strings.ToLower(r.Target),
					"confidence":   r.Confidence,
				},
			}
		case nlp.RelationStoredIn:
			material := strings.ToLower(strings.ReplaceAll(r.Target, " ", "_"))
			compat := validation.CheckCompatibility(
				kg.HazardousSubstance{Name: r.Source, HazardClass: p.hazardFor(result.Relations, r.Source)},
				kg.Container{Name: r.Target + " container", Material: material},
			)
			if !compat.Compatible {
				msg := fmt.Sprintf("%s / %s: %s", r.Source, r.Target, compat.Errors[0].Message)
				result.Compatibility = append(result.Compatibility, msg)
				clock.recordErr(apperrors.Newf(apperrors.ErrCodeCompatibilityForbidden, "%s", msg))
				continue
			}
			containerID := containerNodeID(r.Target)
			container := kg.Node{
				ID:     containerID,
				Labels: []string{string(kg.KindContainer)},
				Properties: map[string]interface{}{
					"name":            r.Target + " container",
					"material":        material,
					"source_document": doc.ID,
				},
			}
			if _, err := p.deps.Graph.CreateNode(ctx, container); err != nil {
				clock.recordErr(err)
				continue
			}
			edge = kg.Edge{
				SourceID: sourceID, TargetID: containerID, Type: kg.RelStoredIn,
				Properties: map[string]interface{}{"confidence": r.Confidence},
			}
		default:
			continue
		}
		if err := p.deps.Graph.CreateEdge(ctx, edge); err != nil {
			clock.recordErr(err)
			continue
		}
		result.RelationshipsCreated++
	}

	clock.detail("substances", result.EntitiesCreated)
	clock.detail("edges", result.RelationshipsCreated)
	return true
}

// nearestEntity returns the closest mention of wantType within the relation
// window around the anchor.
func (p *DocumentPipeline) nearestEntity(entities []nlp.Entity, anchor nlp.Entity, wantType string) string {
	best := ""
	bestDist := -1
	for _, e := range entities {
		if e.Type != wantType || !nlp.Related(anchor, e) {
			continue
		}
		d := e.Start - anchor.Start
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best = e.Text
			bestDist = d
		}
	}
	return best
}

func (p *DocumentPipeline) hazardFor(relations []nlp.Relation, source string) string {
	for _, r := range relations {
		if r.Type == nlp.RelationHazardClass && strings.EqualFold(r.Source, source) {
			return strings.ToLower(r.Target)
		}
	}
	return ""
}

// Deterministic natural keys keep re-runs from duplicating nodes.
func substanceNodeID(name string) string {
	return "substance:" + strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func containerNodeID(material string) string {
	return "container:" + strings.ToLower(strings.ReplaceAll(strings.TrimSpace(material), " ", "_"))
}
