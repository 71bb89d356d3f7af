// Package ingestion turns external files into normalized document records and
// tabular batches. Extraction failures surface as error records, never as
// panics or raised errors.
package ingestion

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/hazardsafe/hazardsafe-kg/internal/infrastructure/monitoring/logging"
	"github.com/hazardsafe/hazardsafe-kg/internal/nlp"
	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

const summarySentences = 3
const keyTopicLimit = 10

// DocumentMetadata carries the derived facts about one extracted document.
type DocumentMetadata struct {
	FilePath          string         `json:"file_path"`
	Size              int64          `json:"size"`
	Extension         string         `json:"extension"`
	ContentHash       string         `json:"content_hash"`
	WordCount         int            `json:"word_count"`
	CharacterCount    int            `json:"character_count"`
	ExtractedMetadata map[string]any `json:"extracted_metadata,omitempty"`
	KeyTopics         []string       `json:"key_topics,omitempty"`
	Entities          []nlp.Entity   `json:"entities,omitempty"`
	Summary           string         `json:"summary,omitempty"`
}

// DocumentRecord is the normalized result of one extraction. Error is set on
// failed extractions and the rest of the record is best-effort.
type DocumentRecord struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	SourcePath string           `json:"source_path"`
	Type       string           `json:"type"`
	UploadDate time.Time        `json:"upload_date"`
	Tags       []string         `json:"tags,omitempty"`
	Metadata   DocumentMetadata `json:"metadata"`
	Error      string           `json:"error,omitempty"`
}

// Failed reports whether extraction produced no usable content.
func (r *DocumentRecord) Failed() bool { return r.Error != "" }

// Extractor dispatches file extraction by suffix.
type Extractor struct {
	logger   logging.Logger
	now      func() time.Time
	entities *nlp.EntityExtractor
}

func NewExtractor(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{logger: logger, now: time.Now, entities: nlp.NewEntityExtractor()}
}

// SupportedExtensions lists the suffixes Extract understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".json", ".csv"}
}

// Extract reads one file and builds its document record. Failures of any kind
// come back as an error record carrying the reason.
func (x *Extractor) Extract(ctx context.Context, path string) *DocumentRecord {
	record := &DocumentRecord{
		SourcePath: path,
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		UploadDate: x.now(),
	}

	if err := ctx.Err(); err != nil {
		return x.fail(record, apperrors.FromContext(err))
	}

	info, err := os.Stat(path)
	if err != nil {
		return x.fail(record, apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "stat %s", path))
	}
	ext := strings.ToLower(filepath.Ext(path))
	record.Metadata.FilePath = path
	record.Metadata.Size = info.Size()
	record.Metadata.Extension = ext

	var content string
	extracted := map[string]any{}
	switch ext {
	case ".pdf":
		content, err = extractPDF(path, extracted)
	case ".docx":
		content, err = extractDOCX(path, extracted)
	case ".txt", ".md":
		content, err = extractText(path)
	case ".json":
		content, err = extractJSON(path, extracted)
	case ".csv":
		content, err = extractCSV(path, extracted)
	default:
		err = apperrors.Newf(apperrors.ErrCodeInputMalformed, "unsupported file extension %q", ext)
	}
	if err != nil {
		return x.fail(record, err)
	}

	record.Content = content
	x.annotate(record, extracted)
	return record
}

func (x *Extractor) fail(record *DocumentRecord, err error) *DocumentRecord {
	record.Error = err.Error()
	record.ID = hashString(record.SourcePath)
	x.logger.Warn("extraction failed",
		logging.String("path", record.SourcePath),
		logging.Err(err))
	return record
}

// annotate fills the derived fields: content hash and id, counts, topics,
// pattern entities, and the leading-sentence summary.
func (x *Extractor) annotate(record *DocumentRecord, extracted map[string]any) {
	record.Metadata.ContentHash = hashString(record.Content)
	record.ID = record.Metadata.ContentHash
	record.Metadata.WordCount = len(strings.Fields(record.Content))
	record.Metadata.CharacterCount = len([]rune(record.Content))
	if len(extracted) > 0 {
		record.Metadata.ExtractedMetadata = extracted
	}
	if title, ok := extracted["title"].(string); ok && title != "" {
		record.Title = title
	}

	record.Metadata.KeyTopics = nlp.KeyTopics(record.Content, keyTopicLimit)
	record.Metadata.Entities = x.entities.Extract(record.Content)

	sentences := nlp.Sentences(record.Content)
	if len(sentences) > summarySentences {
		sentences = sentences[:summarySentences]
	}
	record.Metadata.Summary = strings.Join(sentences, " ")
}

func hashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "read %s", path)
	}
	return string(data), nil
}

// extractJSON re-serializes the document and records its top-level keys.
func extractJSON(path string, extracted map[string]any) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "read %s", path)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "parse json %s", path)
	}
	if obj, ok := doc.(map[string]any); ok {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		extracted["top_level_keys"] = keys
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "serialize json %s", path)
	}
	return string(out), nil
}

// extractPDF reads per-page plain text. Pages that fail to extract are
// skipped; document info keys land in the extracted metadata.
func extractPDF(path string, extracted map[string]any) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "open pdf %s", path)
	}
	defer f.Close()

	pages := reader.NumPage()
	extracted["page_count"] = pages

	info := reader.Trailer().Key("Info")
	for _, key := range []string{"Title", "Author", "CreationDate"} {
		if v := info.Key(key); v.Kind() == pdf.String {
			extracted[strings.ToLower(key)] = v.Text()
		}
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	if b.Len() == 0 {
		return "", apperrors.Newf(apperrors.ErrCodeInputMalformed, "pdf %s has no extractable text", path)
	}
	return b.String(), nil
}
