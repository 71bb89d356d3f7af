package ingestion

import (
	"encoding/csv"
	"os"
	"strings"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// TabularBatch is one parsed CSV file: the header and each data row keyed by
// column name.
type TabularBatch struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// ReadCSVBatch parses a CSV file with a header row. Cells are trimmed; ragged
// rows fail the whole read.
func ReadCSVBatch(path string) (*TabularBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "open csv %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "parse csv %s", path)
	}
	if len(records) == 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeInputMalformed, "csv %s is empty", path)
	}

	batch := &TabularBatch{Columns: make([]string, len(records[0]))}
	for i, col := range records[0] {
		batch.Columns[i] = strings.TrimSpace(col)
	}

	for _, record := range records[1:] {
		row := make(map[string]string, len(batch.Columns))
		for i, col := range batch.Columns {
			row[col] = strings.TrimSpace(record[i])
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// extractCSV renders the file as pipe-joined lines for document ingestion.
func extractCSV(path string, extracted map[string]any) (string, error) {
	batch, err := ReadCSVBatch(path)
	if err != nil {
		return "", err
	}

	extracted["columns"] = batch.Columns
	extracted["row_count"] = len(batch.Rows)

	var b strings.Builder
	b.WriteString(strings.Join(batch.Columns, " | "))
	for _, row := range batch.Rows {
		cells := make([]string, len(batch.Columns))
		for i, col := range batch.Columns {
			cells[i] = row[col]
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String(), nil
}
