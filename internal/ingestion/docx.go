package ingestion

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"

	apperrors "github.com/hazardsafe/hazardsafe-kg/pkg/errors"
)

// Minimal WordprocessingML shapes. encoding/xml matches on local names, so
// the w: namespace prefixes need no declaration here.
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
	Tables     []docxTable     `xml:"tbl"`
}

type docxParagraph struct {
	Style     docxVal   `xml:"pPr>pStyle"`
	Alignment docxVal   `xml:"pPr>jc"`
	Runs      []docxRun `xml:"r"`
}

type docxVal struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

type docxTable struct {
	Rows []docxTableRow `xml:"tr"`
}

type docxTableRow struct {
	Cells []docxTableCell `xml:"tc"`
}

type docxTableCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Texts {
			b.WriteString(t)
		}
	}
	return b.String()
}

// extractDOCX reads word/document.xml out of the archive: paragraph text in
// order, then each table flattened as pipe-joined rows.
func extractDOCX(path string, extracted map[string]any) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "open docx %s", path)
	}
	defer archive.Close()

	var doc docxDocument
	found := false
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "open document.xml in %s", path)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "read document.xml in %s", path)
		}
		if err := xml.Unmarshal(data, &doc); err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrCodeInputMalformed, "parse document.xml in %s", path)
		}
		found = true
		break
	}
	if !found {
		return "", apperrors.Newf(apperrors.ErrCodeInputMalformed, "docx %s has no word/document.xml", path)
	}

	var parts []string
	paragraphCount := 0
	var styles []string
	for _, p := range doc.Body.Paragraphs {
		text := strings.TrimSpace(p.text())
		if text == "" {
			continue
		}
		paragraphCount++
		parts = append(parts, text)
		if p.Style.Val != "" {
			styles = append(styles, p.Style.Val)
		}
	}

	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var cellParts []string
				for _, p := range cell.Paragraphs {
					if t := strings.TrimSpace(p.text()); t != "" {
						cellParts = append(cellParts, t)
					}
				}
				cells = append(cells, strings.Join(cellParts, " "))
			}
			parts = append(parts, strings.Join(cells, " | "))
		}
	}

	extracted["paragraph_count"] = paragraphCount
	extracted["table_count"] = len(doc.Body.Tables)
	if len(styles) > 0 {
		extracted["styles"] = styles
	}

	if len(parts) == 0 {
		return "", apperrors.Newf(apperrors.ErrCodeInputMalformed, "docx %s has no text", path)
	}
	return strings.Join(parts, "\n"), nil
}
