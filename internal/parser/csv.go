package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docqa/internal/document"
)

// csvBatchRows is the number of data rows rendered into one document.
const csvBatchRows = 20

// CSVParser handles CSV files. Rows are rendered as "header: value" pairs and
// grouped into batches, each its own document.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) ([]document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	headers := records[0]
	rows := records[1:]

	var docs []document.Document
	for start := 0; start < len(rows); start += csvBatchRows {
		end := min(start+csvBatchRows, len(rows))

		var text strings.Builder
		for _, row := range rows[start:end] {
			cells := make([]string, len(row))
			for j, cell := range row {
				if j < len(headers) {
					cells[j] = headers[j] + ": " + cell
				} else {
					cells[j] = cell
				}
			}
			text.WriteString(strings.Join(cells, ", "))
			text.WriteString("\n")
		}

		docs = append(docs, document.Document{
			Content: strings.TrimSpace(text.String()),
			Metadata: document.Metadata{
				Source:  filename,
				Section: fmt.Sprintf("Rows %d-%d", start+2, end+1), // 1-indexed, after header
			},
		})
	}
	return docs, nil
}
