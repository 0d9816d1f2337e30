package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// CSVParser handles CSV files. The first row becomes a header row of <th>
// cells; the rest become <tr> rows of <td> cells in one <table>.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	o := newOutline(strings.TrimSuffix(filename, ".csv"))
	if len(records) == 0 {
		return o.root, nil
	}

	table := doctree.NewElement("table")
	for i, row := range records {
		cellTag := "td"
		if i == 0 {
			cellTag = "th"
		}
		tr := doctree.NewElement("tr")
		for _, cell := range row {
			tr.AppendChild(textElement(cellTag, cell))
		}
		table.AppendChild(tr)
	}
	o.append(table)
	return o.root, nil
}
