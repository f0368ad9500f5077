package documents

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const DefaultCSVColumn = "resume_text"

type csvRow struct {
	label string
	text  string
}

// readCSV returns one row per record, taking text from textColumn and the
// label from idColumn when it is set, otherwise "<name>#<row>".
func readCSV(name string, content []byte, textColumn, idColumn string) ([]csvRow, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Subject: name, Reason: "csv has no header"}
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	if textColumn = strings.TrimSpace(textColumn); textColumn == "" {
		textColumn = DefaultCSVColumn
	}

	textIdx := columnIndex(header, textColumn)
	if textIdx < 0 {
		return nil, &ValidationError{
			Subject: name,
			Reason:  fmt.Sprintf("column %q not found, available: %s", textColumn, strings.Join(header, ", ")),
		}
	}

	idIdx := -1
	if idColumn = strings.TrimSpace(idColumn); idColumn != "" {
		if idIdx = columnIndex(header, idColumn); idIdx < 0 {
			return nil, &ValidationError{Subject: name, Reason: fmt.Sprintf("id column %q not found", idColumn)}
		}
	}

	var rows []csvRow
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line, err)
		}

		row := csvRow{label: fmt.Sprintf("%s#%d", name, line)}
		if textIdx < len(record) {
			row.text = record[textIdx]
		}
		if idIdx >= 0 && idIdx < len(record) && strings.TrimSpace(record[idIdx]) != "" {
			row.label = strings.TrimSpace(record[idIdx])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &ValidationError{Subject: name, Reason: "csv has no rows"}
	}

	return rows, nil
}

func columnIndex(header []string, column string) int {
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(h), column) {
			return i
		}
	}
	return -1
}
