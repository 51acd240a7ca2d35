// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

var (
	openFence  = regexp.MustCompile("```(?:csv)?[ \t]*\r?\n?")
	closeFence = regexp.MustCompile("```\\s*$")
)

// CleanCSV removes Markdown code fences and surrounding whitespace from a
// model answer.
func CleanCSV(text string) string {
	text = strings.TrimSpace(text)
	text = closeFence.ReplaceAllString(text, "")
	text = openFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// missingValues are placeholders the model uses for absent data.
var missingValues = map[string]bool{
	"none": true,
	"nan":  true,
	"n/a":  true,
	"null": true,
}

func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if missingValues[strings.ToLower(v)] {
		return ""
	}
	return v
}

// ParseRecords parses cleaned CSV into records. Columns are matched by
// header name; lines before the first recognizable header are skipped, and
// an answer without one is read positionally. Rows repeating the header are
// dropped. Structural oddities are reported as warnings, not errors.
func ParseRecords(text string) ([]types.Record, []string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, types.ErrEmptyExtraction
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, types.ErrEmptyExtraction
	}

	var warnings []string
	columns := types.Columns
	first := 0
	if h := headerIndex(rows); h < 0 {
		warnings = append(warnings, "no header row; reading columns positionally")
	} else {
		if h > 0 {
			warnings = append(warnings, fmt.Sprintf("skipped %d lines before the header", h))
		}
		columns = rows[h]
		first = h + 1
		if len(columns) != len(types.Columns) {
			warnings = append(warnings, fmt.Sprintf("header has %d columns, want %d", len(columns), len(types.Columns)))
		}
	}

	var records []types.Record
	for i := first; i < len(rows); i++ {
		row, line := rows[i], i+1
		if repeatsHeader(row, columns) {
			warnings = append(warnings, fmt.Sprintf("row %d: repeated header, dropped", line))
			continue
		}

		var rec types.Record
		for j, col := range columns {
			if j >= len(row) {
				break
			}
			rec.Set(col, normalizeValue(row[j]))
		}

		if rec.Name == "" {
			warnings = append(warnings, fmt.Sprintf("row %d: empty Name, dropped", line))
			continue
		}
		if rec.Type != "" && !rec.Type.IsKnown() {
			warnings = append(warnings, fmt.Sprintf("row %d: unknown Type %q", line, rec.Type))
		}
		records = append(records, rec)
	}

	return records, warnings, nil
}

// headerIndex returns the first row naming at least one known column, or -1.
func headerIndex(rows [][]string) int {
	for i, row := range rows {
		if recognized(row) > 0 {
			return i
		}
	}
	return -1
}

// repeatsHeader reports whether every non-empty cell of row is the name of
// its own column.
func repeatsHeader(row, columns []string) bool {
	seen := false
	for i, cell := range row {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		if i >= len(columns) || types.NormalizeColumn(cell) != types.NormalizeColumn(columns[i]) {
			return false
		}
		seen = true
	}
	return seen
}

func recognized(header []string) int {
	n := 0
	var scratch types.Record
	for _, h := range header {
		if scratch.Set(h, "") {
			n++
		}
	}
	return n
}
