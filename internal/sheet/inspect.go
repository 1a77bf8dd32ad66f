// Package sheet reads a workbook locally so the user can see what the
// conversion service will turn into elements before uploading it.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/types"

	"github.com/xuri/excelize/v2"
)

const RowDetectionLimit = 10

var (
	ErrUnsupported = errors.New("workbook format cannot be inspected locally")
	ErrEmpty       = errors.New("empty workbook")
)

var elementNameReplacer = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// ElementName returns the element name the service derives from a column
// header: every character outside [a-zA-Z0-9_] becomes an underscore.
func ElementName(column string) string {
	return elementNameReplacer.ReplaceAllString(column, "_")
}

// Inspect summarizes the first sheet of an .xlsx workbook held in memory.
// Legacy .xls files are reported as ErrUnsupported.
func Inspect(f types.SelectedFile) (*types.SheetSummary, error) {
	if f.MediaType != types.MediaTypeXLSX && strings.ToLower(filepath.Ext(f.Name)) != ".xlsx" {
		return nil, ErrUnsupported
	}
	return Read(bytes.NewReader(f.Content))
}

// Read summarizes the first sheet of the workbook in r.
func Read(r io.Reader) (*types.SheetSummary, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheetName := wb.GetSheetName(0)
	rows, err := wb.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	// The service always takes the first row as column names. A sheet
	// whose labels sit lower down (titles, blank lines) still converts,
	// just with meaningless element names, so flag it.
	columns := make([]string, len(rows[0]))
	elements := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		if c == "" {
			c = fmt.Sprintf("Unnamed: %d", i)
		}
		columns[i] = c
		elements[i] = ElementName(c)
	}

	return &types.SheetSummary{
		SheetName:      sheetName,
		HeaderRow:      0,
		DetectedHeader: findHeaderRow(rows),
		Columns:        columns,
		Elements:       elements,
		Rows:           countDataRows(rows[1:]),
	}, nil
}

func countDataRows(rows [][]string) int {
	n := 0
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				n++
				break
			}
		}
	}
	return n
}

// findHeaderRow locates the first row that appears to be a header
// by finding the row with the most non-empty text cells
func findHeaderRow(rows [][]string) int {
	maxNonEmpty := 0
	headerIdx := -1

	// Look at first 20 rows max
	searchLimit := len(rows)
	if searchLimit > RowDetectionLimit*2 {
		searchLimit = RowDetectionLimit * 2
	}

	for i := 0; i < searchLimit; i++ {
		nonEmptyCount := 0
		hasText := false

		for _, cell := range rows[i] {
			trimmed := strings.TrimSpace(cell)
			if trimmed != "" {
				nonEmptyCount++
				if containsLetters(trimmed) {
					hasText = true
				}
			}
		}

		// A single labeled column still counts, since the service converts
		// one-column sheets too.
		if nonEmptyCount >= 1 && hasText && nonEmptyCount > maxNonEmpty {
			maxNonEmpty = nonEmptyCount
			headerIdx = i
		}
	}

	return headerIdx
}

// containsLetters checks if a string contains any alphabetic characters
func containsLetters(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
