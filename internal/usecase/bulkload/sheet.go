// Package bulkload inserts revolving bills and field users from operator
// spreadsheets straight into the target database.
package bulkload

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrEmptySheet = errors.New("spreadsheet has no data rows")

// sheet is the first worksheet of a workbook, header row split off.
type sheet struct {
	header []string
	rows   [][]string
}

// readSheet loads the first worksheet. Cells are read raw so dates arrive as
// Excel serials whatever the cell format says.
func readSheet(r io.Reader) (*sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return &sheet{header: header, rows: rows[1:]}, nil
}

// column returns the index of name in the header, or -1.
func (s *sheet) column(name string) int {
	for i, h := range s.header {
		if h == name {
			return i
		}
	}
	return -1
}

// cell returns row[i] trimmed; short rows read as empty.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{
	time.DateTime,
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"1/2/2006",
	"1/2/2006 15:04",
	"02/01/2006",
}

// parseDate accepts an Excel serial date or a textual date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return excelize.ExcelDateToTime(f, false)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseFlag reads spreadsheet booleans: 1, true, yes, y and active.
func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "yes", "y", "active":
		return true
	default:
		return false
	}
}
