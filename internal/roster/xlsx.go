package roster

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadSheet reads every row of a sheet as strings. An empty sheetName reads
// the first sheet.
func ReadSheet(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open xlsx")
	}
	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("roster: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("roster: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

// header maps lower-cased column titles to their index.
type header map[string]int

func parseHeader(row []string) header {
	h := make(header, len(row))
	for i, title := range row {
		key := strings.ToLower(strings.TrimSpace(title))
		if _, dup := h[key]; key != "" && !dup {
			h[key] = i
		}
	}
	return h
}

// get returns the first present column among names.
func (h header) get(row []string, names ...string) string {
	for _, n := range names {
		if i, ok := h[n]; ok && i < len(row) {
			return row[i]
		}
	}
	return ""
}

func (h header) has(names ...string) bool {
	for _, n := range names {
		if _, ok := h[n]; ok {
			return true
		}
	}
	return false
}
