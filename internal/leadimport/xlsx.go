package leadimport

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// parseXLSXFile parses the first sheet of an XLSX lead file. The first row
// must be a header naming at least a business name column.
func parseXLSXFile(ctx context.Context, path string) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadimport: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("leadimport: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("leadimport: empty file")
	}

	cols, err := columnMap(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadimport: context cancelled")
		}
		res.addRow(i+2, cols, rowToStrings(row))
	}
	return res, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
