package leadimport

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// ParseCSV streams a CSV lead file. The first row must be a header naming at
// least a business name column.
func ParseCSV(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("leadimport: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "leadimport: read header")
	}

	cols, err := columnMap(header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	line := 1
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadimport: context cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			return res, nil
		}
		line++
		if err != nil {
			// Malformed CSV row: record and keep going.
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Err: eris.Wrap(err, "leadimport: read row")})
			continue
		}

		res.addRow(line, cols, row)
	}
}

func parseCSVFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadimport: open file")
	}
	defer f.Close()
	return ParseCSV(ctx, f)
}
