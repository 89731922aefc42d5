// Package leadimport parses lead files (CSV, XLSX) into business rows for a
// campaign. Row-level problems are collected, never fatal: one bad lead must
// not sink an import of thousands.
package leadimport

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// RowError records a rejected row and why.
type RowError struct {
	Line int
	Err  error
}

// Result is the outcome of parsing one lead file.
type Result struct {
	Businesses []model.Business
	RowErrors  []RowError
}

// headerAliases maps recognized column headers to canonical field names.
// Matching is case-insensitive after trimming.
var headerAliases = map[string]string{
	"name":         "name",
	"business":     "name",
	"company":      "name",
	"phone":        "phone",
	"telephone":    "phone",
	"phone_number": "phone",
	"website":      "website",
	"url":          "website",
	"address":      "address",
	"postcode":     "postcode",
	"postal_code":  "postcode",
	"types":        "types",
	"categories":   "types",
	"category":     "types",
}

// ParseFile parses a lead file, choosing the format by extension.
func ParseFile(ctx context.Context, path string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSVFile(ctx, path)
	case ".xlsx":
		return parseXLSXFile(ctx, path)
	default:
		return nil, eris.Errorf("leadimport: unsupported file type %q", filepath.Ext(path))
	}
}

// columnMap resolves a header row into field -> column index.
func columnMap(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := headerAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("leadimport: no name column found in header")
	}
	return cols, nil
}

// mapRow builds a business from one data row. A row without a name is
// rejected; everything else is optional.
func mapRow(cols map[string]int, row []string) (model.Business, error) {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	name := get("name")
	if name == "" {
		return model.Business{}, eris.New("leadimport: row has no business name")
	}

	biz := model.Business{
		Name:     name,
		Phone:    get("phone"),
		Website:  get("website"),
		Address:  get("address"),
		Postcode: get("postcode"),
	}
	if raw := get("types"); raw != "" {
		for _, t := range strings.Split(raw, ";") {
			if t = strings.TrimSpace(t); t != "" {
				biz.Types = append(biz.Types, t)
			}
		}
	}
	return biz, nil
}

func (r *Result) addRow(line int, cols map[string]int, row []string) {
	biz, err := mapRow(cols, row)
	if err != nil {
		r.RowErrors = append(r.RowErrors, RowError{Line: line, Err: err})
		return
	}
	r.Businesses = append(r.Businesses, biz)
}
