package form

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ImportSummary tallies the outcome of a workbook import.
type ImportSummary struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	NotFound   int `json:"not_found"`
}

// ImportLines reads an xlsx sheet of (code, quantity) rows and applies each
// row through the scan path, so duplicate products and unknown codes get
// the same treatment as a hand scanner would: skipped with a notification.
// A header row whose first cell reads "code" or "sku" is ignored. Imports
// are bounded by MaxBulkLines.
func (s *Session) ImportLines(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var sum ImportSummary

	f, err := excelize.OpenReader(r)
	if err != nil {
		return sum, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return sum, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return sum, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	type entry struct{ code, qty string }
	var entries []entry
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		if i == 0 && (strings.EqualFold(code, "code") || strings.EqualFold(code, "sku")) {
			continue
		}
		e := entry{code: code}
		if len(row) > 1 {
			e.qty = strings.TrimSpace(row[1])
		}
		entries = append(entries, e)
	}
	if len(entries) > MaxBulkLines {
		return sum, fmt.Errorf("workbook has %d rows, limit is %d", len(entries), MaxBulkLines)
	}

	qtyField := quantityField(s.docType)
	for _, e := range entries {
		res := s.Scan(ctx, e.code)
		switch res.Status {
		case ScanApplied:
			sum.Added++
			if e.qty != "" {
				if err := s.UpdateField(ctx, res.LineID, qtyField, e.qty); err != nil {
					s.deps.Notifier.Error("row " + e.code + ": " + err.Error())
				}
			}
		case ScanDuplicate:
			sum.Duplicates++
		default:
			sum.NotFound++
		}
	}
	return sum, nil
}
