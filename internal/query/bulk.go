package query

import (
	"context"

	"veritab/internal/catalog"
)

type BulkFailure struct {
	Index int            `json:"index"`
	Row   map[string]any `json:"data"`
	Error string         `json:"error"`
}

type BulkSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"success"`
	Failed    int `json:"failed"`
}

type BulkResult struct {
	Inserted []Record      `json:"inserted"`
	Failures []BulkFailure `json:"errors,omitempty"`
	Summary  BulkSummary   `json:"summary"`
}

// ImportRows inserts rows one by one in input order. Each row is validated
// and stored independently; a failing row lands in Failures and the batch
// continues. There is no batch-level atomicity: earlier successes stay.
func (e *Engine) ImportRows(ctx context.Context, tbl *catalog.Table, rows []map[string]any) (*BulkResult, error) {
	res := &BulkResult{Summary: BulkSummary{Total: len(rows)}}
	for i, row := range rows {
		rec, err := e.Insert(ctx, tbl, row)
		if err != nil {
			res.Failures = append(res.Failures, BulkFailure{Index: i, Row: row, Error: err.Error()})
			res.Summary.Failed++
			continue
		}
		res.Inserted = append(res.Inserted, rec)
		res.Summary.Succeeded++
	}
	return res, nil
}
