package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"veritab/internal/catalog"
	"veritab/internal/field"
	"veritab/internal/pg"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrNoFieldsToUpdate = errors.New("no fields to update")
)

// Record is one row of a physical relation, keyed by column name. Shapes
// are runtime-declared, so there is no struct to scan into.
type Record map[string]any

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// PageRequest carries list parameters. Zero values fall back to defaults:
// page 1, limit 50, sort by id descending.
type PageRequest struct {
	Page       int
	Limit      int
	SortColumn string
	SortOrder  SortOrder
	SearchTerm string
}

type Pagination struct {
	Page  int `json:"current"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Page struct {
	Rows       []Record   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Engine builds and executes parameterized operations against a project's
// physical relations. Values are always bound; only identifiers drawn from
// validated definitions are interpolated.
type Engine struct {
	db *sql.DB
}

func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Insert validates the payload against the full field list and stores one
// row. Validation failures surface before any storage call.
func (e *Engine) Insert(ctx context.Context, tbl *catalog.Table, payload map[string]any) (Record, error) {
	values, errs := field.CoercePayload(tbl.Fields, payload, true)
	if len(errs) > 0 {
		return nil, &field.ValidationError{Fields: errs}
	}

	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, f := range tbl.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, pg.Ident(f.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, v)
	}

	var stmt string
	if len(cols) == 0 {
		stmt = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", pg.Ident(tbl.PhysicalName()))
	} else {
		stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			pg.Ident(tbl.PhysicalName()), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	}

	rec, err := e.queryOne(ctx, stmt, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("insert returned no row")
		}
		return nil, fmt.Errorf("insert: %w", err)
	}
	return rec, nil
}

// List pages through a relation, optionally filtered by a case-insensitive
// partial match across the text-typed fields. A table with no text fields
// ignores the search term.
func (e *Engine) List(ctx context.Context, tbl *catalog.Table, req PageRequest) (*Page, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = 50
	}

	where, args := searchClause(tbl, req.SearchTerm)

	var total int
	countStmt := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", pg.Ident(tbl.PhysicalName()), where)
	if err := e.db.QueryRowContext(ctx, countStmt, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	stmt := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		pg.Ident(tbl.PhysicalName()), where,
		pg.Ident(sortColumn(tbl, req.SortColumn)), sortOrder(req.SortOrder),
		len(args)+1, len(args)+2)
	args = append(args, req.Limit, offset)

	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	pages := 0
	if total > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	return &Page{
		Rows: recs,
		Pagination: Pagination{
			Page:  req.Page,
			Limit: req.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

// GetByID returns the single row keyed by id.
func (e *Engine) GetByID(ctx context.Context, tbl *catalog.Table, id int64) (Record, error) {
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", pg.Ident(tbl.PhysicalName()))
	rec, err := e.queryOne(ctx, stmt, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Update patches exactly the payload's fields plus updated_at. Absent
// optional and required fields alike are left untouched.
func (e *Engine) Update(ctx context.Context, tbl *catalog.Table, id int64, payload map[string]any) (Record, error) {
	values, errs := field.CoercePayload(tbl.Fields, payload, false)
	if len(errs) > 0 {
		return nil, &field.ValidationError{Fields: errs}
	}

	var (
		set  []string
		args []any
	)
	for _, f := range tbl.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", pg.Ident(f.Name), len(args)))
	}
	if len(set) == 0 {
		return nil, ErrNoFieldsToUpdate
	}

	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s, \"updated_at\" = NOW() WHERE id = $%d RETURNING *",
		pg.Ident(tbl.PhysicalName()), strings.Join(set, ", "), len(args))

	rec, err := e.queryOne(ctx, stmt, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

// Delete removes the row keyed by id and returns it.
func (e *Engine) Delete(ctx context.Context, tbl *catalog.Table, id int64) (Record, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = $1 RETURNING *", pg.Ident(tbl.PhysicalName()))
	rec, err := e.queryOne(ctx, stmt, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete record: %w", err)
	}
	return rec, nil
}

// Count returns the relation's total row count.
func (e *Engine) Count(ctx context.Context, tbl *catalog.Table) (int, error) {
	var total int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", pg.Ident(tbl.PhysicalName()))
	if err := e.db.QueryRowContext(ctx, stmt).Scan(&total); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return total, nil
}

// searchClause builds the disjunctive ILIKE predicate over text fields.
func searchClause(tbl *catalog.Table, term string) (string, []any) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", nil
	}
	textFields := tbl.TextFields()
	if len(textFields) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(textFields))
	args := make([]any, 0, len(textFields))
	for _, f := range textFields {
		conds = append(conds, fmt.Sprintf("%s ILIKE $%d", pg.Ident(f.Name), len(args)+1))
		args = append(args, "%"+term+"%")
	}
	return " WHERE " + strings.Join(conds, " OR "), args
}

// sortColumn restricts ordering to system columns and declared fields;
// anything else falls back to id.
func sortColumn(tbl *catalog.Table, col string) string {
	switch col {
	case "", "id", "created_at", "updated_at":
		if col == "" {
			return "id"
		}
		return col
	}
	if _, ok := tbl.FieldByName(col); ok {
		return col
	}
	return "id"
}

func sortOrder(o SortOrder) string {
	if strings.EqualFold(string(o), string(SortAsc)) {
		return "ASC"
	}
	return "DESC"
}

func (e *Engine) queryOne(ctx context.Context, stmt string, args ...any) (Record, error) {
	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, sql.ErrNoRows
	}
	return recs[0], nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
