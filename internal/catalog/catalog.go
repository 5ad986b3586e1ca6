package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"veritab/internal/field"
)

var (
	ErrTableNotFound  = errors.New("table not found")
	ErrDuplicateTable = errors.New("table already exists")
)

// Table is one project's declared schema for a logical table. The field
// list drives both physical layout and payload validation, in declaration
// order.
type Table struct {
	ID          int64         `json:"id"`
	ProjectID   int64         `json:"-"`
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName"`
	Description string        `json:"description,omitempty"`
	Fields      []field.Field `json:"fields"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// PhysicalName derives the backing relation name. Both parts are already
// restricted to [a-z0-9_] so the result is safe to interpolate quoted.
func (t *Table) PhysicalName() string {
	return fmt.Sprintf("%d_%s", t.ProjectID, t.Name)
}

// FieldByName returns the declared field, if any.
func (t *Table) FieldByName(name string) (field.Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// NewFields filters in to the fields whose names are not declared yet.
// Already-declared names are skipped, never treated as edits.
func (t *Table) NewFields(in []field.Field) []field.Field {
	var out []field.Field
	for _, f := range in {
		if _, exists := t.FieldByName(f.Name); exists {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TextFields returns the text-typed fields, the only ones searched by ILIKE.
func (t *Table) TextFields() []field.Field {
	var out []field.Field
	for _, f := range t.Fields {
		if f.Type == field.TypeText {
			out = append(out, f)
		}
	}
	return out
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_]`)

// NormalizeName lowercases a logical table name and strips everything
// outside [a-z0-9_].
func NormalizeName(name string) string {
	return unsafeChars.ReplaceAllString(strings.ToLower(name), "")
}

// Catalog persists table definitions in the project_tables relation,
// one row per (project, name), fields as a JSONB blob.
type Catalog struct {
	db *sql.DB
}

func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

const tableColumns = "id, project_id, name, display_name, description, fields, created_at, updated_at"

// Define creates a new table definition. The caller is expected to have
// validated the field declarations; Define re-checks so no path can write
// an invalid blob.
func (c *Catalog) Define(ctx context.Context, projectID int64, name, displayName, description string, fields []field.Field) (*Table, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, &field.ValidationError{Fields: []field.FieldError{
			{Code: field.ErrInvalidField, Field: "name", Message: "table name is required"},
		}}
	}
	if errs := field.ValidateDeclaration(fields); len(errs) > 0 {
		return nil, &field.ValidationError{Fields: errs}
	}
	if displayName == "" {
		displayName = name
	}

	blob, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}

	row := c.db.QueryRowContext(ctx, `
		INSERT INTO project_tables (project_id, name, display_name, description, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+tableColumns,
		projectID, name, displayName, nullable(description), string(blob))

	tbl, err := scanTable(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateTable
		}
		return nil, fmt.Errorf("define table: %w", err)
	}
	return tbl, nil
}

// Lookup resolves a table definition by project and normalized name.
func (c *Catalog) Lookup(ctx context.Context, projectID int64, name string) (*Table, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+tableColumns+`
		FROM project_tables
		WHERE project_id = $1 AND name = $2`,
		projectID, NormalizeName(name))

	tbl, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup table: %w", err)
	}
	return tbl, nil
}

// ListForProject returns the project's tables, most recently created first.
func (c *Catalog) ListForProject(ctx context.Context, projectID int64) ([]*Table, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+tableColumns+`
		FROM project_tables
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []*Table
	for rows.Next() {
		tbl, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		out = append(out, tbl)
	}
	return out, rows.Err()
}

// Extend appends fields whose names are not yet declared. Already-declared
// names in the input are ignored, never treated as edits. It returns the
// updated definition plus the fields that were actually added, so the
// caller can mirror them onto the physical relation.
func (c *Catalog) Extend(ctx context.Context, projectID int64, name string, newFields []field.Field) (*Table, []field.Field, error) {
	if errs := field.ValidateDeclaration(newFields); len(errs) > 0 {
		return nil, nil, &field.ValidationError{Fields: errs}
	}

	tbl, err := c.Lookup(ctx, projectID, name)
	if err != nil {
		return nil, nil, err
	}

	added := tbl.NewFields(newFields)
	if len(added) == 0 {
		return tbl, nil, nil
	}

	merged := append(append([]field.Field{}, tbl.Fields...), added...)
	blob, err := json.Marshal(merged)
	if err != nil {
		return nil, nil, fmt.Errorf("encode fields: %w", err)
	}

	row := c.db.QueryRowContext(ctx, `
		UPDATE project_tables
		SET fields = $1, updated_at = NOW()
		WHERE project_id = $2 AND name = $3
		RETURNING `+tableColumns,
		string(blob), projectID, tbl.Name)

	updated, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrTableNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("extend table: %w", err)
	}
	return updated, added, nil
}

// UpdateMetadata patches display name and description. Nil means unchanged.
func (c *Catalog) UpdateMetadata(ctx context.Context, projectID int64, name string, displayName, description *string) (*Table, error) {
	row := c.db.QueryRowContext(ctx, `
		UPDATE project_tables
		SET display_name = COALESCE($1, display_name),
		    description = COALESCE($2, description),
		    updated_at = NOW()
		WHERE project_id = $3 AND name = $4
		RETURNING `+tableColumns,
		displayName, description, projectID, NormalizeName(name))

	tbl, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update table metadata: %w", err)
	}
	return tbl, nil
}

// Remove deletes the catalog entry and returns it, so the caller can drop
// the physical relation it named.
func (c *Catalog) Remove(ctx context.Context, projectID int64, name string) (*Table, error) {
	row := c.db.QueryRowContext(ctx, `
		DELETE FROM project_tables
		WHERE project_id = $1 AND name = $2
		RETURNING `+tableColumns,
		projectID, NormalizeName(name))

	tbl, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("remove table: %w", err)
	}
	return tbl, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (*Table, error) {
	var (
		tbl         Table
		displayName sql.NullString
		description sql.NullString
		blob        []byte
	)
	err := row.Scan(&tbl.ID, &tbl.ProjectID, &tbl.Name, &displayName, &description, &blob, &tbl.CreatedAt, &tbl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tbl.DisplayName = displayName.String
	tbl.Description = description.String
	if err := json.Unmarshal(blob, &tbl.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return &tbl, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
