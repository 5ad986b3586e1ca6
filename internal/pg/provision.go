package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"veritab/internal/field"
)

// ProvisionError wraps a storage-level rejection of a DDL statement. The
// caller owning the matching catalog write decides whether to compensate.
type ProvisionError struct {
	Relation string
	Cause    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning %q failed: %v", e.Relation, e.Cause)
}

func (e *ProvisionError) Unwrap() error { return e.Cause }

// Provisioner turns table definitions into physical relations.
type Provisioner struct {
	db *sql.DB
}

func NewProvisioner(db *sql.DB) *Provisioner {
	return &Provisioner{db: db}
}

func relationName(projectID int64, name string) string {
	return fmt.Sprintf("%d_%s", projectID, name)
}

// CreatePhysical creates the {projectID}_{name} relation with the system
// identity and timestamp columns plus one column per declared field.
func (p *Provisioner) CreatePhysical(ctx context.Context, projectID int64, name string, fields []field.Field) error {
	rel := relationName(projectID, name)
	stmt, err := CreateTableSQL(rel, fields)
	if err != nil {
		return &ProvisionError{Relation: rel, Cause: err}
	}
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return &ProvisionError{Relation: rel, Cause: err}
	}
	return nil
}

// AddColumns issues one additive ALTER TABLE per new field. It never
// alters or drops existing columns. A duplicate-column rejection is
// tolerated so a retried extend converges.
func (p *Provisioner) AddColumns(ctx context.Context, projectID int64, name string, newFields []field.Field) error {
	rel := relationName(projectID, name)
	for _, f := range newFields {
		stmt, err := AddColumnSQL(rel, f)
		if err != nil {
			return &ProvisionError{Relation: rel, Cause: err}
		}
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return &ProvisionError{Relation: rel, Cause: err}
		}
	}
	return nil
}

// DropPhysical removes the relation if present. Absence is not an error.
func (p *Provisioner) DropPhysical(ctx context.Context, projectID int64, name string) error {
	rel := relationName(projectID, name)
	if _, err := p.db.ExecContext(ctx, DropTableSQL(rel)); err != nil {
		return &ProvisionError{Relation: rel, Cause: err}
	}
	return nil
}

// duplicate_column (42701)
func isDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42701"
}
