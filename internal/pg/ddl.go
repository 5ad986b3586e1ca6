package pg

import (
	"fmt"
	"strings"

	"veritab/internal/field"
)

// Ident quotes an identifier. Inputs are already restricted to [a-z0-9_]
// at definition time; quoting covers names starting with a digit (the
// project-prefixed relation names) and reserved words.
func Ident(s string) string { return `"` + strings.ToLower(s) + `"` }

// columnType maps a logical field type to its storage type.
func columnType(t field.Type) (string, error) {
	switch t {
	case field.TypeText:
		return "TEXT", nil
	case field.TypeNumber:
		return "NUMERIC", nil
	case field.TypeBoolean:
		return "BOOLEAN", nil
	case field.TypeDate:
		return "TIMESTAMPTZ", nil
	case field.TypeJSON:
		return "JSONB", nil
	default:
		return "", fmt.Errorf("unknown type: %s", t)
	}
}

func columnDef(f field.Field) (string, error) {
	typ, err := columnType(f.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", f.Name, err)
	}
	def := fmt.Sprintf("%s %s", Ident(f.Name), typ)
	if f.Required {
		def += " NOT NULL"
	}
	return def, nil
}

// system columns every physical relation carries
var systemColumns = []string{
	`"id" BIGSERIAL PRIMARY KEY`,
	`"created_at" TIMESTAMPTZ NOT NULL DEFAULT NOW()`,
	`"updated_at" TIMESTAMPTZ NOT NULL DEFAULT NOW()`,
}

// CreateTableSQL builds the CREATE TABLE statement for a physical relation.
// Column order follows field declaration order after the system columns.
func CreateTableSQL(relation string, fields []field.Field) (string, error) {
	cols := append([]string{}, systemColumns...)
	for _, f := range fields {
		if isSystemName(f.Name) {
			return "", fmt.Errorf("column %s: shadows a system column", f.Name)
		}
		def, err := columnDef(f)
		if err != nil {
			return "", err
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", Ident(relation), strings.Join(cols, ",\n  ")), nil
}

// AddColumnSQL builds one additive ALTER TABLE statement. Added columns are
// always nullable: existing rows cannot satisfy NOT NULL retroactively.
func AddColumnSQL(relation string, f field.Field) (string, error) {
	if isSystemName(f.Name) {
		return "", fmt.Errorf("column %s: shadows a system column", f.Name)
	}
	typ, err := columnType(f.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", f.Name, err)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", Ident(relation), Ident(f.Name), typ), nil
}

// DropTableSQL builds the idempotent drop statement.
func DropTableSQL(relation string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", Ident(relation))
}

func isSystemName(name string) bool {
	switch strings.ToLower(name) {
	case "id", "created_at", "updated_at":
		return true
	}
	return false
}
