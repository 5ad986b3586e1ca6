package field

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Type is one of the supported logical field types. The set is closed:
// every consumer (DDL mapping, coercion, search) switches over it, so a
// new type is a single enumerated case in each place.
type Type string

const (
	TypeText    Type = "text"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeJSON    Type = "json"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeBoolean, TypeDate, TypeJSON:
		return true
	}
	return false
}

// Field is one declared column of a project table.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Type     Type   `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	ErrMissingField = "missing_field"
	ErrTypeMismatch = "type_mismatch"
	ErrInvalidField = "invalid_field"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// ValidationError carries all per-field failures of one payload or declaration.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	return fmt.Sprintf("%d invalid fields", len(e.Fields))
}

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateDeclaration checks a field list as supplied on table create/extend.
// Names must already be normalized to the restricted charset; that is what
// stands between user input and interpolated SQL identifiers.
func ValidateDeclaration(fields []Field) []FieldError {
	var errs []FieldError
	if len(fields) == 0 {
		errs = append(errs, ferr(ErrInvalidField, "fields", "at least one field is required"))
		return errs
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			errs = append(errs, ferr(ErrInvalidField, "name", "field name is required"))
			continue
		}
		if !nameRe.MatchString(f.Name) {
			errs = append(errs, ferr(ErrInvalidField, f.Name, "field name must match [a-z][a-z0-9_]*"))
			continue
		}
		if !f.Type.Valid() {
			errs = append(errs, ferr(ErrInvalidField, f.Name, fmt.Sprintf("unsupported type %q", f.Type)))
			continue
		}
		switch f.Name {
		case "id", "created_at", "updated_at":
			errs = append(errs, ferr(ErrInvalidField, f.Name, fmt.Sprintf("field %q shadows a system column", f.Name)))
			continue
		}
		if _, dup := seen[f.Name]; dup {
			errs = append(errs, ferr(ErrInvalidField, f.Name, "field name duplicated"))
			continue
		}
		seen[f.Name] = struct{}{}
	}
	return errs
}

// Coerce converts a raw JSON-decoded value into its storage representation
// for the field's type. A nil value passes through untouched; the required
// check happens in CoercePayload before coercion is reached.
func Coerce(f Field, v any) (any, *FieldError) {
	if v == nil && f.Type != TypeBoolean {
		return nil, nil
	}
	switch f.Type {
	case TypeText:
		return v, nil
	case TypeNumber:
		n, err := toNumber(v)
		if err != nil {
			e := ferr(ErrTypeMismatch, f.Name, fmt.Sprintf("field %q must be a number", f.Name))
			return nil, &e
		}
		return n, nil
	case TypeBoolean:
		return truthy(v), nil
	case TypeDate:
		t, err := toDate(v)
		if err != nil {
			e := ferr(ErrTypeMismatch, f.Name, fmt.Sprintf("field %q must be a valid date", f.Name))
			return nil, &e
		}
		return t, nil
	case TypeJSON:
		return toJSONText(v), nil
	}
	// unknown type slipped past declaration validation
	e := ferr(ErrInvalidField, f.Name, fmt.Sprintf("unsupported type %q", f.Type))
	return nil, &e
}

// CoercePayload validates a payload against the declared fields and returns
// the storage-ready values for exactly the fields present in the payload.
// With requireAll set (inserts) every required field must be present and
// non-null; without it (partial updates) absent fields are skipped.
func CoercePayload(fields []Field, payload map[string]any, requireAll bool) (map[string]any, []FieldError) {
	var errs []FieldError
	out := make(map[string]any, len(payload))
	for _, f := range fields {
		v, present := payload[f.Name]
		if !present || v == nil {
			if f.Required && (requireAll || present) {
				errs = append(errs, ferr(ErrMissingField, f.Name, fmt.Sprintf("required field %q is missing", f.Name)))
				continue
			}
			if !present {
				continue
			}
		}
		cv, ferrp := Coerce(f, v)
		if ferrp != nil {
			errs = append(errs, *ferrp)
			continue
		}
		out[f.Name] = cv
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// truthy never fails: anything that does not look false is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case string:
		s := strings.TrimSpace(t)
		if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return b
		}
		return s != ""
	default:
		return true
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparsable date %q", s)
	default:
		return time.Time{}, fmt.Errorf("not a date: %T", v)
	}
}

// toJSONText serializes object or array values; scalars are stored verbatim
// and treated as pre-serialized JSON.
func toJSONText(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}
