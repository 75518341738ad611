package leadform

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"land_leads_app_go/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FieldType is the input kind of a form field
type FieldType string

const (
	FieldText  FieldType = "text"
	FieldEmail FieldType = "email"
	FieldPhone FieldType = "phone"
	FieldEnum  FieldType = "enum"
)

// IsValid reports whether t is one of the supported field types
func (t FieldType) IsValid() bool {
	switch t {
	case FieldText, FieldEmail, FieldPhone, FieldEnum:
		return true
	}
	return false
}

// ErrInvalidSchema is wrapped by every schema construction error
var ErrInvalidSchema = errors.New("invalid field schema")

// Field describes one form input and its validation rules
type Field struct {
	Name     string
	Label    string // Defaults to a title-cased Name ("firstName" -> "First Name")
	Type     FieldType
	Required bool

	MinLength int // 0 disables the check
	MaxLength int // 0 disables the check

	Pattern        *regexp.Regexp
	PatternMessage string

	AllowedValues []string
	Default       string
}

// Schema is an ordered, immutable set of fields
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema checks the field invariants and builds a schema that keeps the given order
func NewSchema(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	s := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("%w: field name is empty", ErrInvalidSchema)
		}
		if models.IsReservedRecordKey(f.Name) {
			return nil, fmt.Errorf("%w: field name %q is reserved", ErrInvalidSchema, f.Name)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Name)
		}
		if f.Type == "" {
			f.Type = FieldText
		}
		if !f.Type.IsValid() {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, f.Name, f.Type)
		}
		if f.Type == FieldEnum {
			if len(f.AllowedValues) == 0 {
				return nil, fmt.Errorf("%w: enum field %q has no allowed values", ErrInvalidSchema, f.Name)
			}
			if f.Default != "" && !slices.Contains(f.AllowedValues, f.Default) {
				return nil, fmt.Errorf("%w: default %q of field %q is not an allowed value", ErrInvalidSchema, f.Default, f.Name)
			}
		}
		if f.MinLength < 0 || f.MaxLength < 0 || (f.MaxLength > 0 && f.MinLength > f.MaxLength) {
			return nil, fmt.Errorf("%w: field %q has inconsistent length bounds", ErrInvalidSchema, f.Name)
		}
		if f.Label == "" {
			f.Label = HumanizeFieldName(f.Name)
		}
		f.AllowedValues = slices.Clone(f.AllowedValues)

		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	return s, nil
}

// MustSchema is NewSchema for package-level literals; it panics on error
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the fields in schema order
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks a field up by name
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Names returns the field names in schema order
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Defaults returns the cleared form values: every field mapped to its default
func (s *Schema) Defaults() map[string]string {
	values := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		values[f.Name] = f.Default
	}
	return values
}

// HumanizeFieldName turns "firstName" or "property_state" into "First Name" / "Property State"
func HumanizeFieldName(name string) string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()

	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(words, " "))
}
