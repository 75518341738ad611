package leadform

import (
	"fmt"
	"html"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MinPhoneDigits is the fewest digits a phone number may carry
const MinPhoneDigits = 10

// Values is a validated record: every schema field mapped to its cleaned value
type Values map[string]string

// FieldErrors maps a field name to a single human-readable message
type FieldErrors map[string]string

// Error implements error so a FieldErrors can travel through error returns
func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e[name]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// A Policy is safe for concurrent use once built.
var stripMarkup = bluemonday.StrictPolicy()

var phoneChars = regexp.MustCompile(`^[0-9+().\-\s]+$`)

// Validate applies schema to raw input. Exactly one of the results is non-nil.
// Unknown keys are ignored and missing keys count as empty. It has no side effects.
func Validate(schema *Schema, raw map[string]string) (Values, FieldErrors) {
	values := make(Values, len(schema.fields))
	errs := FieldErrors{}

	for _, f := range schema.fields {
		value, msg := checkField(f, raw[f.Name])
		if msg != "" {
			errs[f.Name] = msg
			continue
		}
		values[f.Name] = value
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return values, nil
}

// ValidateField checks a single field for live feedback.
// It returns "" when the value is acceptable or the field is unknown.
func ValidateField(schema *Schema, name, value string) string {
	f, ok := schema.Field(name)
	if !ok {
		return ""
	}
	_, msg := checkField(f, value)
	return msg
}

// Clean trims a raw value and strips any markup from it
func Clean(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	// StrictPolicy escapes entities; unescape so "A & B" is stored as typed.
	return strings.TrimSpace(html.UnescapeString(stripMarkup.Sanitize(v)))
}

func checkField(f Field, raw string) (string, string) {
	value := Clean(raw)
	if value == "" {
		value = f.Default
	}

	if value == "" {
		if f.Required {
			return "", fmt.Sprintf("%s is required", f.Label)
		}
		return "", ""
	}

	length := utf8.RuneCountInString(value)
	if f.MinLength > 0 && length < f.MinLength {
		return "", fmt.Sprintf("%s must be at least %d characters", f.Label, f.MinLength)
	}
	if f.MaxLength > 0 && length > f.MaxLength {
		return "", fmt.Sprintf("%s must be at most %d characters", f.Label, f.MaxLength)
	}

	switch f.Type {
	case FieldEmail:
		if !isEmail(value) {
			return "", "Please enter a valid email address"
		}
	case FieldPhone:
		if !isPhone(value) {
			return "", "Please enter a valid phone number"
		}
	case FieldEnum:
		if !slices.Contains(f.AllowedValues, value) {
			return "", fmt.Sprintf("%s must be one of: %s", f.Label, strings.Join(f.AllowedValues, ", "))
		}
	}

	if f.Pattern != nil && !f.Pattern.MatchString(value) {
		if f.PatternMessage != "" {
			return "", f.PatternMessage
		}
		return "", fmt.Sprintf("%s has an invalid format", f.Label)
	}

	return value, ""
}

// isEmail accepts a bare RFC 5322 address whose domain has at least one dot
func isEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(value, "@")
	domain := value[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func isPhone(value string) bool {
	if !phoneChars.MatchString(value) {
		return false
	}
	digits := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= MinPhoneDigits
}
