package intake

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldError is one structured validation failure. Expected invalid input
// never surfaces as an error return, only as FieldError values.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	npiPattern   = regexp.MustCompile(`^[\d\s,]+$`)
	npiGroup     = regexp.MustCompile(`^\d{10}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}$`)
)

// ValidateFields validates only the named fields against the schema.
// A name outside the schema is the one hard error condition.
func ValidateFields(values map[string]any, names []string) ([]FieldError, error) {
	var errs []FieldError
	for _, name := range names {
		field, ok := fieldIndex[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		errs = append(errs, validateField(field, values[name])...)
	}
	return errs, nil
}

// ValidateRecord validates the whole schema, including the cross-field
// submission rules. Used by submit; section saves use ValidateFields.
func ValidateRecord(values map[string]any) []FieldError {
	var errs []FieldError
	for _, field := range fields {
		errs = append(errs, validateField(field, values[field.Name])...)
	}
	return errs
}

func validateField(field Field, value any) []FieldError {
	label := fieldLabel(field.Name)

	switch field.Kind {
	case KindString:
		text, _ := asString(value)
		text = strings.TrimSpace(text)
		if text == "" {
			if field.Required {
				return fail(field, "%s is required", label)
			}
			return nil
		}
		if field.MaxLen > 0 && utf8.RuneCountInString(text) > field.MaxLen {
			return fail(field, "%s must be at most %d characters", label, field.MaxLen)
		}
		switch field.Format {
		case formatEmail:
			if !emailPattern.MatchString(text) {
				return fail(field, "Invalid email format")
			}
		case formatPhone:
			if !phonePattern.MatchString(text) {
				return fail(field, "Invalid phone number format")
			}
		case formatNPI:
			if !npiPattern.MatchString(text) {
				return fail(field, "NPI numbers must contain only digits, spaces, and commas")
			}
			for _, group := range splitNPI(text) {
				if !npiGroup.MatchString(group) {
					return fail(field, "Each NPI must be a 10-digit number")
				}
			}
		case formatZip:
			if !zipPattern.MatchString(text) {
				return fail(field, "ZIP code must be 5 digits")
			}
		}

	case KindBool:
		set, ok := asBool(value)
		if field.Format == formatMustBeTrue {
			if !ok || !set {
				return fail(field, "%s is required", label)
			}
		}

	case KindNumber:
		num, ok := asNumber(value)
		if !ok {
			if field.Required {
				return fail(field, "%s is required", label)
			}
			return nil
		}
		if field.Format == formatPercent && (num < 0 || num > 100) {
			return fail(field, "%s must be between 0 and 100", label)
		}

	case KindDate:
		when, ok := asDate(value)
		if !ok {
			if field.Required {
				return fail(field, "%s is required", label)
			}
			return nil
		}
		if field.Format == formatFutureDate && !when.After(time.Now()) {
			return fail(field, "%s must be in the future", label)
		}

	case KindStringList:
		// Document key lists carry no constraints beyond shape.

	case KindPlans:
		plans, ok := asList(value)
		if !ok || len(plans) == 0 {
			if field.Required {
				return fail(field, "At least one insurance plan must be selected")
			}
			return nil
		}
		var errs []FieldError
		for i, raw := range plans {
			plan, _ := raw.(map[string]any)
			planID, _ := asString(plan["planId"])
			if strings.TrimSpace(planID) == "" {
				errs = append(errs, FieldError{Field: field.Name, Message: fmt.Sprintf("Plan %d is missing a plan selection", i+1)})
			}
			if _, ok := asDate(plan["enrollmentEffectiveDate"]); !ok {
				errs = append(errs, FieldError{Field: field.Name, Message: fmt.Sprintf("Plan %d requires an enrollment effective date", i+1)})
			}
			if notes, _ := asString(plan["notes"]); utf8.RuneCountInString(notes) > 2000 {
				errs = append(errs, FieldError{Field: field.Name, Message: fmt.Sprintf("Plan %d notes must be at most 2000 characters", i+1)})
			}
		}
		return errs
	}

	return nil
}

func fail(field Field, format string, args ...any) []FieldError {
	return []FieldError{{Field: field.Name, Message: fmt.Sprintf(format, args...)}}
}

func splitNPI(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// fieldLabel renders a camelCase field name as a human-readable label.
func fieldLabel(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i == 0 {
			b.WriteRune(r - ('a' - 'A'))
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func asString(value any) (string, bool) {
	text, ok := value.(string)
	return text, ok
}

func asBool(value any) (bool, bool) {
	set, ok := value.(bool)
	return set, ok
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// asDate accepts time.Time or the two wire layouts the UI sends.
func asDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v, true
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return time.Time{}, false
		}
		if when, err := time.Parse(time.RFC3339, text); err == nil {
			return when, true
		}
		if when, err := time.Parse("2006-01-02", text); err == nil {
			return when, true
		}
	}
	return time.Time{}, false
}

func asList(value any) ([]any, bool) {
	list, ok := value.([]any)
	return list, ok
}
