package intake

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// validValues returns a field map that passes full-record validation.
func validValues() map[string]any {
	future := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	return map[string]any{
		"clientName":              "Lakeside Clinic",
		"contactEmail":            "billing@lakeside.example",
		"contactPhone":            "+15551234567",
		"practiceAddress":         "1 Harbor Way, Portland",
		"pointOfContact":          "Dana Reyes",
		"licenseNumbers":          "OR-12345",
		"certificationExpiryDate": future,
		"payerEnrollmentStatus":   "in_progress",
		"clearinghouseSelection":  "availity",
		"providerNpiNumbers":      "1234567890, 0987654321",
		"insurancePlans": []any{
			map[string]any{
				"planId":                  "plan-aetna",
				"enrollmentEffectiveDate": future,
				"notes":                   "primary plan",
			},
		},
		"policyAcknowledgment": true,
		"slaAgreedDate":        "2026-01-15",
		"meetingCadence":       "weekly",
	}
}

func hasFieldError(errs []FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateRecordAcceptsCompleteRecord(t *testing.T) {
	if errs := ValidateRecord(validValues()); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateRecordRequiredFields(t *testing.T) {
	values := validValues()
	delete(values, "clientName")
	delete(values, "contactEmail")

	errs := ValidateRecord(values)
	if !hasFieldError(errs, "clientName") {
		t.Error("missing clientName not reported")
	}
	if !hasFieldError(errs, "contactEmail") {
		t.Error("missing contactEmail not reported")
	}
}

func TestValidateRecordFormats(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"bad email", "contactEmail", "not-an-email"},
		{"phone with letters", "contactPhone", "555-CALL"},
		{"phone leading zero", "contactPhone", "0123456"},
		{"npi with letters", "providerNpiNumbers", "12345abcde"},
		{"npi wrong length", "providerNpiNumbers", "12345, 1234567890"},
		{"zip too short", "practiceZipCode", "972"},
		{"client name too long", "clientName", strings.Repeat("x", 101)},
		{"address too long", "practiceAddress", strings.Repeat("x", 501)},
		{"expiry in the past", "certificationExpiryDate", "2020-01-01"},
		{"percentage above 100", "feeSchedulePercentage", 150.0},
		{"percentage below 0", "tasksCompletedPercentage", -5.0},
		{"reviewer comments too long", "reviewerComments", strings.Repeat("x", 2001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := validValues()
			values[tt.field] = tt.value
			errs := ValidateRecord(values)
			if !hasFieldError(errs, tt.field) {
				t.Errorf("expected error on %s for %v", tt.field, tt.value)
			}
		})
	}
}

func TestLengthLimitsCountRunesNotBytes(t *testing.T) {
	values := validValues()

	// 100 two-byte runes: over the limit in bytes, within it in characters.
	values["clientName"] = strings.Repeat("é", 100)
	if errs := ValidateRecord(values); hasFieldError(errs, "clientName") {
		t.Errorf("100-rune name rejected: %v", errs)
	}

	values["clientName"] = strings.Repeat("é", 101)
	if errs := ValidateRecord(values); !hasFieldError(errs, "clientName") {
		t.Error("101-rune name not reported")
	}
}

func TestValidateRecordOptionalFieldsMayBeEmpty(t *testing.T) {
	values := validValues()
	values["practiceZipCode"] = ""
	values["contactName"] = ""
	values["feeSchedulePercentage"] = nil

	if errs := ValidateRecord(values); len(errs) != 0 {
		t.Fatalf("expected no errors for empty optional fields, got %v", errs)
	}
}

func TestPolicyAcknowledgmentMustBeTrue(t *testing.T) {
	values := validValues()

	values["policyAcknowledgment"] = false
	if errs := ValidateRecord(values); !hasFieldError(errs, "policyAcknowledgment") {
		t.Error("false acknowledgment not reported")
	}

	delete(values, "policyAcknowledgment")
	if errs := ValidateRecord(values); !hasFieldError(errs, "policyAcknowledgment") {
		t.Error("missing acknowledgment not reported")
	}
}

func TestInsurancePlansRules(t *testing.T) {
	t.Run("empty list rejected", func(t *testing.T) {
		values := validValues()
		values["insurancePlans"] = []any{}
		if errs := ValidateRecord(values); !hasFieldError(errs, "insurancePlans") {
			t.Error("empty plan list not reported")
		}
	})

	t.Run("plan without selection rejected", func(t *testing.T) {
		values := validValues()
		values["insurancePlans"] = []any{
			map[string]any{"enrollmentEffectiveDate": "2026-06-01"},
		}
		if errs := ValidateRecord(values); !hasFieldError(errs, "insurancePlans") {
			t.Error("plan without planId not reported")
		}
	})

	t.Run("plan without effective date rejected", func(t *testing.T) {
		values := validValues()
		values["insurancePlans"] = []any{
			map[string]any{"planId": "plan-aetna"},
		}
		if errs := ValidateRecord(values); !hasFieldError(errs, "insurancePlans") {
			t.Error("plan without effective date not reported")
		}
	})

	t.Run("oversized plan notes rejected", func(t *testing.T) {
		values := validValues()
		values["insurancePlans"] = []any{
			map[string]any{
				"planId":                  "plan-aetna",
				"enrollmentEffectiveDate": "2026-06-01",
				"notes":                   strings.Repeat("x", 2001),
			},
		}
		if errs := ValidateRecord(values); !hasFieldError(errs, "insurancePlans") {
			t.Error("oversized notes not reported")
		}
	})
}

func TestValidateFieldsScopesToNames(t *testing.T) {
	values := map[string]any{
		"contactEmail": "bogus",
	}

	// Only the named field is checked; missing required fields elsewhere
	// do not fail a section save.
	errs, err := ValidateFields(values, []string{"contactEmail", "contactName"})
	if err != nil {
		t.Fatalf("ValidateFields() error = %v", err)
	}
	if !hasFieldError(errs, "contactEmail") {
		t.Error("invalid email not reported")
	}
	if hasFieldError(errs, "clientName") {
		t.Error("unnamed field was validated")
	}
}

func TestValidateFieldsUnknownName(t *testing.T) {
	_, err := ValidateFields(map[string]any{}, []string{"notARealField"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestDateCoercion(t *testing.T) {
	values := validValues()
	values["slaAgreedDate"] = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if errs := ValidateRecord(values); len(errs) != 0 {
		t.Fatalf("time.Time date rejected: %v", errs)
	}

	values["slaAgreedDate"] = "2026-01-15T00:00:00Z"
	if errs := ValidateRecord(values); len(errs) != 0 {
		t.Fatalf("RFC3339 date rejected: %v", errs)
	}

	values["slaAgreedDate"] = "15/01/2026"
	if errs := ValidateRecord(values); !hasFieldError(errs, "slaAgreedDate") {
		t.Error("unparseable date not reported")
	}
}
