// Package intake defines the client intake record schema: the field
// registry, the section groupings, and the per-field validation rules.
package intake

import "errors"

type Section string

const (
	SectionClientInfo    Section = "client_info"
	SectionCredentialing Section = "credentialing"
	SectionBilling       Section = "billing"
	SectionEnrollment    Section = "enrollment"
	SectionPolicies      Section = "policies"
	SectionSLA           Section = "sla"

	// sectionProgress holds reviewer-facing fields that are not edited
	// through the section save flow.
	sectionProgress Section = "progress"
)

type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
	KindDate
	KindStringList
	KindPlans
)

// Field describes one schema entry. Zero-value rules mean "no constraint".
type Field struct {
	Name     string
	Section  Section
	Kind     Kind
	Required bool
	MaxLen   int
	Format   format
}

type format int

const (
	formatNone format = iota
	formatEmail
	formatPhone
	formatNPI
	formatZip
	formatFutureDate
	formatPercent
	formatMustBeTrue
)

var ErrUnknownField = errors.New("unknown field")

// fields is the full intake schema, in display order. The section
// assignments are static configuration, not reflected at runtime.
var fields = []Field{
	// Client & Onboarding Info
	{Name: "clientName", Section: SectionClientInfo, Kind: KindString, Required: true, MaxLen: 100},
	{Name: "contactName", Section: SectionClientInfo, Kind: KindString, MaxLen: 100},
	{Name: "contactEmail", Section: SectionClientInfo, Kind: KindString, Required: true, MaxLen: 255, Format: formatEmail},
	{Name: "contactPhone", Section: SectionClientInfo, Kind: KindString, Required: true, Format: formatPhone},
	{Name: "practiceAddress", Section: SectionClientInfo, Kind: KindString, Required: true, MaxLen: 500},
	{Name: "practiceZipCode", Section: SectionClientInfo, Kind: KindString, Format: formatZip},
	{Name: "pointOfContact", Section: SectionClientInfo, Kind: KindString, Required: true},
	{Name: "startDate", Section: SectionClientInfo, Kind: KindDate},
	{Name: "kickoffCallCompleted", Section: SectionClientInfo, Kind: KindString},
	{Name: "kickoffCallDate", Section: SectionClientInfo, Kind: KindDate},
	{Name: "relationshipManager", Section: SectionClientInfo, Kind: KindString},
	{Name: "assignedAccountManager", Section: SectionClientInfo, Kind: KindString},
	{Name: "assignedBillingLead", Section: SectionClientInfo, Kind: KindString},
	{Name: "assignedCredentialingLead", Section: SectionClientInfo, Kind: KindString},
	{Name: "assignedITLead", Section: SectionClientInfo, Kind: KindString},
	{Name: "practiceFacilityName", Section: SectionClientInfo, Kind: KindString},
	{Name: "practiceFacilityAddress", Section: SectionClientInfo, Kind: KindString, MaxLen: 500},

	// Credentialing & Compliance
	{Name: "licenseNumbers", Section: SectionCredentialing, Kind: KindString, Required: true, MaxLen: 200},
	{Name: "certificationExpiryDate", Section: SectionCredentialing, Kind: KindDate, Required: true, Format: formatFutureDate},
	{Name: "complianceDocuments", Section: SectionCredentialing, Kind: KindStringList},
	{Name: "medicareEnrollmentStatus", Section: SectionCredentialing, Kind: KindString},
	{Name: "medicaidEnrollmentStatus", Section: SectionCredentialing, Kind: KindString},
	{Name: "commercialPayerEnrollmentStatus", Section: SectionCredentialing, Kind: KindString},
	{Name: "caqhProfileStatus", Section: SectionCredentialing, Kind: KindString},
	{Name: "pecosAccessReceived", Section: SectionCredentialing, Kind: KindBool},
	{Name: "credentialingTrackerCreated", Section: SectionCredentialing, Kind: KindBool},
	{Name: "w9Received", Section: SectionCredentialing, Kind: KindBool},
	{Name: "licenseCopyReceived", Section: SectionCredentialing, Kind: KindBool},
	{Name: "deaCopyReceived", Section: SectionCredentialing, Kind: KindBool},
	{Name: "boardCertReceived", Section: SectionCredentialing, Kind: KindBool},
	{Name: "degreeCertReceived", Section: SectionCredentialing, Kind: KindBool},
	{Name: "malpracticeCOIReceived", Section: SectionCredentialing, Kind: KindBool},

	// Billing Setup
	{Name: "payerEnrollmentStatus", Section: SectionBilling, Kind: KindString, Required: true},
	{Name: "clearinghouseSelection", Section: SectionBilling, Kind: KindString, Required: true},
	{Name: "providerNpiNumbers", Section: SectionBilling, Kind: KindString, Required: true, Format: formatNPI},
	{Name: "billingPathway", Section: SectionBilling, Kind: KindString},
	{Name: "chargeMasterCreated", Section: SectionBilling, Kind: KindBool},
	{Name: "feeSchedulePercentage", Section: SectionBilling, Kind: KindNumber, Format: formatPercent},
	{Name: "payerFeeScheduleUploaded", Section: SectionBilling, Kind: KindBool},
	{Name: "testClaimsSubmitted", Section: SectionBilling, Kind: KindBool},

	// Enrollment Setup
	{Name: "insurancePlans", Section: SectionEnrollment, Kind: KindPlans, Required: true},
	{Name: "eraEnrollmentStatus", Section: SectionEnrollment, Kind: KindString},
	{Name: "ediEnrollmentStatus", Section: SectionEnrollment, Kind: KindString},
	{Name: "eftEnrollmentStatus", Section: SectionEnrollment, Kind: KindString},
	{Name: "billingPortalSetup", Section: SectionEnrollment, Kind: KindBool},
	{Name: "sftpSetupComplete", Section: SectionEnrollment, Kind: KindBool},
	{Name: "eligibilityToolAccess", Section: SectionEnrollment, Kind: KindBool},
	{Name: "allPortalAccessComplete", Section: SectionEnrollment, Kind: KindBool},
	{Name: "loginCredentialsShared", Section: SectionEnrollment, Kind: KindBool},
	{Name: "portalTestingCompleted", Section: SectionEnrollment, Kind: KindBool},

	// Policies & Documentation
	{Name: "policyAcknowledgment", Section: SectionPolicies, Kind: KindBool, Required: true, Format: formatMustBeTrue},
	{Name: "policyFiles", Section: SectionPolicies, Kind: KindStringList},
	{Name: "patientStatementProcessFinalized", Section: SectionPolicies, Kind: KindBool},
	{Name: "refundPolicyFinalized", Section: SectionPolicies, Kind: KindBool},
	{Name: "creditBalancePolicyFinalized", Section: SectionPolicies, Kind: KindBool},
	{Name: "patientCallHandlingSetup", Section: SectionPolicies, Kind: KindBool},
	{Name: "billingManualDelivered", Section: SectionPolicies, Kind: KindBool},
	{Name: "userGuideDelivered", Section: SectionPolicies, Kind: KindBool},
	{Name: "billingAppOffered", Section: SectionPolicies, Kind: KindBool},
	{Name: "reportingRequirementsProvided", Section: SectionPolicies, Kind: KindBool},

	// SLAs & Meetings
	{Name: "slaAgreedDate", Section: SectionSLA, Kind: KindDate, Required: true},
	{Name: "meetingCadence", Section: SectionSLA, Kind: KindString, Required: true},
	{Name: "slaChargeLagSet", Section: SectionSLA, Kind: KindBool},
	{Name: "slaPaymentPostingSet", Section: SectionSLA, Kind: KindBool},
	{Name: "slaDenialFollowUpSet", Section: SectionSLA, Kind: KindBool},
	{Name: "weeklyInternalMeetingsSetup", Section: SectionSLA, Kind: KindBool},
	{Name: "weeklyClientMeetingsSetup", Section: SectionSLA, Kind: KindBool},

	// Progress tracking (reviewer-facing, outside the section save flow)
	{Name: "reviewerComments", Section: sectionProgress, Kind: KindString, MaxLen: 2000},
	{Name: "tasksCompletedPercentage", Section: sectionProgress, Kind: KindNumber, Format: formatPercent},
}

var fieldIndex = func() map[string]Field {
	index := make(map[string]Field, len(fields))
	for _, f := range fields {
		index[f.Name] = f
	}
	return index
}()

var editableSections = []Section{
	SectionClientInfo,
	SectionCredentialing,
	SectionBilling,
	SectionEnrollment,
	SectionPolicies,
	SectionSLA,
}

// Sections returns the savable sections in form order.
func Sections() []Section {
	out := make([]Section, len(editableSections))
	copy(out, editableSections)
	return out
}

func ValidSection(name string) bool {
	for _, s := range editableSections {
		if s == Section(name) {
			return true
		}
	}
	return false
}

// SectionFields returns the ordered field names belonging to a section.
func SectionFields(section Section) []string {
	var names []string
	for _, f := range fields {
		if f.Section == section {
			names = append(names, f.Name)
		}
	}
	return names
}

// FieldNames returns every schema field name in display order.
func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// FieldSection maps a field name to its owning section.
func FieldSection(name string) (Section, bool) {
	f, ok := fieldIndex[name]
	if !ok {
		return "", false
	}
	return f.Section, true
}
