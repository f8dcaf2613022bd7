// Package certificate defines the typed record shape of each certificate type
// and decodes loosely extracted fields into it.
package certificate

import (
	"sort"
	"strings"
	"unicode"

	"certflow/internal/domain"
)

// Kind is the value type of a schema field.
type Kind string

const (
	KindText Kind = "text"
	KindDate Kind = "date"
	KindInt  Kind = "int"
	KindBool Kind = "bool"
)

// FieldSpec describes one field of a certificate schema.
type FieldSpec struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
	// Aliases are printed labels that layout analysis may return for this field.
	Aliases []string
}

var commonFields = []FieldSpec{
	{Name: "certificate_number", Kind: KindText, Required: true, Description: "Certificate or report reference number", Aliases: []string{"certificate no", "report number", "serial number", "reference"}},
	{Name: "property_address", Kind: KindText, Required: true, Description: "Address of the inspected property", Aliases: []string{"address", "installation address", "premises address", "site address"}},
	{Name: "engineer_name", Kind: KindText, Description: "Name of the engineer, inspector or assessor", Aliases: []string{"engineer", "inspector", "assessor", "surveyor", "inspected by"}},
	{Name: "engineer_registration", Kind: KindText, Description: "Registration or licence number of the engineer", Aliases: []string{"registration number", "licence number", "id card number"}},
	{Name: "issue_date", Kind: KindDate, Required: true, Description: "Date the inspection was carried out", Aliases: []string{"date of inspection", "inspection date", "date of issue", "assessment date", "survey date"}},
	{Name: "expiry_date", Kind: KindDate, Required: true, Description: "Date the next inspection or review is due", Aliases: []string{"next inspection due", "next inspection date", "review date", "next review date", "reinspection date", "valid until"}},
}

var typeFields = map[domain.CertificateType][]FieldSpec{
	domain.CertificateTypeGasSafety: {
		{Name: "gas_safe_number", Kind: KindText, Description: "Gas Safe registration number of the business", Aliases: []string{"gas safe registration", "gas safe reg"}},
		{Name: "appliances_tested", Kind: KindInt, Description: "Number of appliances inspected", Aliases: []string{"number of appliances", "appliances inspected"}},
		{Name: "unsafe_appliances", Kind: KindInt, Description: "Number of appliances classed unsafe (AR or ID)", Aliases: []string{"appliances unsafe", "unsafe"}},
		{Name: "co_alarm_fitted", Kind: KindBool, Description: "Whether a carbon monoxide alarm is fitted", Aliases: []string{"co alarm", "carbon monoxide alarm fitted"}},
		{Name: "result", Kind: KindText, Description: "Overall result PASS or FAIL", Aliases: []string{"overall result", "outcome"}},
	},
	domain.CertificateTypeEICR: {
		{Name: "c1_count", Kind: KindInt, Description: "Number of C1 (danger present) observations", Aliases: []string{"c1"}},
		{Name: "c2_count", Kind: KindInt, Description: "Number of C2 (potentially dangerous) observations", Aliases: []string{"c2"}},
		{Name: "c3_count", Kind: KindInt, Description: "Number of C3 (improvement recommended) observations", Aliases: []string{"c3"}},
		{Name: "fi_count", Kind: KindInt, Description: "Number of FI (further investigation) observations", Aliases: []string{"fi", "further investigation"}},
		{Name: "overall_assessment", Kind: KindText, Description: "SATISFACTORY or UNSATISFACTORY", Aliases: []string{"overall assessment", "general condition", "installation is"}},
	},
	domain.CertificateTypeFireRisk: {
		{Name: "risk_level", Kind: KindText, Description: "TRIVIAL, TOLERABLE, MODERATE, SUBSTANTIAL or INTOLERABLE", Aliases: []string{"overall risk", "risk rating", "fire risk level"}},
		{Name: "high_priority_actions", Kind: KindInt, Description: "Number of high priority remedial actions", Aliases: []string{"high priority actions", "priority 1 actions"}},
		{Name: "total_actions", Kind: KindInt, Description: "Total number of remedial actions", Aliases: []string{"total actions", "number of actions"}},
	},
	domain.CertificateTypeAsbestos: {
		{Name: "survey_type", Kind: KindText, Description: "MANAGEMENT, REFURBISHMENT or DEMOLITION", Aliases: []string{"type of survey", "survey type"}},
		{Name: "acms_identified", Kind: KindInt, Description: "Number of asbestos containing materials identified", Aliases: []string{"acms identified", "number of acms"}},
		{Name: "acms_requiring_action", Kind: KindInt, Description: "Number of ACMs requiring remedial action", Aliases: []string{"acms requiring action", "items requiring action"}},
	},
}

// Schema returns the full field list for a certificate type, common fields first.
func Schema(t domain.CertificateType) []FieldSpec {
	specific, ok := typeFields[t]
	if !ok {
		return nil
	}
	out := make([]FieldSpec, 0, len(commonFields)+len(specific))
	out = append(out, commonFields...)
	return append(out, specific...)
}

// FieldNames returns the sorted field names legal for a certificate type.
func FieldNames(t domain.CertificateType) []string {
	specs := Schema(t)
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}

// HasField reports whether name belongs to the schema of t.
func HasField(t domain.CertificateType, name string) bool {
	for _, s := range Schema(t) {
		if s.Name == name {
			return true
		}
	}
	return false
}

// MatchLabel maps a printed key (as returned by layout analysis) to a schema
// field name.
func MatchLabel(t domain.CertificateType, label string) (string, bool) {
	norm := normalizeLabel(label)
	if norm == "" {
		return "", false
	}
	for _, s := range Schema(t) {
		if normalizeLabel(s.Name) == norm {
			return s.Name, true
		}
		for _, a := range s.Aliases {
			if normalizeLabel(a) == norm {
				return s.Name, true
			}
		}
	}
	return "", false
}

func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
