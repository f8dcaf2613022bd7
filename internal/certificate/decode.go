package certificate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"certflow/internal/domain"
)

// FieldError describes a field whose extracted value could not be decoded.
type FieldError struct {
	Field   string
	Value   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.Message, e.Value)
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseDate parses the date formats commonly printed on UK certificates.
// Day-first numeric formats take precedence over month-first.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognised date %q", s)
}

// Decode builds the typed record for t from extracted fields. Values that
// fail to decode are reported and left absent from the record; unknown field
// names are ignored.
func Decode(t domain.CertificateType, fields domain.FieldSet) (Record, []FieldError) {
	specs := Schema(t)
	if specs == nil {
		return nil, []FieldError{{Field: "certificate_type", Value: string(t), Message: "unsupported certificate type"}}
	}

	values := make(map[string]any, len(specs))
	var errs []FieldError
	for _, fs := range specs {
		fv, ok := fields[fs.Name]
		raw := strings.TrimSpace(fv.Value)
		if !ok || raw == "" {
			continue
		}
		v, err := parseValue(fs.Kind, raw)
		if err != nil {
			errs = append(errs, FieldError{Field: fs.Name, Value: fv.Value, Message: err.Error()})
			continue
		}
		values[fs.Name] = v
	}

	b := base{values: values}
	b.common = CommonFields{
		CertificateNumber:    str(values, "certificate_number"),
		PropertyAddress:      str(values, "property_address"),
		EngineerName:         str(values, "engineer_name"),
		EngineerRegistration: str(values, "engineer_registration"),
		IssueDate:            date(values, "issue_date"),
		ExpiryDate:           date(values, "expiry_date"),
	}

	switch t {
	case domain.CertificateTypeGasSafety:
		return &GasSafetyRecord{
			base:             b,
			GasSafeNumber:    str(values, "gas_safe_number"),
			AppliancesTested: integer(values, "appliances_tested"),
			UnsafeAppliances: integer(values, "unsafe_appliances"),
			COAlarmFitted:    boolean(values, "co_alarm_fitted"),
			Result:           str(values, "result"),
		}, errs
	case domain.CertificateTypeEICR:
		return &ElectricalRecord{
			base:              b,
			C1Count:           integer(values, "c1_count"),
			C2Count:           integer(values, "c2_count"),
			C3Count:           integer(values, "c3_count"),
			FICount:           integer(values, "fi_count"),
			OverallAssessment: str(values, "overall_assessment"),
		}, errs
	case domain.CertificateTypeFireRisk:
		return &FireRiskRecord{
			base:                b,
			RiskLevel:           str(values, "risk_level"),
			HighPriorityActions: integer(values, "high_priority_actions"),
			TotalActions:        integer(values, "total_actions"),
		}, errs
	default:
		return &AsbestosRecord{
			base:                b,
			SurveyType:          str(values, "survey_type"),
			ACMsIdentified:      integer(values, "acms_identified"),
			ACMsRequiringAction: integer(values, "acms_requiring_action"),
		}, errs
	}
}

// MissingRequired lists required schema fields absent from the record.
func MissingRequired(r Record) []string {
	var missing []string
	present := r.Fields()
	for _, s := range Schema(r.Type()) {
		if !s.Required {
			continue
		}
		if _, ok := present[s.Name]; !ok {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

func parseValue(kind Kind, raw string) (any, error) {
	switch kind {
	case KindDate:
		return ParseDate(raw)
	case KindInt:
		n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
		if err != nil {
			return nil, eris.Errorf("not an integer")
		}
		return n, nil
	case KindBool:
		switch strings.ToLower(raw) {
		case "yes", "y", "true", "1", "fitted":
			return true, nil
		case "no", "n", "false", "0", "not fitted":
			return false, nil
		}
		return nil, eris.Errorf("not a yes/no value")
	default:
		return raw, nil
	}
}

func str(values map[string]any, name string) string {
	s, _ := values[name].(string)
	return s
}

func integer(values map[string]any, name string) int {
	n, _ := values[name].(int64)
	return int(n)
}

func date(values map[string]any, name string) *time.Time {
	t, ok := values[name].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

func boolean(values map[string]any, name string) *bool {
	b, ok := values[name].(bool)
	if !ok {
		return nil
	}
	return &b
}
