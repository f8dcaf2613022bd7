package certificate

import (
	"time"

	"certflow/internal/domain"
)

// Record is the typed view of an extracted certificate. Exactly one concrete
// record type exists per certificate type.
type Record interface {
	Type() domain.CertificateType
	Common() CommonFields
	// DefectCount is the number of findings that require remedial work.
	DefectCount() int
	// Fields exposes the decoded values for rule evaluation. Fields that were
	// absent or failed to decode are omitted.
	Fields() map[string]any
}

// CommonFields are present on every certificate type.
type CommonFields struct {
	CertificateNumber    string
	PropertyAddress      string
	EngineerName         string
	EngineerRegistration string
	IssueDate            *time.Time
	ExpiryDate           *time.Time
}

type base struct {
	common CommonFields
	values map[string]any
}

func (b base) Common() CommonFields   { return b.common }
func (b base) Fields() map[string]any { return b.values }

// GasSafetyRecord is a landlord gas safety record.
type GasSafetyRecord struct {
	base
	GasSafeNumber    string
	AppliancesTested int
	UnsafeAppliances int
	COAlarmFitted    *bool
	Result           string
}

func (r *GasSafetyRecord) Type() domain.CertificateType { return domain.CertificateTypeGasSafety }
func (r *GasSafetyRecord) DefectCount() int             { return r.UnsafeAppliances }

// ElectricalRecord is an electrical installation condition report.
type ElectricalRecord struct {
	base
	C1Count           int
	C2Count           int
	C3Count           int
	FICount           int
	OverallAssessment string
}

func (r *ElectricalRecord) Type() domain.CertificateType { return domain.CertificateTypeEICR }

// DefectCount counts C1, C2 and FI observations. C3 is advisory only.
func (r *ElectricalRecord) DefectCount() int { return r.C1Count + r.C2Count + r.FICount }

// FireRiskRecord is a fire risk assessment.
type FireRiskRecord struct {
	base
	RiskLevel           string
	HighPriorityActions int
	TotalActions        int
}

func (r *FireRiskRecord) Type() domain.CertificateType { return domain.CertificateTypeFireRisk }
func (r *FireRiskRecord) DefectCount() int             { return r.TotalActions }

// AsbestosRecord is an asbestos management or refurbishment survey.
type AsbestosRecord struct {
	base
	SurveyType          string
	ACMsIdentified      int
	ACMsRequiringAction int
}

func (r *AsbestosRecord) Type() domain.CertificateType { return domain.CertificateTypeAsbestos }
func (r *AsbestosRecord) DefectCount() int             { return r.ACMsRequiringAction }
