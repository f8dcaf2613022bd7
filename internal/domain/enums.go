package domain

// CertificateType identifies the compliance regime a certificate belongs to.
type CertificateType string

const (
	CertificateTypeGasSafety CertificateType = "GAS_SAFETY"
	CertificateTypeEICR      CertificateType = "EICR"
	CertificateTypeFireRisk  CertificateType = "FIRE_RISK"
	CertificateTypeAsbestos  CertificateType = "ASBESTOS"
)

// AllCertificateTypes lists the supported certificate types in display order.
var AllCertificateTypes = []CertificateType{
	CertificateTypeGasSafety,
	CertificateTypeEICR,
	CertificateTypeFireRisk,
	CertificateTypeAsbestos,
}

// Valid reports whether t is a supported certificate type.
func (t CertificateType) Valid() bool {
	for _, ct := range AllCertificateTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// AllowedContentTypes maps accepted MIME types to a short file kind.
var AllowedContentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/tiff":      "tiff",
}

// RunStatus is the state of an extraction run.
type RunStatus string

const (
	RunStatusPending          RunStatus = "PENDING"
	RunStatusTier1Attempted   RunStatus = "TIER1_ATTEMPTED"
	RunStatusTier2Attempted   RunStatus = "TIER2_ATTEMPTED"
	RunStatusAwaitingReview   RunStatus = "AWAITING_REVIEW"
	RunStatusApproved         RunStatus = "APPROVED"
	RunStatusRejected         RunStatus = "REJECTED"
	RunStatusValidationFailed RunStatus = "VALIDATION_FAILED"
	RunStatusFailed           RunStatus = "FAILED"
	RunStatusSuperseded       RunStatus = "SUPERSEDED"
)

// IsTerminal reports whether no further transition may leave s.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusApproved, RunStatusRejected, RunStatusValidationFailed,
		RunStatusFailed, RunStatusSuperseded:
		return true
	}
	return false
}

// SweepableStatuses are the automated, non-terminal states the sweeper may fail.
var SweepableStatuses = []RunStatus{
	RunStatusPending,
	RunStatusTier1Attempted,
	RunStatusTier2Attempted,
}

// AttemptedStatus returns the status recorded after an attempt at the given tier.
func AttemptedStatus(tier int) RunStatus {
	switch tier {
	case 1:
		return RunStatusTier1Attempted
	case 2:
		return RunStatusTier2Attempted
	default:
		return RunStatusAwaitingReview
	}
}

// ErrorCategory classifies why a tier attempt failed.
type ErrorCategory string

const (
	ErrorCategoryNone          ErrorCategory = ""
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryTransient     ErrorCategory = "transient"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryData          ErrorCategory = "data"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// ReviewReason records why a run was routed to a human.
type ReviewReason string

const (
	ReviewReasonLowConfidence    ReviewReason = "LOW_CONFIDENCE"
	ReviewReasonValidationFailed ReviewReason = "VALIDATION_FAILED"
	ReviewReasonAdapterFailure   ReviewReason = "ADAPTER_FAILURE"
)

// ReviewStatus is the work-queue state of a human review.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "PENDING"
	ReviewStatusInReview  ReviewStatus = "IN_REVIEW"
	ReviewStatusCompleted ReviewStatus = "COMPLETED"
)

// ReviewDecision is a reviewer's verdict.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "APPROVE"
	ReviewDecisionReject  ReviewDecision = "REJECT"
)

// CorrectionType is the taxonomy of field-level extraction errors.
type CorrectionType string

const (
	CorrectionTypeMissing      CorrectionType = "MISSING"
	CorrectionTypeWrong        CorrectionType = "WRONG"
	CorrectionTypeFormat       CorrectionType = "FORMAT"
	CorrectionTypeHallucinated CorrectionType = "HALLUCINATED"
)

// Valid reports whether c is a known correction type.
func (c CorrectionType) Valid() bool {
	switch c {
	case CorrectionTypeMissing, CorrectionTypeWrong, CorrectionTypeFormat, CorrectionTypeHallucinated:
		return true
	}
	return false
}

// SuggestionStatus is the lifecycle state of an improvement suggestion.
type SuggestionStatus string

const (
	SuggestionStatusActive       SuggestionStatus = "ACTIVE"
	SuggestionStatusInProgress   SuggestionStatus = "IN_PROGRESS"
	SuggestionStatusResolved     SuggestionStatus = "RESOLVED"
	SuggestionStatusDismissed    SuggestionStatus = "DISMISSED"
	SuggestionStatusAutoResolved SuggestionStatus = "AUTO_RESOLVED"
)

// IsClosed reports whether the suggestion no longer tracks its metric.
func (s SuggestionStatus) IsClosed() bool {
	return s == SuggestionStatusResolved || s == SuggestionStatusDismissed || s == SuggestionStatusAutoResolved
}

// SuggestionSource names what kind of signal produced a suggestion.
type SuggestionSource string

const (
	SuggestionSourceCorrection SuggestionSource = "correction"
	SuggestionSourceReview     SuggestionSource = "review"
)

// RiskCategory is the four-level breach-risk tier.
type RiskCategory string

const (
	RiskCategoryLow      RiskCategory = "LOW"
	RiskCategoryMedium   RiskCategory = "MEDIUM"
	RiskCategoryHigh     RiskCategory = "HIGH"
	RiskCategoryCritical RiskCategory = "CRITICAL"
)

// Valid reports whether c is a known risk category.
func (c RiskCategory) Valid() bool {
	switch c {
	case RiskCategoryLow, RiskCategoryMedium, RiskCategoryHigh, RiskCategoryCritical:
		return true
	}
	return false
}

// FeedbackOutcome is a human judgement on a risk prediction.
type FeedbackOutcome string

const (
	FeedbackCorrect          FeedbackOutcome = "CORRECT"
	FeedbackIncorrect        FeedbackOutcome = "INCORRECT"
	FeedbackPartiallyCorrect FeedbackOutcome = "PARTIALLY_CORRECT"
)

// Valid reports whether o is a known feedback outcome.
func (o FeedbackOutcome) Valid() bool {
	switch o {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackPartiallyCorrect:
		return true
	}
	return false
}

// TrainingStatus is the state of a training run.
type TrainingStatus string

const (
	TrainingStatusRunning   TrainingStatus = "RUNNING"
	TrainingStatusCompleted TrainingStatus = "COMPLETED"
	TrainingStatusFailed    TrainingStatus = "FAILED"
)

// RuleKind distinguishes pass/fail rules from classification rules.
type RuleKind string

const (
	RuleKindValidation RuleKind = "VALIDATION"
	RuleKindOutcome    RuleKind = "OUTCOME"
)

// Outcome is the business classification of an extracted certificate.
type Outcome string

const (
	OutcomeSatisfactory   Outcome = "SATISFACTORY"
	OutcomeUnsatisfactory Outcome = "UNSATISFACTORY"
	OutcomeAtRisk         Outcome = "AT_RISK"
	OutcomePass           Outcome = "PASS"
	OutcomeFail           Outcome = "FAIL"
	OutcomeNeedsReview    Outcome = "NEEDS_REVIEW"
)
