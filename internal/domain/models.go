package domain

import (
	"time"

	"github.com/google/uuid"
)

// Property is a housing asset that certificates are issued against.
type Property struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OrgID        uuid.UUID `db:"org_id" json:"org_id"`
	Reference    string    `db:"reference" json:"reference"`
	Address      string    `db:"address" json:"address"`
	BuildYear    int       `db:"build_year" json:"build_year"`
	Storeys      int       `db:"storeys" json:"storeys"`
	Units        int       `db:"units" json:"units"`
	HasGasSupply bool      `db:"has_gas_supply" json:"has_gas_supply"`
	ExternalRisk float64   `db:"external_risk" json:"external_risk"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Certificate is an uploaded compliance document. The extraction columns are
// filled in when a run for the current version is approved.
type Certificate struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrgID           uuid.UUID       `db:"org_id" json:"org_id"`
	PropertyID      uuid.UUID       `db:"property_id" json:"property_id"`
	CertificateType CertificateType `db:"certificate_type" json:"certificate_type"`
	S3Bucket        string          `db:"s3_bucket" json:"-"`
	S3Key           string          `db:"s3_key" json:"-"`
	ContentType     string          `db:"content_type" json:"content_type"`
	Version         int             `db:"version" json:"version"`
	IssueDate       *time.Time      `db:"issue_date" json:"issue_date,omitempty"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	Outcome         *Outcome        `db:"outcome" json:"outcome,omitempty"`
	DefectCount     int             `db:"defect_count" json:"defect_count"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ExtractionRun is one pass of a certificate version through the tiers.
type ExtractionRun struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	OrgID              uuid.UUID       `db:"org_id" json:"org_id"`
	CertificateID      uuid.UUID       `db:"certificate_id" json:"certificate_id"`
	CertificateVersion int             `db:"certificate_version" json:"certificate_version"`
	CertificateType    CertificateType `db:"certificate_type" json:"certificate_type"`
	Status             RunStatus       `db:"status" json:"status"`
	Confidence         float64         `db:"confidence" json:"confidence"`
	ValidationPassed   bool            `db:"validation_passed" json:"validation_passed"`
	FinalTier          int             `db:"final_tier" json:"final_tier"`
	Outcome            *Outcome        `db:"outcome" json:"outcome,omitempty"`
	ExtractedFields    FieldSet        `db:"extracted_fields" json:"extracted_fields"`
	FailedRule         string          `db:"failed_rule" json:"failed_rule,omitempty"`
	FailureReason      string          `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	// ClaimedAt is set when the run is created for inline processing; the
	// worker only claims runs without it.
	ClaimedAt *time.Time `db:"claimed_at" json:"-"`
}

// TierAttempt is an immutable audit row for a single tier invocation.
type TierAttempt struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	OrgID            uuid.UUID     `db:"org_id" json:"org_id"`
	RunID            uuid.UUID     `db:"run_id" json:"run_id"`
	Tier             int           `db:"tier" json:"tier"`
	Adapter          string        `db:"adapter" json:"adapter"`
	Succeeded        bool          `db:"succeeded" json:"succeeded"`
	Confidence       float64       `db:"confidence" json:"confidence"`
	RawTextRef       string        `db:"raw_text_ref" json:"raw_text_ref,omitempty"`
	StructuredFields FieldSet      `db:"structured_fields" json:"structured_fields"`
	ErrorCategory    ErrorCategory `db:"error_category" json:"error_category,omitempty"`
	ErrorMessage     string        `db:"error_message" json:"error_message,omitempty"`
	ProcessingTimeMs int64         `db:"processing_time_ms" json:"processing_time_ms"`
	EstimatedCost    float64       `db:"estimated_cost" json:"estimated_cost"`
	Stale            bool          `db:"stale" json:"stale"`
	AttemptedAt      time.Time     `db:"attempted_at" json:"attempted_at"`
}

// HumanReview is a tier-3 work item.
type HumanReview struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	OrgID       uuid.UUID       `db:"org_id" json:"org_id"`
	RunID       uuid.UUID       `db:"run_id" json:"run_id"`
	Reason      ReviewReason    `db:"reason" json:"reason"`
	FailedRule  string          `db:"failed_rule" json:"failed_rule,omitempty"`
	Status      ReviewStatus    `db:"status" json:"status"`
	ReviewerID  *uuid.UUID      `db:"reviewer_id" json:"reviewer_id,omitempty"`
	Decision    *ReviewDecision `db:"decision" json:"decision,omitempty"`
	ErrorTags   StringList      `db:"error_tags" json:"error_tags"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs  int64           `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Correction is a field-level human fix against an extraction run.
type Correction struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	OrgID              uuid.UUID       `db:"org_id" json:"org_id"`
	RunID              uuid.UUID       `db:"run_id" json:"run_id"`
	CertificateID      uuid.UUID       `db:"certificate_id" json:"certificate_id"`
	FieldName          string          `db:"field_name" json:"field_name"`
	OriginalValue      string          `db:"original_value" json:"original_value"`
	CorrectedValue     string          `db:"corrected_value" json:"corrected_value"`
	CorrectionType     CorrectionType  `db:"correction_type" json:"correction_type"`
	CertificateType    CertificateType `db:"certificate_type" json:"certificate_type"`
	Tier               int             `db:"tier" json:"tier"`
	UsedForImprovement bool            `db:"used_for_improvement" json:"used_for_improvement"`
	CreatedBy          uuid.UUID       `db:"created_by" json:"created_by"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// Suggestion is a deduplicated improvement recommendation derived from
// clustered corrections or review rejections.
type Suggestion struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	OrgID           uuid.UUID        `db:"org_id" json:"org_id"`
	Key             string           `db:"key" json:"key"`
	Source          SuggestionSource `db:"source" json:"source"`
	FieldName       string           `db:"field_name" json:"field_name"`
	CertificateType CertificateType  `db:"certificate_type" json:"certificate_type"`
	Signature       string           `db:"signature" json:"signature"`
	Title           string           `db:"title" json:"title"`
	Description     string           `db:"description" json:"description"`
	Support         int              `db:"support" json:"support"`
	Status          SuggestionStatus `db:"status" json:"status"`
	BaselineValue   float64          `db:"baseline_value" json:"baseline_value"`
	CurrentValue    float64          `db:"current_value" json:"current_value"`
	TargetValue     float64          `db:"target_value" json:"target_value"`
	Progress        float64          `db:"progress" json:"progress"`
	DismissReason   string           `db:"dismiss_reason" json:"dismiss_reason,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
	ResolvedAt      *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
}

// RiskPrediction is one scoring of a property. Later predictions supersede
// earlier ones through IsLatest.
type RiskPrediction struct {
	ID                  uuid.UUID    `db:"id" json:"id"`
	OrgID               uuid.UUID    `db:"org_id" json:"org_id"`
	PropertyID          uuid.UUID    `db:"property_id" json:"property_id"`
	StatScore           float64      `db:"stat_score" json:"stat_score"`
	StatConfidence      float64      `db:"stat_confidence" json:"stat_confidence"`
	MLScore             *float64     `db:"ml_score" json:"ml_score,omitempty"`
	MLConfidence        *float64     `db:"ml_confidence" json:"ml_confidence,omitempty"`
	BlendedScore        float64      `db:"blended_score" json:"blended_score"`
	BlendedConfidence   float64      `db:"blended_confidence" json:"blended_confidence"`
	Category            RiskCategory `db:"category" json:"category"`
	PredictedBreachDate *time.Time   `db:"predicted_breach_date" json:"predicted_breach_date,omitempty"`
	Factors             RiskFactors  `db:"factors" json:"factors"`
	ModelID             *uuid.UUID   `db:"model_id" json:"model_id,omitempty"`
	IsLatest            bool         `db:"is_latest" json:"is_latest"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
}

// PredictionFeedback is a human correctness signal on a prediction.
type PredictionFeedback struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	OrgID             uuid.UUID       `db:"org_id" json:"org_id"`
	PredictionID      uuid.UUID       `db:"prediction_id" json:"prediction_id"`
	Outcome           FeedbackOutcome `db:"outcome" json:"outcome"`
	CorrectedScore    *float64        `db:"corrected_score" json:"corrected_score,omitempty"`
	CorrectedCategory *RiskCategory   `db:"corrected_category" json:"corrected_category,omitempty"`
	Notes             string          `db:"notes" json:"notes"`
	SubmittedBy       uuid.UUID       `db:"submitted_by" json:"submitted_by"`
	UsedInTraining    bool            `db:"used_in_training" json:"used_in_training"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// LabeledFeedback joins feedback to the factors of the prediction it judges.
type LabeledFeedback struct {
	PredictionFeedback
	Factors      RiskFactors `db:"factors" json:"factors"`
	BlendedScore float64     `db:"blended_score" json:"blended_score"`
}

// RiskModel is a trained model version.
type RiskModel struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrgID           uuid.UUID       `db:"org_id" json:"org_id"`
	Version         int             `db:"version" json:"version"`
	Hyperparameters Hyperparameters `db:"hyperparameters" json:"hyperparameters"`
	Weights         Float64List     `db:"weights" json:"weights"`
	Bias            float64         `db:"bias" json:"bias"`
	BenchmarkScore  float64         `db:"benchmark_score" json:"benchmark_score"`
	Passed          bool            `db:"passed" json:"passed"`
	SampleCount     int             `db:"sample_count" json:"sample_count"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// TrainingRun records one invocation of training for an organization.
type TrainingRun struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	OrgID          uuid.UUID      `db:"org_id" json:"org_id"`
	ModelID        *uuid.UUID     `db:"model_id" json:"model_id,omitempty"`
	Status         TrainingStatus `db:"status" json:"status"`
	BenchmarkScore float64        `db:"benchmark_score" json:"benchmark_score"`
	Passed         bool           `db:"passed" json:"passed"`
	Promoted       bool           `db:"promoted" json:"promoted"`
	SampleCount    int            `db:"sample_count" json:"sample_count"`
	Error          string         `db:"error" json:"error,omitempty"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// ValidationRule is a business rule stored as data and evaluated as a CEL
// expression over the typed certificate fields.
type ValidationRule struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrgID           uuid.UUID       `db:"org_id" json:"org_id"`
	CertificateType CertificateType `db:"certificate_type" json:"certificate_type"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	Kind            RuleKind        `db:"kind" json:"kind"`
	Expression      string          `db:"expression" json:"expression"`
	Outcome         *Outcome        `db:"outcome" json:"outcome,omitempty"`
	Priority        int             `db:"priority" json:"priority"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	IsBuiltin       bool            `db:"is_builtin" json:"is_builtin"`
	BuiltinKey      *string         `db:"builtin_key" json:"builtin_key,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
