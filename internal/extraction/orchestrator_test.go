package extraction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"certflow/internal/cache"
	"certflow/internal/certificate"
	"certflow/internal/domain"
	"certflow/internal/extraction"
	"certflow/internal/port"
	"certflow/internal/rules"
	"certflow/internal/tier"
	humanreview "certflow/internal/tier/review"
	"certflow/mocks"
)

var orgID = uuid.MustParse("4f6f0d1e-6a0b-4c49-9c43-2b7d7f3f9a01")

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, orgID uuid.UUID, record certificate.Record) (*rules.Evaluation, error) {
	args := m.Called(ctx, orgID, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rules.Evaluation), args.Error(1)
}

// harness wires the orchestrator to mocks that behave like a store: the run
// returned by GetByID follows every successful Transition or CommitAttempt.
type harness struct {
	runs     *mocks.MockExtractionRunRepo
	attempts *mocks.MockTierAttemptRepo
	reviews  *mocks.MockHumanReviewRepo
	certs    *mocks.MockCertificateRepo
	storage  *mocks.MockObjectStorage
	notifier *mocks.MockReviewNotifier
	eval     *mockEvaluator
	layout   *mocks.MockTierAdapter
	vision   *mocks.MockTierAdapter

	cert        *domain.Certificate
	stored      *domain.ExtractionRun
	appended    []domain.TierAttempt
	transitions []domain.RunStatus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		runs:     new(mocks.MockExtractionRunRepo),
		attempts: new(mocks.MockTierAttemptRepo),
		reviews:  new(mocks.MockHumanReviewRepo),
		certs:    new(mocks.MockCertificateRepo),
		storage:  new(mocks.MockObjectStorage),
		notifier: new(mocks.MockReviewNotifier),
		eval:     new(mockEvaluator),
		layout:   new(mocks.MockTierAdapter),
		vision:   new(mocks.MockTierAdapter),
		cert: &domain.Certificate{
			ID:              uuid.New(),
			OrgID:           orgID,
			PropertyID:      uuid.New(),
			CertificateType: domain.CertificateTypeGasSafety,
			S3Bucket:        "certs",
			S3Key:           "org/cert.pdf",
			ContentType:     "application/pdf",
			Version:         1,
		},
	}
	h.layout.On("Name").Return("layout").Maybe()
	h.vision.On("Name").Return("vision").Maybe()
	h.certs.On("GetByID", mock.Anything, orgID, h.cert.ID).Return(h.cert, nil).Maybe()
	h.storage.On("Download", mock.Anything, "certs", "org/cert.pdf").Return([]byte("%PDF"), nil).Maybe()
	h.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{Location: "s3://certs/raw"}, nil).Maybe()
	h.storage.On("GetPresignedURL", mock.Anything, "certs", "org/cert.pdf", int64(900)).Return("https://signed", nil).Maybe()
	h.attempts.On("Append", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		h.appended = append(h.appended, *args.Get(1).(*domain.TierAttempt))
	}).Return(nil).Maybe()
	h.runs.On("Transition", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		run := args.Get(1).(*domain.ExtractionRun)
		h.stored.Status = run.Status
		h.transitions = append(h.transitions, run.Status)
	}).Return(nil).Maybe()
	h.runs.On("CommitAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(
		func(_ context.Context, run *domain.ExtractionRun, from domain.RunStatus, att *domain.TierAttempt) error {
			att.Stale = h.stored.Status != from
			h.appended = append(h.appended, *att)
			if att.Stale {
				return domain.ErrStaleRun
			}
			h.stored.Status = run.Status
			h.transitions = append(h.transitions, run.Status)
			return nil
		}).Maybe()
	return h
}

func (h *harness) newRun(status domain.RunStatus, fields domain.FieldSet) *domain.ExtractionRun {
	run := &domain.ExtractionRun{
		ID:                 uuid.New(),
		OrgID:              orgID,
		CertificateID:      h.cert.ID,
		CertificateVersion: 1,
		CertificateType:    domain.CertificateTypeGasSafety,
		Status:             status,
		ExtractedFields:    fields,
	}
	stored := *run
	h.stored = &stored
	h.runs.On("GetByID", mock.Anything, orgID, run.ID).Return(h.stored, nil).Maybe()
	return run
}

func (h *harness) orchestrator(tiers ...extraction.Tier) extraction.Orchestrator {
	return h.orchestratorWith(h.eval, tiers...)
}

func (h *harness) orchestratorWith(eval extraction.Evaluator, tiers ...extraction.Tier) extraction.Orchestrator {
	return extraction.NewOrchestrator(tiers, h.runs, h.attempts, h.reviews, h.certs, h.storage, eval, h.notifier, 900)
}

func (h *harness) tiers() []extraction.Tier {
	return []extraction.Tier{
		{Level: 1, Adapter: h.layout, Threshold: 0.85, Timeout: time.Second},
		{Level: 2, Adapter: h.vision, Threshold: 0.80, Timeout: time.Second},
	}
}

func gasFields(conf float64, kv map[string]string) domain.FieldSet {
	fs := domain.FieldSet{}
	for k, v := range kv {
		fs[k] = domain.FieldValue{Value: v, Confidence: conf}
	}
	return fs
}

var completeGas = map[string]string{
	"certificate_number": "GS-1001",
	"property_address":   "1 High Street",
	"issue_date":         "2024-01-01",
	"expiry_date":        "2024-12-15",
	"result":             "PASS",
}

func passing(outcome domain.Outcome) *rules.Evaluation {
	return &rules.Evaluation{Passed: true, Outcome: outcome}
}

func (h *harness) expectApplied() {
	h.certs.On("ApplyExtraction", mock.Anything, orgID, h.cert.ID, mock.MatchedBy(func(e port.CertificateExtraction) bool {
		return e.Version == 1 && e.IssueDate != nil && e.ExpiryDate != nil
	})).Return(nil).Once()
}

func TestProcess_ApprovedAtFirstTier(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).
		Return(&port.TierResult{Confidence: 0.95, RawText: "GAS SAFETY RECORD", Fields: gasFields(0.95, completeGas), EstimatedCost: 0.01}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	assert.Equal(t, 1, got.FinalTier)
	assert.True(t, got.ValidationPassed)
	require.NotNil(t, got.Outcome)
	assert.Equal(t, domain.OutcomePass, *got.Outcome)
	require.NotNil(t, got.CompletedAt)

	require.Len(t, h.appended, 1)
	assert.True(t, h.appended[0].Succeeded)
	assert.Equal(t, "s3://certs/raw", h.appended[0].RawTextRef)
	assert.False(t, h.appended[0].Stale)
	assert.Equal(t, []domain.RunStatus{domain.RunStatusApproved}, h.transitions)
	h.vision.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
	h.certs.AssertExpectations(t)
}

func TestProcess_LowConfidenceEscalatesWithPriorFields(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{
		Confidence: 0.6,
		Fields:     gasFields(0.9, map[string]string{"certificate_number": "GS-1001"}),
	}, nil)
	h.vision.On("Attempt", mock.Anything, mock.MatchedBy(func(d port.Document) bool {
		return d.Prior["certificate_number"].Value == "GS-1001"
	})).Return(&port.TierResult{Confidence: 0.9, Fields: gasFields(0.9, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	assert.Equal(t, 2, got.FinalTier)
	require.Len(t, h.appended, 2)
	assert.Equal(t, 1, h.appended[0].Tier)
	assert.Equal(t, 2, h.appended[1].Tier)
	assert.Equal(t, []domain.RunStatus{domain.RunStatusTier1Attempted, domain.RunStatusApproved}, h.transitions)
}

func TestProcess_ConfigErrorEscalatesImmediately(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(nil, tier.NewConfigError("layout", "endpoint is not set")).Once()
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.9, Fields: gasFields(0.9, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	require.Len(t, h.appended, 2)
	assert.False(t, h.appended[0].Succeeded)
	assert.Equal(t, domain.ErrorCategoryConfiguration, h.appended[0].ErrorCategory)
	assert.Contains(t, h.appended[0].ErrorMessage, "endpoint is not set")
	h.layout.AssertNumberOfCalls(t, "Attempt", 1)
}

func TestProcess_ConfidentButIncompleteEscalates(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{
		Confidence: 0.99,
		Fields:     gasFields(0.99, map[string]string{"certificate_number": "GS-1001"}),
	}, nil)
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.9, Fields: gasFields(0.9, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil).Once()
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, 2, got.FinalTier)
	h.eval.AssertNumberOfCalls(t, "Evaluate", 1)
}

func TestProcess_ValidationFailureIsTerminalAndQueued(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})

	pack, err := rules.BuiltinPack()
	require.NoError(t, err)
	var gasRules []domain.ValidationRule
	var keys []string
	for _, r := range pack {
		keys = append(keys, *r.BuiltinKey)
		if r.CertificateType == domain.CertificateTypeGasSafety {
			r.ID = uuid.New()
			r.OrgID = orgID
			gasRules = append(gasRules, r)
		}
	}
	ruleRepo := new(mocks.MockValidationRuleRepo)
	ruleRepo.On("ListBuiltinKeys", mock.Anything, orgID).Return(keys, nil)
	ruleRepo.On("ListActive", mock.Anything, orgID, domain.CertificateTypeGasSafety).Return(gasRules, nil)
	engine, err := rules.NewEngine(ruleRepo, cache.NewMemory(time.Minute), time.Minute)
	require.NoError(t, err)

	fields := map[string]string{}
	for k, v := range completeGas {
		fields[k] = v
	}
	fields["issue_date"] = "2024-01-01"
	fields["expiry_date"] = "2023-12-01"
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.92, Fields: gasFields(0.92, fields)}, nil)
	h.reviews.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.HumanReview) bool {
		return r.Reason == domain.ReviewReasonValidationFailed && r.FailedRule == "Expiry after issue" && r.RunID == run.ID
	})).Return(nil).Once()
	h.notifier.On("NotifyReviewPending", mock.Anything, mock.MatchedBy(func(n port.ReviewNotice) bool {
		return n.DocumentURL == "https://signed"
	})).Return(nil).Once()

	got, err := h.orchestratorWith(engine, h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusValidationFailed, got.Status)
	assert.Equal(t, "Expiry after issue", got.FailedRule)
	assert.False(t, got.ValidationPassed)
	require.Len(t, h.appended, 1)
	h.vision.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
	h.certs.AssertNotCalled(t, "ApplyExtraction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.reviews.AssertExpectations(t)
	h.notifier.AssertExpectations(t)
}

func TestProcess_StaleRunKeepsAttemptButDoesNotTransition(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.stored.Status = domain.RunStatusSuperseded
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.95, Fields: gasFields(0.95, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)

	_, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStaleRun))
	require.Len(t, h.appended, 1)
	assert.True(t, h.appended[0].Stale)
	h.runs.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	h.certs.AssertNotCalled(t, "ApplyExtraction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_RunChangedDuringAttemptIsNotApplied(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { h.stored.Status = domain.RunStatusSuperseded }).
		Return(&port.TierResult{Confidence: 0.95, Fields: gasFields(0.95, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)

	_, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStaleRun))
	require.Len(t, h.appended, 1)
	assert.True(t, h.appended[0].Stale, "an attempt whose result was discarded must be flagged stale")
	assert.Empty(t, h.transitions)
	assert.Equal(t, domain.RunStatusSuperseded, h.stored.Status)
	h.certs.AssertNotCalled(t, "ApplyExtraction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_AdapterPanicIsRecordedAsFailure(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).Panic("boom")
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.9, Fields: gasFields(0.9, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	require.Len(t, h.appended, 2)
	assert.False(t, h.appended[0].Succeeded)
	assert.Contains(t, h.appended[0].ErrorMessage, "panicked")
}

func TestProcess_TierCeilingIsTransient(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).After(500*time.Millisecond).
		Return(&port.TierResult{Confidence: 0.99, Fields: gasFields(0.99, completeGas)}, nil)
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.9, Fields: gasFields(0.9, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	tiers := h.tiers()
	tiers[0].Timeout = 20 * time.Millisecond
	got, err := h.orchestrator(tiers...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, 2, got.FinalTier)
	require.Len(t, h.appended, 2)
	assert.Equal(t, domain.ErrorCategoryTransient, h.appended[0].ErrorCategory)
}

func TestProcess_ParksForReviewWhenTiersRunOut(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.5, Fields: gasFields(0.5, completeGas)}, nil)
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.6, Fields: gasFields(0.6, completeGas)}, nil)
	h.reviews.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.HumanReview) bool {
		return r.Reason == domain.ReviewReasonLowConfidence && r.Status == domain.ReviewStatusPending
	})).Return(nil).Once()
	h.notifier.On("NotifyReviewPending", mock.Anything, mock.Anything).Return(nil).Once()

	tiers := append(h.tiers(), extraction.Tier{Level: 3, Adapter: humanreview.NewAdapter()})
	got, err := h.orchestrator(tiers...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusAwaitingReview, got.Status)
	assert.Len(t, h.appended, 2)
	assert.Equal(t, []domain.RunStatus{
		domain.RunStatusTier1Attempted, domain.RunStatusTier2Attempted, domain.RunStatusAwaitingReview,
	}, h.transitions)
	h.eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
	h.notifier.AssertExpectations(t)
}

func TestProcess_AllAdaptersFailParksAsAdapterFailure(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})
	h.layout.On("Attempt", mock.Anything, mock.Anything).Return(nil, tier.NewTransientError("layout", errors.New("503")))
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(nil, tier.NewTransientError("vision", errors.New("503")))
	h.reviews.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.HumanReview) bool {
		return r.Reason == domain.ReviewReasonAdapterFailure
	})).Return(nil).Once()
	h.notifier.On("NotifyReviewPending", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusAwaitingReview, got.Status)
	h.reviews.AssertExpectations(t)
}

func TestProcess_ResumesAboveLastAttemptedTier(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusTier1Attempted, gasFields(0.7, map[string]string{"certificate_number": "GS-1001"}))
	h.vision.On("Attempt", mock.Anything, mock.Anything).Return(&port.TierResult{Confidence: 0.9, Fields: gasFields(0.9, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	h.layout.AssertNotCalled(t, "Attempt", mock.Anything, mock.Anything)
}

func TestProcess_TerminalAndParkedRuns(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(h.tiers()...)

	_, err := o.Process(context.Background(), h.newRun(domain.RunStatusApproved, nil))
	assert.True(t, errors.Is(err, domain.ErrRunTerminal))

	parked := h.newRun(domain.RunStatusAwaitingReview, nil)
	got, err := o.Process(context.Background(), parked)
	require.NoError(t, err)
	assert.Same(t, parked, got)
	h.storage.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_ReuploadedCertificateSupersedesRun(t *testing.T) {
	h := newHarness(t)
	h.cert.Version = 2
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})

	got, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuperseded, got.Status)
	assert.Empty(t, h.appended)
	h.storage.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_MissingDocument(t *testing.T) {
	h := newHarness(t)
	h.cert.S3Key = "gone.pdf"
	h.storage.On("Download", mock.Anything, "certs", "gone.pdf").Return(nil, errors.New("NoSuchKey"))
	run := h.newRun(domain.RunStatusPending, domain.FieldSet{})

	_, err := h.orchestrator(h.tiers()...).Process(context.Background(), run)

	assert.True(t, errors.Is(err, domain.ErrDocumentMissing))
	assert.Empty(t, h.transitions)
}

func TestStart_SupersedesAndCreatesPendingRun(t *testing.T) {
	h := newHarness(t)
	h.cert.Version = 3
	h.runs.On("SupersedeByCertificate", mock.Anything, orgID, h.cert.ID).Return(int64(1), nil)
	h.runs.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.ExtractionRun) bool {
		return r.Status == domain.RunStatusPending && r.CertificateVersion == 3
	})).Return(nil)

	run, err := h.orchestrator(h.tiers()...).Start(context.Background(), orgID, h.cert.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.CertificateTypeGasSafety, run.CertificateType)
	h.runs.AssertExpectations(t)
}

func TestStart_LeavesRunForWorker(t *testing.T) {
	h := newHarness(t)
	h.runs.On("SupersedeByCertificate", mock.Anything, orgID, h.cert.ID).Return(int64(0), nil)
	h.runs.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.ExtractionRun) bool {
		return r.ClaimedAt == nil
	})).Return(nil).Once()

	_, err := h.orchestrator(h.tiers()...).Start(context.Background(), orgID, h.cert.ID)

	require.NoError(t, err)
	h.runs.AssertExpectations(t)
}

func TestRun_CreatesClaimedRunAndProcessesInline(t *testing.T) {
	h := newHarness(t)
	h.runs.On("SupersedeByCertificate", mock.Anything, orgID, h.cert.ID).Return(int64(0), nil)
	var created *domain.ExtractionRun
	h.runs.On("Create", mock.Anything, mock.AnythingOfType("*domain.ExtractionRun")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.ExtractionRun)
		stored := *created
		h.stored = &stored
	}).Return(nil).Once()
	h.layout.On("Attempt", mock.Anything, mock.Anything).
		Return(&port.TierResult{Confidence: 0.95, Fields: gasFields(0.95, completeGas)}, nil)
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).Run(context.Background(), orgID, h.cert.ID)

	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotNil(t, created.ClaimedAt, "inline runs must not be claimable by the worker")
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	h.runs.AssertNotCalled(t, "ClaimPending", mock.Anything, mock.Anything)
}

func TestStart_DeletedCertificate(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.cert.DeletedAt = &now

	_, err := h.orchestrator(h.tiers()...).Start(context.Background(), orgID, h.cert.ID)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	h.runs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func (h *harness) pendingReview(run *domain.ExtractionRun, status domain.ReviewStatus) *domain.HumanReview {
	started := time.Now().Add(-90 * time.Second)
	review := &domain.HumanReview{
		ID:        uuid.New(),
		OrgID:     orgID,
		RunID:     run.ID,
		Reason:    domain.ReviewReasonLowConfidence,
		Status:    status,
		StartedAt: &started,
	}
	h.reviews.On("GetByID", mock.Anything, orgID, review.ID).Return(review, nil)
	return review
}

func TestCompleteReview_ApproveSettlesRun(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusAwaitingReview, gasFields(0.6, completeGas))
	review := h.pendingReview(run, domain.ReviewStatusInReview)
	h.reviews.On("Complete", mock.Anything, mock.MatchedBy(func(r *domain.HumanReview) bool {
		return r.Status == domain.ReviewStatusCompleted && r.DurationMs >= 90_000
	})).Return(nil).Once()
	h.eval.On("Evaluate", mock.Anything, orgID, mock.Anything).Return(passing(domain.OutcomePass), nil)
	h.expectApplied()

	got, err := h.orchestrator(h.tiers()...).CompleteReview(context.Background(), &extraction.ReviewDecisionInput{
		OrgID: orgID, ReviewID: review.ID, ReviewerID: uuid.New(), Decision: domain.ReviewDecisionApprove,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, got.Status)
	assert.Equal(t, 3, got.FinalTier)
	assert.Equal(t, 1.0, got.Confidence)
	require.Len(t, h.appended, 1)
	assert.Equal(t, humanreview.AdapterName, h.appended[0].Adapter)
	assert.Equal(t, 3, h.appended[0].Tier)
	assert.Equal(t, 3, h.appended[0].StructuredFields["issue_date"].Tier)
	h.reviews.AssertExpectations(t)
	h.certs.AssertExpectations(t)
}

func TestCompleteReview_RejectClosesRun(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusAwaitingReview, gasFields(0.6, completeGas))
	review := h.pendingReview(run, domain.ReviewStatusPending)
	h.reviews.On("Complete", mock.Anything, mock.Anything).Return(nil)

	got, err := h.orchestrator(h.tiers()...).CompleteReview(context.Background(), &extraction.ReviewDecisionInput{
		OrgID: orgID, ReviewID: review.ID, ReviewerID: uuid.New(),
		Decision: domain.ReviewDecisionReject, ErrorTags: []string{"wrong_expiry_date"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRejected, got.Status)
	assert.Equal(t, domain.StringList{"wrong_expiry_date"}, review.ErrorTags)
	require.Len(t, h.appended, 1)
	assert.Equal(t, 0.0, h.appended[0].Confidence)
	h.certs.AssertNotCalled(t, "ApplyExtraction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteReview_ValidationFailedRunStaysTerminal(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusValidationFailed, gasFields(0.92, completeGas))
	review := h.pendingReview(run, domain.ReviewStatusPending)
	h.reviews.On("Complete", mock.Anything, mock.Anything).Return(nil)

	got, err := h.orchestrator(h.tiers()...).CompleteReview(context.Background(), &extraction.ReviewDecisionInput{
		OrgID: orgID, ReviewID: review.ID, ReviewerID: uuid.New(), Decision: domain.ReviewDecisionApprove,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusValidationFailed, got.Status)
	require.Len(t, h.appended, 1)
	h.runs.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	h.runs.AssertNotCalled(t, "CommitAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteReview_AlreadyCompleted(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusAwaitingReview, nil)
	review := h.pendingReview(run, domain.ReviewStatusCompleted)

	_, err := h.orchestrator(h.tiers()...).CompleteReview(context.Background(), &extraction.ReviewDecisionInput{
		OrgID: orgID, ReviewID: review.ID, ReviewerID: uuid.New(), Decision: domain.ReviewDecisionApprove,
	})

	assert.True(t, errors.Is(err, domain.ErrReviewClosed))
	h.reviews.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestCompleteReview_UnknownDecision(t *testing.T) {
	h := newHarness(t)
	_, err := h.orchestrator().CompleteReview(context.Background(), &extraction.ReviewDecisionInput{
		OrgID: orgID, ReviewID: uuid.New(), Decision: "MAYBE",
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestGoldenThread_OrderedByAttemptTime(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(domain.RunStatusApproved, nil)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	h.attempts.On("ListByRun", mock.Anything, orgID, run.ID).Return([]domain.TierAttempt{
		{Tier: 2, AttemptedAt: base.Add(time.Minute)},
		{Tier: 1, AttemptedAt: base},
	}, nil)

	thread, err := h.orchestrator().GoldenThread(context.Background(), orgID, run.ID)

	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, 1, thread[0].Tier)
	assert.Equal(t, 2, thread[1].Tier)
}
