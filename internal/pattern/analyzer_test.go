package pattern_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"certflow/internal/config"
	"certflow/internal/domain"
	"certflow/internal/pattern"
	"certflow/internal/port"
	"certflow/mocks"
)

var orgID = uuid.MustParse("0d5c8e0e-35b4-4b55-9f50-51e2d7f1c0aa")

// memSuggestions keeps suggestions in memory so repeated analysis can be
// observed end to end.
type memSuggestions struct {
	byID    map[uuid.UUID]*domain.Suggestion
	creates int
	updates int
	// beforeUpdate runs ahead of the status check to stage a concurrent write.
	beforeUpdate func()
}

func newMemSuggestions(seed ...domain.Suggestion) *memSuggestions {
	m := &memSuggestions{byID: map[uuid.UUID]*domain.Suggestion{}}
	for i := range seed {
		s := seed[i]
		m.byID[s.ID] = &s
	}
	return m
}

func (m *memSuggestions) GetByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*domain.Suggestion, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSuggestions) GetByKey(_ context.Context, _ uuid.UUID, key string) (*domain.Suggestion, error) {
	for _, s := range m.byID {
		if s.Key == key {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSuggestions) Create(_ context.Context, s *domain.Suggestion) error {
	for _, existing := range m.byID {
		if existing.Key == s.Key {
			return domain.ErrConflict
		}
	}
	cp := *s
	m.byID[s.ID] = &cp
	m.creates++
	return nil
}

func (m *memSuggestions) Update(_ context.Context, s *domain.Suggestion, from domain.SuggestionStatus) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	stored, ok := m.byID[s.ID]
	if !ok || stored.Status != from {
		return domain.ErrConflict
	}
	cp := *s
	m.byID[s.ID] = &cp
	m.updates++
	return nil
}

func (m *memSuggestions) List(_ context.Context, _ uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error) {
	var out []domain.Suggestion
	for _, s := range m.byID {
		if status == nil || s.Status == *status {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSuggestions) only(t *testing.T) domain.Suggestion {
	t.Helper()
	require.Len(t, m.byID, 1)
	for _, s := range m.byID {
		return *s
	}
	return domain.Suggestion{}
}

var cfg = config.PatternConfig{SupportThreshold: 3, TargetErrorRate: 0.05, Window: 30 * 24 * time.Hour}

func corrections(n int, field string, ct domain.CorrectionType) []domain.Correction {
	out := make([]domain.Correction, n)
	for i := range out {
		out[i] = domain.Correction{
			ID:              uuid.New(),
			OrgID:           orgID,
			FieldName:       field,
			CorrectionType:  ct,
			CertificateType: domain.CertificateTypeGasSafety,
			Tier:            1,
		}
	}
	return out
}

type fixture struct {
	corrections *mocks.MockCorrectionRepo
	reviews     *mocks.MockHumanReviewRepo
	runs        *mocks.MockExtractionRunRepo
	suggestions *memSuggestions
}

func newFixture(found []domain.Correction, rejected []port.ReviewRejection, runs int, seed ...domain.Suggestion) *fixture {
	f := &fixture{
		corrections: new(mocks.MockCorrectionRepo),
		reviews:     new(mocks.MockHumanReviewRepo),
		runs:        new(mocks.MockExtractionRunRepo),
		suggestions: newMemSuggestions(seed...),
	}
	f.corrections.On("ListSince", mock.Anything, orgID, mock.Anything).Return(found, nil)
	f.corrections.On("MarkUsedForImprovement", mock.Anything, orgID, mock.Anything).Return(nil).Maybe()
	f.reviews.On("ListRejectedSince", mock.Anything, orgID, mock.Anything).Return(rejected, nil)
	f.runs.On("CountByTypeSince", mock.Anything, orgID, mock.Anything).
		Return(map[domain.CertificateType]int{domain.CertificateTypeGasSafety: runs, domain.CertificateTypeEICR: runs}, nil)
	return f
}

func (f *fixture) analyzer() pattern.Analyzer {
	return pattern.NewAnalyzer(f.corrections, f.reviews, f.runs, f.suggestions, cfg)
}

func TestRun_CreatesSuggestionForRecurringCluster(t *testing.T) {
	found := append(corrections(3, "issue_date", domain.CorrectionTypeMissing), corrections(1, "expiry_date", domain.CorrectionTypeWrong)...)
	f := newFixture(found, nil, 10)

	report, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	s := f.suggestions.only(t)
	assert.Equal(t, "correction:gas_safety:issue_date:missing", s.Key)
	assert.Equal(t, domain.SuggestionStatusActive, s.Status)
	assert.Equal(t, 3, s.Support)
	assert.InDelta(t, 0.3, s.BaselineValue, 1e-9)
	assert.InDelta(t, 0.05, s.TargetValue, 1e-9)
	f.corrections.AssertCalled(t, "MarkUsedForImprovement", mock.Anything, orgID, mock.MatchedBy(func(ids []uuid.UUID) bool {
		return len(ids) == 3
	}))
}

func TestRun_IsIdempotent(t *testing.T) {
	f := newFixture(corrections(4, "issue_date", domain.CorrectionTypeFormat), nil, 10)
	a := f.analyzer()

	_, err := a.Run(context.Background(), orgID)
	require.NoError(t, err)
	first := f.suggestions.only(t)

	report, err := a.Run(context.Background(), orgID)
	require.NoError(t, err)

	second := f.suggestions.only(t)
	assert.Equal(t, 1, f.suggestions.creates)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Support, second.Support)
	assert.Equal(t, first.CurrentValue, second.CurrentValue)
	assert.Equal(t, first.Status, second.Status)
}

func TestRun_BelowSupportThresholdCreatesNothing(t *testing.T) {
	f := newFixture(corrections(2, "issue_date", domain.CorrectionTypeMissing), nil, 10)

	report, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Empty(t, f.suggestions.byID)
	f.corrections.AssertNotCalled(t, "MarkUsedForImprovement", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_RateAlreadyAtTargetCreatesNothing(t *testing.T) {
	f := newFixture(corrections(3, "issue_date", domain.CorrectionTypeMissing), nil, 1000)

	report, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Zero(t, report.Created)
}

func TestRun_AutoResolvesWhenSignalDisappears(t *testing.T) {
	existing := domain.Suggestion{
		ID: uuid.New(), OrgID: orgID, Key: "correction:gas_safety:issue_date:missing",
		Status: domain.SuggestionStatusInProgress, BaselineValue: 0.3, CurrentValue: 0.3, TargetValue: 0.05, Progress: 0.2,
	}
	f := newFixture(nil, nil, 10, existing)

	report, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoResolved)
	s := f.suggestions.only(t)
	assert.Equal(t, domain.SuggestionStatusAutoResolved, s.Status)
	assert.Equal(t, 1.0, s.Progress)
	assert.NotNil(t, s.ResolvedAt)
}

func TestRun_ProgressNeverDecreases(t *testing.T) {
	existing := domain.Suggestion{
		ID: uuid.New(), OrgID: orgID, Key: "correction:gas_safety:issue_date:missing",
		Status: domain.SuggestionStatusActive, BaselineValue: 0.3, CurrentValue: 0.1, TargetValue: 0.05, Progress: 0.8,
	}
	// Errors climbed back to 0.4.
	f := newFixture(corrections(4, "issue_date", domain.CorrectionTypeMissing), nil, 10, existing)

	_, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	s := f.suggestions.only(t)
	assert.InDelta(t, 0.4, s.CurrentValue, 1e-9)
	assert.Equal(t, 0.8, s.Progress)
	assert.Equal(t, domain.SuggestionStatusActive, s.Status)
}

func TestRun_DismissedSuggestionsAreLeftAlone(t *testing.T) {
	existing := domain.Suggestion{
		ID: uuid.New(), OrgID: orgID, Key: "correction:gas_safety:issue_date:missing",
		Status: domain.SuggestionStatusDismissed, DismissReason: "won't fix", BaselineValue: 0.3, TargetValue: 0.05,
	}
	f := newFixture(nil, nil, 10, existing)

	_, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionStatusDismissed, f.suggestions.only(t).Status)
	assert.Zero(t, f.suggestions.updates)
}

func TestRun_ConcurrentDismissIsNotOverwritten(t *testing.T) {
	existing := domain.Suggestion{
		ID: uuid.New(), OrgID: orgID, Key: "correction:gas_safety:issue_date:missing",
		Status: domain.SuggestionStatusActive, BaselineValue: 0.3, CurrentValue: 0.3, TargetValue: 0.05,
	}
	f := newFixture(nil, nil, 10, existing)
	f.suggestions.beforeUpdate = func() {
		stored := f.suggestions.byID[existing.ID]
		stored.Status = domain.SuggestionStatusDismissed
		stored.DismissReason = "handled upstream"
	}

	report, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.AutoResolved)
	s := f.suggestions.only(t)
	assert.Equal(t, domain.SuggestionStatusDismissed, s.Status)
	assert.Equal(t, "handled upstream", s.DismissReason)
	assert.Nil(t, s.ResolvedAt)
}

func TestLifecycle_LosesRaceWithConcurrentChange(t *testing.T) {
	active := domain.Suggestion{ID: uuid.New(), OrgID: orgID, Key: "k", Status: domain.SuggestionStatusActive}
	f := newFixture(nil, nil, 1, active)
	f.suggestions.beforeUpdate = func() {
		f.suggestions.byID[active.ID].Status = domain.SuggestionStatusAutoResolved
	}

	_, err := f.analyzer().Dismiss(context.Background(), orgID, active.ID, "duplicate")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, domain.SuggestionStatusAutoResolved, f.suggestions.only(t).Status)
}

func TestRun_ClustersRejectionTags(t *testing.T) {
	var rejected []port.ReviewRejection
	for i := 0; i < 3; i++ {
		rejected = append(rejected, port.ReviewRejection{
			ReviewID:        uuid.New(),
			CertificateType: domain.CertificateTypeEICR,
			ErrorTags:       domain.StringList{"wrong_c2_count", " "},
		})
	}
	f := newFixture(nil, rejected, 10)

	report, err := f.analyzer().Run(context.Background(), orgID)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	s := f.suggestions.only(t)
	assert.Equal(t, "review:eicr:wrong_c2_count", s.Key)
	assert.Equal(t, domain.SuggestionSourceReview, s.Source)
	f.corrections.AssertNotCalled(t, "MarkUsedForImprovement", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycle(t *testing.T) {
	active := domain.Suggestion{ID: uuid.New(), OrgID: orgID, Key: "k", Status: domain.SuggestionStatusActive}
	f := newFixture(nil, nil, 1, active)
	a := f.analyzer()
	ctx := context.Background()

	s, err := a.StartWork(ctx, orgID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionStatusInProgress, s.Status)

	_, err = a.StartWork(ctx, orgID, active.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = a.Dismiss(ctx, orgID, active.ID, "  ")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	s, err = a.Dismiss(ctx, orgID, active.ID, "covered by vendor fix")
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionStatusDismissed, s.Status)
	assert.Equal(t, "covered by vendor fix", s.DismissReason)
	assert.NotNil(t, s.ResolvedAt)

	_, err = a.Resolve(ctx, orgID, active.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = a.Resolve(ctx, orgID, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name                      string
		baseline, current, target float64
		want                      float64
	}{
		{"at baseline", 0.3, 0.3, 0.05, 0},
		{"halfway", 0.3, 0.175, 0.05, 0.5},
		{"at target", 0.3, 0.05, 0.05, 1},
		{"worse than baseline", 0.3, 0.5, 0.05, 0},
		{"baseline already at target", 0.05, 0.05, 0.05, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pattern.Progress(tt.baseline, tt.current, tt.target), 1e-9)
		})
	}
}
