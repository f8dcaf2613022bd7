package risk_test

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
	"certflow/internal/config"
	"certflow/internal/domain"
	"certflow/internal/risk"
	"certflow/mocks"
)

var orgID = uuid.MustParse("9a3f2b4c-1d5e-4f60-8a7b-9c0d1e2f3a4b")

type deps struct {
	properties   *mocks.MockPropertyRepo
	certificates *mocks.MockCertificateRepo
	predictions  *mocks.MockPredictionRepo
	feedback     *mocks.MockFeedbackRepo
	models       *mocks.MockModelRepo
	trainingRuns *mocks.MockTrainingRunRepo
}

func newDeps() *deps {
	return &deps{
		properties:   new(mocks.MockPropertyRepo),
		certificates: new(mocks.MockCertificateRepo),
		predictions:  new(mocks.MockPredictionRepo),
		feedback:     new(mocks.MockFeedbackRepo),
		models:       new(mocks.MockModelRepo),
		trainingRuns: new(mocks.MockTrainingRunRepo),
	}
}

func (d *deps) service(cfg config.RiskConfig) risk.Service {
	return risk.NewService(d.properties, d.certificates, d.predictions, d.feedback, d.models, d.trainingRuns,
		cache.NewMemory(time.Minute), time.Minute, cfg)
}

func (d *deps) property(id uuid.UUID) {
	d.properties.On("GetByID", mock.Anything, orgID, id).
		Return(&domain.Property{ID: id, OrgID: orgID, BuildYear: 2012, Units: 1, ExternalRisk: 10}, nil)
	d.certificates.On("ListByProperty", mock.Anything, orgID, id).Return([]domain.Certificate{}, nil)
}

func TestPredict_StatisticalOnly(t *testing.T) {
	d := newDeps()
	propertyID := uuid.New()
	d.property(propertyID)
	d.models.On("GetActive", mock.Anything, orgID).Return(nil, domain.ErrNotFound).Once()
	d.predictions.On("Create", mock.Anything, mock.AnythingOfType("*domain.RiskPrediction")).Return(nil)
	svc := d.service(riskCfg)

	p, err := svc.Predict(context.Background(), orgID, propertyID)
	require.NoError(t, err)
	assert.Nil(t, p.MLScore)
	assert.Nil(t, p.ModelID)
	assert.Equal(t, p.StatScore, p.BlendedScore)
	assert.Equal(t, p.StatConfidence, p.BlendedConfidence)
	assert.Equal(t, risk.CategoryFor(p.BlendedScore), p.Category)
	assert.True(t, p.IsLatest)

	// The "no active model" answer is cached.
	_, err = svc.Predict(context.Background(), orgID, propertyID)
	require.NoError(t, err)
	d.models.AssertNumberOfCalls(t, "GetActive", 1)
}

func TestPredict_BlendsActiveModel(t *testing.T) {
	d := newDeps()
	propertyID := uuid.New()
	d.property(propertyID)
	model := &domain.RiskModel{ID: uuid.New(), OrgID: orgID, Version: 2, Weights: []float64{0, 0, 0, 0, 0}, BenchmarkScore: 90, Passed: true}
	d.models.On("GetActive", mock.Anything, orgID).Return(model, nil)
	d.predictions.On("Create", mock.Anything, mock.Anything).Return(nil)

	p, err := d.service(riskCfg).Predict(context.Background(), orgID, propertyID)

	require.NoError(t, err)
	require.NotNil(t, p.MLScore)
	assert.Equal(t, 50.0, *p.MLScore)
	assert.Equal(t, 0.9, *p.MLConfidence)
	assert.Equal(t, model.ID, *p.ModelID)
	want, wantConf := risk.Blend(p.StatScore, p.StatConfidence, p.MLScore, p.MLConfidence)
	assert.InDelta(t, want, p.BlendedScore, 0.01)
	assert.Equal(t, wantConf, p.BlendedConfidence)
}

func TestPredict_UnknownProperty(t *testing.T) {
	d := newDeps()
	missing := uuid.New()
	d.models.On("GetActive", mock.Anything, orgID).Return(nil, domain.ErrNotFound)
	d.properties.On("GetByID", mock.Anything, orgID, missing).Return(nil, domain.ErrNotFound)

	_, err := d.service(riskCfg).Predict(context.Background(), orgID, missing)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	d.predictions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPredictBulk_CapsDedupesAndIsolatesFailures(t *testing.T) {
	d := newDeps()
	a, b, missing, extra := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	d.property(a)
	d.property(b)
	d.properties.On("GetByID", mock.Anything, orgID, missing).Return(nil, domain.ErrNotFound)
	d.models.On("GetActive", mock.Anything, orgID).Return(nil, domain.ErrNotFound)
	d.predictions.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := d.service(riskCfg).PredictBulk(context.Background(), orgID, []uuid.UUID{a, a, b, missing, extra}, 100)

	require.NoError(t, err)
	assert.Equal(t, 5, res.Requested)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Scored)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 3)
	assert.Equal(t, missing, res.Items[2].PropertyID)
	assert.NotEmpty(t, res.Items[2].Error)
	d.properties.AssertNotCalled(t, "GetByID", mock.Anything, orgID, extra)
}

func labeledFeedback(n int) []domain.LabeledFeedback {
	out := make([]domain.LabeledFeedback, n)
	for i := range out {
		score := float64(20 + (i%5)*10)
		out[i] = domain.LabeledFeedback{
			PredictionFeedback: domain.PredictionFeedback{ID: uuid.New(), Outcome: domain.FeedbackIncorrect, CorrectedScore: &score},
			Factors:            domain.RiskFactors{Expiry: score, Defect: score / 2},
		}
	}
	return out
}

func TestTrain_RejectsConcurrentRequest(t *testing.T) {
	d := newDeps()
	release := make(chan struct{})
	entered := make(chan struct{})
	d.trainingRuns.On("Start", mock.Anything, mock.Anything).Return(nil).Once()
	d.trainingRuns.On("Finish", mock.Anything, mock.Anything).Return(nil)
	d.feedback.On("ListLabeled", mock.Anything, orgID).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]domain.LabeledFeedback{}, nil)
	svc := d.service(riskCfg)

	done := make(chan *risk.TrainResult)
	go func() {
		res, err := svc.Train(context.Background(), orgID, domain.Hyperparameters{})
		assert.NoError(t, err)
		done <- res
	}()
	<-entered

	_, err := svc.Train(context.Background(), orgID, domain.Hyperparameters{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTrainingInProgress))
	assert.True(t, domain.IsRetryable(err))

	close(release)
	first := <-done
	require.NotNil(t, first)
	assert.False(t, first.Passed)
	d.trainingRuns.AssertNumberOfCalls(t, "Start", 1)
}

func TestTrain_RecordsOutcomeAfterCallerCancels(t *testing.T) {
	d := newDeps()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var finishErr error
	finished := false
	d.trainingRuns.On("Start", mock.Anything, mock.Anything).Return(nil)
	d.feedback.On("ListLabeled", mock.Anything, orgID).
		Run(func(mock.Arguments) { cancel() }).
		Return(labeledFeedback(2), nil)
	d.trainingRuns.On("Finish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			finished = true
			finishErr = args.Get(0).(context.Context).Err()
		}).
		Return(nil).Once()

	_, err := d.service(riskCfg).Train(ctx, orgID, domain.Hyperparameters{})

	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.True(t, finished)
	assert.NoError(t, finishErr)
}

func TestTrain_ConflictFromStore(t *testing.T) {
	d := newDeps()
	d.trainingRuns.On("Start", mock.Anything, mock.Anything).Return(domain.ErrTrainingInProgress)

	_, err := d.service(riskCfg).Train(context.Background(), orgID, domain.Hyperparameters{})

	assert.True(t, errors.Is(err, domain.ErrTrainingInProgress))
	d.feedback.AssertNotCalled(t, "ListLabeled", mock.Anything, mock.Anything)
}

func TestTrain_InsufficientDataReportsNotPassed(t *testing.T) {
	d := newDeps()
	d.trainingRuns.On("Start", mock.Anything, mock.Anything).Return(nil)
	d.trainingRuns.On("Finish", mock.Anything, mock.MatchedBy(func(r *domain.TrainingRun) bool {
		return r.Status == domain.TrainingStatusCompleted && !r.Passed && r.SampleCount == 2
	})).Return(nil).Once()
	d.feedback.On("ListLabeled", mock.Anything, orgID).Return(labeledFeedback(2), nil)

	res, err := d.service(riskCfg).Train(context.Background(), orgID, domain.Hyperparameters{})

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Nil(t, res.ModelID)
	assert.Contains(t, res.Reason, "not enough labeled feedback")
	d.models.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	d.trainingRuns.AssertExpectations(t)
}

func TestTrain_BelowBenchmarkIsStoredButNotPromoted(t *testing.T) {
	d := newDeps()
	cfg := riskCfg
	cfg.MinBenchmark = 101
	d.trainingRuns.On("Start", mock.Anything, mock.Anything).Return(nil)
	d.trainingRuns.On("Finish", mock.Anything, mock.Anything).Return(nil)
	d.feedback.On("ListLabeled", mock.Anything, orgID).Return(labeledFeedback(10), nil)
	d.feedback.On("MarkUsedInTraining", mock.Anything, orgID, mock.Anything).Return(nil)
	d.models.On("NextVersion", mock.Anything, orgID).Return(3, nil)
	d.models.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.RiskModel) bool {
		return m.Version == 3 && !m.Passed && m.SampleCount == 10
	})).Return(nil)

	res, err := d.service(cfg).Train(context.Background(), orgID, domain.Hyperparameters{Epochs: 10})

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.False(t, res.Promoted)
	assert.Equal(t, 3, res.ModelVersion)
	d.models.AssertNotCalled(t, "SwapActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrain_PassingModelIsPromoted(t *testing.T) {
	d := newDeps()
	cfg := riskCfg
	cfg.MinBenchmark = 0
	created := &domain.RiskModel{}
	d.trainingRuns.On("Start", mock.Anything, mock.Anything).Return(nil)
	d.trainingRuns.On("Finish", mock.Anything, mock.MatchedBy(func(r *domain.TrainingRun) bool {
		return r.Promoted && r.ModelID != nil
	})).Return(nil).Once()
	d.feedback.On("ListLabeled", mock.Anything, orgID).Return(labeledFeedback(10), nil)
	d.feedback.On("MarkUsedInTraining", mock.Anything, orgID, mock.MatchedBy(func(ids []uuid.UUID) bool {
		return len(ids) == 10
	})).Return(nil)
	d.models.On("NextVersion", mock.Anything, orgID).Return(1, nil)
	d.models.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*created = *args.Get(1).(*domain.RiskModel)
	}).Return(nil)
	d.models.On("GetByID", mock.Anything, orgID, mock.Anything).Return(created, nil)
	d.models.On("GetActive", mock.Anything, orgID).Return(nil, domain.ErrNotFound)
	d.models.On("SwapActive", mock.Anything, orgID, (*uuid.UUID)(nil), mock.Anything).Return(nil)

	res, err := d.service(cfg).Train(context.Background(), orgID, domain.Hyperparameters{Epochs: 20})

	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.Promoted)
	require.NotNil(t, res.ModelID)
	assert.Equal(t, created.ID, *res.ModelID)
	d.trainingRuns.AssertExpectations(t)
}

func TestPromote_RequiresPassedModel(t *testing.T) {
	d := newDeps()
	id := uuid.New()
	d.models.On("GetByID", mock.Anything, orgID, id).Return(&domain.RiskModel{ID: id, Passed: false}, nil)

	_, err := d.service(riskCfg).Promote(context.Background(), orgID, id)

	assert.True(t, errors.Is(err, domain.ErrModelNotPassed))
}

func TestPromote_CompareAndSwap(t *testing.T) {
	d := newDeps()
	current := &domain.RiskModel{ID: uuid.New(), Passed: true, Version: 1}
	next := &domain.RiskModel{ID: uuid.New(), Passed: true, Version: 2}
	d.models.On("GetByID", mock.Anything, orgID, next.ID).Return(next, nil)
	d.models.On("GetActive", mock.Anything, orgID).Return(current, nil)
	d.models.On("SwapActive", mock.Anything, orgID, &current.ID, next.ID).Return(domain.ErrActiveModelChanged).Once()
	d.models.On("SwapActive", mock.Anything, orgID, &current.ID, next.ID).Return(nil).Once()
	svc := d.service(riskCfg)

	_, err := svc.Promote(context.Background(), orgID, next.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrActiveModelChanged))

	m, err := svc.Promote(context.Background(), orgID, next.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, m.ID)
}

func TestPromote_AlreadyActiveIsNoop(t *testing.T) {
	d := newDeps()
	m := &domain.RiskModel{ID: uuid.New(), Passed: true}
	d.models.On("GetByID", mock.Anything, orgID, m.ID).Return(m, nil)
	d.models.On("GetActive", mock.Anything, orgID).Return(m, nil)

	_, err := d.service(riskCfg).Promote(context.Background(), orgID, m.ID)

	require.NoError(t, err)
	d.models.AssertNotCalled(t, "SwapActive", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitFeedback_PartialSuccess(t *testing.T) {
	d := newDeps()
	known, unknown := uuid.New(), uuid.New()
	userID := uuid.New()
	d.predictions.On("GetByID", mock.Anything, orgID, known).Return(&domain.RiskPrediction{ID: known}, nil)
	d.predictions.On("GetByID", mock.Anything, orgID, unknown).Return(nil, domain.ErrNotFound)
	d.feedback.On("Create", mock.Anything, mock.MatchedBy(func(f *domain.PredictionFeedback) bool {
		return f.PredictionID == known && f.SubmittedBy == userID
	})).Return(nil).Once()
	bad := domain.RiskCategory("EXTREME")

	res, err := d.service(riskCfg).SubmitFeedback(context.Background(), orgID, userID, []risk.FeedbackInput{
		{PredictionID: known, Outcome: domain.FeedbackIncorrect, CorrectedScore: ptr(70), Notes: " boiler replaced "},
		{PredictionID: unknown, Outcome: domain.FeedbackCorrect},
		{PredictionID: known, Outcome: "MAYBE"},
		{PredictionID: known, Outcome: domain.FeedbackIncorrect, CorrectedScore: ptr(140)},
		{PredictionID: known, Outcome: domain.FeedbackIncorrect, CorrectedCategory: &bad},
	})

	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "boiler replaced", res.Accepted[0].Notes)
	require.Len(t, res.Rejected, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{res.Rejected[0].Index, res.Rejected[1].Index, res.Rejected[2].Index, res.Rejected[3].Index})
	d.feedback.AssertExpectations(t)
}
