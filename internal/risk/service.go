package risk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"certflow/internal/cache"
	"certflow/internal/config"
	"certflow/internal/domain"
	"certflow/internal/port"
)

// BulkItem is the outcome for one property of a bulk prediction.
type BulkItem struct {
	PropertyID uuid.UUID              `json:"property_id"`
	Prediction *domain.RiskPrediction `json:"prediction,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// BulkResult is the outcome of PredictBulk. Properties beyond the cap are
// counted in Skipped and not scored.
type BulkResult struct {
	Requested int        `json:"requested"`
	Scored    int        `json:"scored"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	Items     []BulkItem `json:"items"`
}

// TrainResult reports a training run. A model that misses the benchmark is
// reported with Passed false rather than as an error.
type TrainResult struct {
	TrainingRunID  uuid.UUID  `json:"training_run_id"`
	ModelID        *uuid.UUID `json:"model_id,omitempty"`
	ModelVersion   int        `json:"model_version,omitempty"`
	BenchmarkScore float64    `json:"benchmark_score"`
	Passed         bool       `json:"passed"`
	Promoted       bool       `json:"promoted"`
	SampleCount    int        `json:"sample_count"`
	Reason         string     `json:"reason,omitempty"`
}

// BenchmarkResult scores a stored model against current feedback.
type BenchmarkResult struct {
	ModelID        uuid.UUID `json:"model_id"`
	BenchmarkScore float64   `json:"benchmark_score"`
	Passed         bool      `json:"passed"`
	SampleCount    int       `json:"sample_count"`
}

// Service is the risk ensemble.
type Service interface {
	Predict(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.RiskPrediction, error)
	PredictBulk(ctx context.Context, orgID uuid.UUID, propertyIDs []uuid.UUID, limit int) (*BulkResult, error)
	SubmitFeedback(ctx context.Context, orgID, userID uuid.UUID, items []FeedbackInput) (*FeedbackResult, error)
	// Train fits a new model on labeled feedback and promotes it if it passes.
	// Only one training run per organization may be in flight.
	Train(ctx context.Context, orgID uuid.UUID, hp domain.Hyperparameters) (*TrainResult, error)
	Benchmark(ctx context.Context, orgID, modelID uuid.UUID) (*BenchmarkResult, error)
	Promote(ctx context.Context, orgID, modelID uuid.UUID) (*domain.RiskModel, error)
	// RescoreLatest re-predicts up to limit properties, typically after a promotion.
	RescoreLatest(ctx context.Context, orgID uuid.UUID, limit int) (*BulkResult, error)
	ActiveModel(ctx context.Context, orgID uuid.UUID) (*domain.RiskModel, error)
	TrainingRuns(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.TrainingRun, error)
}

type service struct {
	properties   port.PropertyRepository
	certificates port.CertificateRepository
	predictions  port.PredictionRepository
	feedback     port.FeedbackRepository
	models       port.ModelRepository
	trainingRuns port.TrainingRunRepository
	cache        port.Cache
	cacheTTL     time.Duration
	scorer       *Scorer
	cfg          config.RiskConfig
	now          func() time.Time

	training sync.Map
}

// NewService creates the risk Service.
func NewService(
	properties port.PropertyRepository,
	certificates port.CertificateRepository,
	predictions port.PredictionRepository,
	feedback port.FeedbackRepository,
	models port.ModelRepository,
	trainingRuns port.TrainingRunRepository,
	c port.Cache,
	cacheTTL time.Duration,
	cfg config.RiskConfig,
) Service {
	return &service{
		properties:   properties,
		certificates: certificates,
		predictions:  predictions,
		feedback:     feedback,
		models:       models,
		trainingRuns: trainingRuns,
		cache:        c,
		cacheTTL:     cacheTTL,
		scorer:       NewScorer(cfg),
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// activeEntry is the cached active-model lookup. A nil Model caches "none".
type activeEntry struct {
	Model *domain.RiskModel `json:"model"`
}

func activeKey(orgID uuid.UUID) string {
	return "risk:active:" + orgID.String()
}

func (s *service) ActiveModel(ctx context.Context, orgID uuid.UUID) (*domain.RiskModel, error) {
	key := activeKey(orgID)
	if entry, ok, err := cache.GetJSON[activeEntry](ctx, s.cache, key); err != nil {
		zap.L().Warn("risk.ActiveModel: cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return entry.Model, nil
	}

	m, err := s.models.GetActive(ctx, orgID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, eris.Wrap(err, "loading active model")
	}
	if err := cache.SetJSON(ctx, s.cache, key, activeEntry{Model: m}, s.cacheTTL); err != nil {
		zap.L().Warn("risk.ActiveModel: cache write failed", zap.String("key", key), zap.Error(err))
	}
	return m, nil
}

func (s *service) Predict(ctx context.Context, orgID, propertyID uuid.UUID) (*domain.RiskPrediction, error) {
	active, err := s.ActiveModel(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.predict(ctx, orgID, propertyID, active)
}

func (s *service) predict(ctx context.Context, orgID, propertyID uuid.UUID, active *domain.RiskModel) (*domain.RiskPrediction, error) {
	property, err := s.properties.GetByID(ctx, orgID, propertyID)
	if err != nil {
		return nil, err
	}
	certs, err := s.certificates.ListByProperty(ctx, orgID, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "listing certificates")
	}

	now := s.now()
	stat := s.scorer.Score(PropertyFeatures{Property: *property, Certificates: certs, Now: now})
	p := &domain.RiskPrediction{
		ID:                  uuid.New(),
		OrgID:               orgID,
		PropertyID:          propertyID,
		StatScore:           stat.Score,
		StatConfidence:      stat.Confidence,
		Factors:             stat.Factors,
		PredictedBreachDate: stat.PredictedBreachDate,
		IsLatest:            true,
		CreatedAt:           now,
	}
	if active != nil {
		mlScore := ModelFrom(active).Score(stat.Factors)
		mlConf := active.BenchmarkScore / 100
		p.MLScore = &mlScore
		p.MLConfidence = &mlConf
		id := active.ID
		p.ModelID = &id
	}
	score, conf := Blend(p.StatScore, p.StatConfidence, p.MLScore, p.MLConfidence)
	p.BlendedScore = round2(score)
	p.BlendedConfidence = conf
	p.Category = CategoryFor(p.BlendedScore)

	if err := s.predictions.Create(ctx, p); err != nil {
		return nil, eris.Wrap(err, "saving prediction")
	}
	return p, nil
}

func (s *service) PredictBulk(ctx context.Context, orgID uuid.UUID, propertyIDs []uuid.UUID, limit int) (*BulkResult, error) {
	if limit <= 0 || limit > s.cfg.BulkCap {
		limit = s.cfg.BulkCap
	}
	ids := dedupe(propertyIDs)
	result := &BulkResult{Requested: len(propertyIDs)}
	if len(ids) > limit {
		result.Skipped = len(ids) - limit
		ids = ids[:limit]
	}

	active, err := s.ActiveModel(ctx, orgID)
	if err != nil {
		return nil, err
	}

	items := make([]BulkItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.BulkConcurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			items[i].PropertyID = id
			p, err := s.predict(gctx, orgID, id, active)
			if err != nil {
				// A cancelled context stops the batch; anything else is per item.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				items[i].Error = err.Error()
				return nil
			}
			items[i].Prediction = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "bulk prediction interrupted")
	}

	for _, it := range items {
		if it.Error != "" {
			result.Failed++
		} else {
			result.Scored++
		}
	}
	result.Items = items
	zap.L().Info("risk.PredictBulk: done",
		zap.String("org_id", orgID.String()),
		zap.Int("scored", result.Scored),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *service) RescoreLatest(ctx context.Context, orgID uuid.UUID, limit int) (*BulkResult, error) {
	if limit <= 0 {
		limit = s.cfg.RescoreLimit
	}
	ids, err := s.properties.ListIDs(ctx, orgID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "listing properties")
	}
	return s.PredictBulk(ctx, orgID, ids, len(ids))
}

const finishTimeout = 10 * time.Second

func (s *service) Train(ctx context.Context, orgID uuid.UUID, hp domain.Hyperparameters) (*TrainResult, error) {
	if _, busy := s.training.LoadOrStore(orgID, struct{}{}); busy {
		return nil, eris.Wrap(domain.ErrTrainingInProgress, "training already running in this process")
	}
	defer s.training.Delete(orgID)

	hp = WithDefaults(hp)
	run := &domain.TrainingRun{
		ID:        uuid.New(),
		OrgID:     orgID,
		Status:    domain.TrainingStatusRunning,
		StartedAt: s.now(),
	}
	if err := s.trainingRuns.Start(ctx, run); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("org_id", orgID.String()), zap.String("training_run_id", run.ID.String()))

	result, err := s.train(ctx, orgID, hp, run)
	completed := s.now()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = domain.TrainingStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = domain.TrainingStatusCompleted
		if result.Reason != "" {
			run.Error = result.Reason
		}
	}
	// Recorded even when the caller is gone; a RUNNING row blocks the org.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if ferr := s.trainingRuns.Finish(finishCtx, run); ferr != nil {
		log.Error("risk.Train: recording training run", zap.Error(ferr))
	}
	if err != nil {
		return nil, err
	}
	result.TrainingRunID = run.ID
	log.Info("risk.Train: done",
		zap.Float64("benchmark", result.BenchmarkScore),
		zap.Bool("passed", result.Passed),
		zap.Bool("promoted", result.Promoted))
	return result, nil
}

func (s *service) train(ctx context.Context, orgID uuid.UUID, hp domain.Hyperparameters, run *domain.TrainingRun) (*TrainResult, error) {
	examples, err := s.examples(ctx, orgID)
	if err != nil {
		return nil, err
	}
	run.SampleCount = len(examples)
	if len(examples) < max(s.cfg.MinTrainingSamples, 2) {
		return &TrainResult{
			SampleCount: len(examples),
			Reason:      eris.Wrapf(domain.ErrInsufficientData, "%d labeled examples", len(examples)).Error(),
		}, nil
	}

	head, holdout := Split(examples)
	model := Train(head, hp)
	score := Benchmark(model, holdout)
	passed := score >= s.cfg.MinBenchmark

	version, err := s.models.NextVersion(ctx, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "allocating model version")
	}
	stored := &domain.RiskModel{
		ID:              uuid.New(),
		OrgID:           orgID,
		Version:         version,
		Hyperparameters: hp,
		Weights:         model.Weights,
		Bias:            model.Bias,
		BenchmarkScore:  score,
		Passed:          passed,
		SampleCount:     len(examples),
		CreatedAt:       s.now(),
	}
	if err := s.models.Create(ctx, stored); err != nil {
		return nil, eris.Wrap(err, "saving model")
	}

	ids := make([]uuid.UUID, len(examples))
	for i, ex := range examples {
		ids[i] = ex.FeedbackID
	}
	if err := s.feedback.MarkUsedInTraining(ctx, orgID, ids); err != nil {
		zap.L().Warn("risk.Train: marking feedback used", zap.Error(err))
	}

	modelID := stored.ID
	run.ModelID = &modelID
	run.BenchmarkScore = score
	run.Passed = passed
	result := &TrainResult{
		ModelID:        &modelID,
		ModelVersion:   version,
		BenchmarkScore: score,
		Passed:         passed,
		SampleCount:    len(examples),
	}
	if !passed {
		result.Reason = "benchmark below minimum"
		return result, nil
	}

	if _, err := s.Promote(ctx, orgID, stored.ID); err != nil {
		if !domain.IsRetryable(err) {
			return nil, err
		}
		result.Reason = "promotion lost a race with another promotion"
		return result, nil
	}
	run.Promoted = true
	result.Promoted = true
	return result, nil
}

func (s *service) examples(ctx context.Context, orgID uuid.UUID) ([]Example, error) {
	labeled, err := s.feedback.ListLabeled(ctx, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "loading labeled feedback")
	}
	examples := make([]Example, 0, len(labeled))
	for _, f := range labeled {
		if ex, ok := ExampleFrom(f); ok {
			examples = append(examples, ex)
		}
	}
	return examples, nil
}

func (s *service) Benchmark(ctx context.Context, orgID, modelID uuid.UUID) (*BenchmarkResult, error) {
	m, err := s.models.GetByID(ctx, orgID, modelID)
	if err != nil {
		return nil, err
	}
	examples, err := s.examples(ctx, orgID)
	if err != nil {
		return nil, err
	}
	score := Benchmark(ModelFrom(m), examples)
	return &BenchmarkResult{
		ModelID:        m.ID,
		BenchmarkScore: score,
		Passed:         score >= s.cfg.MinBenchmark,
		SampleCount:    len(examples),
	}, nil
}

// Promote makes modelID the organization's active model. The swap only
// succeeds if the active pointer has not moved since it was read.
func (s *service) Promote(ctx context.Context, orgID, modelID uuid.UUID) (*domain.RiskModel, error) {
	m, err := s.models.GetByID(ctx, orgID, modelID)
	if err != nil {
		return nil, err
	}
	if !m.Passed {
		return nil, eris.Wrapf(domain.ErrModelNotPassed, "model v%d scored %.2f", m.Version, m.BenchmarkScore)
	}

	current, err := s.models.GetActive(ctx, orgID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, eris.Wrap(err, "loading active model")
	}
	var expected *uuid.UUID
	if current != nil {
		if current.ID == m.ID {
			return m, nil
		}
		id := current.ID
		expected = &id
	}
	if err := s.models.SwapActive(ctx, orgID, expected, m.ID); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, activeKey(orgID)); err != nil {
		zap.L().Warn("risk.Promote: cache invalidation failed", zap.Error(err))
	}
	zap.L().Info("risk.Promote: model promoted",
		zap.String("org_id", orgID.String()), zap.Int("version", m.Version))

	if s.cfg.RescoreOnPromote {
		if _, err := s.RescoreLatest(ctx, orgID, s.cfg.RescoreLimit); err != nil {
			zap.L().Warn("risk.Promote: rescoring after promotion", zap.Error(err))
		}
	}
	return m, nil
}

func (s *service) TrainingRuns(ctx context.Context, orgID uuid.UUID, limit int) ([]domain.TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.trainingRuns.ListByOrg(ctx, orgID, limit)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
