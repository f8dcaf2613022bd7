package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/domain"
	"certflow/internal/port"
)

// SweeperConfig holds settings for the stale-run sweeper.
type SweeperConfig struct {
	Interval        time.Duration
	StaleRunTimeout time.Duration
	// ReviewTimeout also fails runs left AWAITING_REVIEW this long. Zero
	// leaves them queued indefinitely.
	ReviewTimeout time.Duration
	// TrainingTimeout fails training runs left RUNNING this long.
	TrainingTimeout time.Duration
}

// SweepResult lists the runs failed by one sweep.
type SweepResult struct {
	Automated []domain.ExtractionRun `json:"automated"`
	Review    []domain.ExtractionRun `json:"review"`
	Training  []domain.TrainingRun   `json:"training"`
}

// Total is the number of runs swept.
func (r *SweepResult) Total() int { return len(r.Automated) + len(r.Review) + len(r.Training) }

// Sweeper fails runs that stopped making progress.
type Sweeper struct {
	runs     port.ExtractionRunRepository
	training port.TrainingRunRepository
	cfg      SweeperConfig
	now      func() time.Time
}

// NewSweeper creates a new Sweeper.
func NewSweeper(runs port.ExtractionRunRepository, training port.TrainingRunRepository, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleRunTimeout <= 0 {
		cfg.StaleRunTimeout = 15 * time.Minute
	}
	if cfg.TrainingTimeout <= 0 {
		cfg.TrainingTimeout = 30 * time.Minute
	}
	return &Sweeper{runs: runs, training: training, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Start sweeps every interval until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	zap.L().Info("sweeper: started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("stale_after", s.cfg.StaleRunTimeout))

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sweeper: stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("sweeper: sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs a single pass.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	result := &SweepResult{}

	automated, err := s.runs.SweepStale(ctx, domain.SweepableStatuses, now.Add(-s.cfg.StaleRunTimeout),
		fmt.Sprintf("no progress for %s", s.cfg.StaleRunTimeout))
	if err != nil {
		return nil, eris.Wrap(err, "sweeping automated runs")
	}
	result.Automated = automated

	if s.cfg.ReviewTimeout > 0 {
		review, err := s.runs.SweepStale(ctx, []domain.RunStatus{domain.RunStatusAwaitingReview},
			now.Add(-s.cfg.ReviewTimeout), fmt.Sprintf("not reviewed within %s", s.cfg.ReviewTimeout))
		if err != nil {
			return result, eris.Wrap(err, "sweeping runs awaiting review")
		}
		result.Review = review
	}

	training, err := s.training.FailStale(ctx, now.Add(-s.cfg.TrainingTimeout),
		fmt.Sprintf("training did not finish within %s", s.cfg.TrainingTimeout))
	if err != nil {
		return result, eris.Wrap(err, "sweeping training runs")
	}
	result.Training = training

	if result.Total() > 0 {
		zap.L().Warn("sweeper: failed stale runs",
			zap.Int("automated", len(result.Automated)),
			zap.Int("review", len(result.Review)),
			zap.Int("training", len(result.Training)))
	}
	return result, nil
}
