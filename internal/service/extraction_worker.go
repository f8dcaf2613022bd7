package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"certflow/internal/domain"
	"certflow/internal/extraction"
	"certflow/internal/port"
)

// ExtractionWorkerConfig holds settings for the extraction worker.
type ExtractionWorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
	// RunTimeout bounds the processing of one claimed run.
	RunTimeout time.Duration
}

// ExtractionWorker polls for PENDING runs and drives them through the tiers.
type ExtractionWorker struct {
	runs         port.ExtractionRunRepository
	orchestrator extraction.Orchestrator
	cfg          ExtractionWorkerConfig
	sem          chan struct{}
	wg           sync.WaitGroup
}

// NewExtractionWorker creates a new ExtractionWorker.
func NewExtractionWorker(runs port.ExtractionRunRepository, orchestrator extraction.Orchestrator, cfg ExtractionWorkerConfig) *ExtractionWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &ExtractionWorker{
		runs:         runs,
		orchestrator: orchestrator,
		cfg:          cfg,
		sem:          make(chan struct{}, cfg.Concurrency),
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight runs have finished.
func (w *ExtractionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	zap.L().Info("extractionWorker: started",
		zap.Duration("poll", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency))

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("extractionWorker: shutting down, waiting for in-flight runs")
			w.Wait()
			zap.L().Info("extractionWorker: shutdown complete")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll claims as many PENDING runs as there are free slots and dispatches
// them. It returns the number dispatched.
func (w *ExtractionWorker) Poll(ctx context.Context) int {
	available := w.cfg.Concurrency - len(w.sem)
	if available <= 0 {
		return 0
	}

	runs, err := w.runs.ClaimPending(ctx, available)
	if err != nil {
		if ctx.Err() == nil {
			zap.L().Error("extractionWorker: ClaimPending failed", zap.Error(err))
		}
		return 0
	}

	for i := range runs {
		run := runs[i]
		w.sem <- struct{}{}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			w.process(&run)
		}()
	}
	return len(runs)
}

// Wait blocks until every dispatched run has finished.
func (w *ExtractionWorker) Wait() {
	w.wg.Wait()
}

func (w *ExtractionWorker) process(run *domain.ExtractionRun) {
	// In-flight runs finish on their own deadline even during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.RunTimeout)
	defer cancel()

	log := zap.L().With(
		zap.String("run_id", run.ID.String()),
		zap.String("org_id", run.OrgID.String()))
	log.Debug("extractionWorker: dispatching run")

	out, err := w.orchestrator.Process(ctx, run)
	if err != nil {
		log.Warn("extractionWorker: run did not complete", zap.Error(err))
		return
	}
	log.Info("extractionWorker: run processed",
		zap.String("status", string(out.Status)),
		zap.Int("final_tier", out.FinalTier))
}
