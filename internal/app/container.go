// Package app resolves every capability once at process start and hands the
// wired services to the binaries.
package app

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/cache"
	"certflow/internal/config"
	"certflow/internal/email/noop"
	"certflow/internal/email/ses"
	"certflow/internal/extraction"
	"certflow/internal/handler"
	"certflow/internal/pattern"
	"certflow/internal/poll"
	"certflow/internal/port"
	"certflow/internal/ratelimit"
	"certflow/internal/repository/postgres"
	"certflow/internal/risk"
	"certflow/internal/rules"
	"certflow/internal/service"
	s3storage "certflow/internal/storage/s3"
	"certflow/internal/tier/layout"
	"certflow/internal/tier/review"
	"certflow/internal/tier/vision"
)

// Repositories holds the Postgres repositories.
type Repositories struct {
	Properties   port.PropertyRepository
	Certificates port.CertificateRepository
	Runs         port.ExtractionRunRepository
	Attempts     port.TierAttemptRepository
	Reviews      port.HumanReviewRepository
	Corrections  port.CorrectionRepository
	Suggestions  port.SuggestionRepository
	Predictions  port.PredictionRepository
	Feedback     port.FeedbackRepository
	Models       port.ModelRepository
	TrainingRuns port.TrainingRunRepository
	Rules        port.ValidationRuleRepository
}

// Container holds the wired application.
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Repos  Repositories

	Cache           port.Cache
	AnalysisLimiter port.RateLimiter
	TrainingLimiter port.RateLimiter
	Storage         port.ObjectStorage
	Notifier        port.ReviewNotifier

	Rules        *rules.Engine
	Orchestrator extraction.Orchestrator
	Corrections  service.CorrectionService
	Reviews      service.ReviewService
	Patterns     pattern.Analyzer
	Risk         risk.Service
	Worker       *service.ExtractionWorker
	Sweeper      *service.Sweeper
}

// New connects to the backing services and wires every component. The
// caller must Close the container.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, eris.Wrap(err, "connecting to database")
	}
	c.DB = db
	c.Repos = Repositories{
		Properties:   postgres.NewPropertyRepo(db),
		Certificates: postgres.NewCertificateRepo(db),
		Runs:         postgres.NewExtractionRunRepo(db),
		Attempts:     postgres.NewTierAttemptRepo(db),
		Reviews:      postgres.NewHumanReviewRepo(db),
		Corrections:  postgres.NewCorrectionRepo(db),
		Suggestions:  postgres.NewSuggestionRepo(db),
		Predictions:  postgres.NewPredictionRepo(db),
		Feedback:     postgres.NewFeedbackRepo(db),
		Models:       postgres.NewModelRepo(db),
		TrainingRuns: postgres.NewTrainingRunRepo(db),
		Rules:        postgres.NewValidationRuleRepo(db),
	}

	rdb, err := cache.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Redis = rdb
	c.Cache = cache.New(rdb)
	c.AnalysisLimiter = ratelimit.New(rdb, "analyze", cfg.RateLimit.AnalysisRequests, cfg.RateLimit.Window)
	c.TrainingLimiter = ratelimit.New(rdb, "train", cfg.RateLimit.TrainingRequests, cfg.RateLimit.Window)

	c.Storage, err = s3storage.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		c.Close()
		return nil, eris.Wrap(err, "initializing object storage")
	}

	c.Notifier, err = newNotifier(ctx, cfg.Email)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Rules, err = rules.NewEngine(c.Repos.Rules, c.Cache, cfg.Cache.RulesTTL)
	if err != nil {
		c.Close()
		return nil, eris.Wrap(err, "compiling built-in rules")
	}

	tiers, err := newTiers(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Orchestrator = extraction.NewOrchestrator(
		tiers,
		c.Repos.Runs,
		c.Repos.Attempts,
		c.Repos.Reviews,
		c.Repos.Certificates,
		c.Storage,
		c.Rules,
		c.Notifier,
		cfg.Extraction.ReviewLinkExpiry,
	)

	c.Corrections = service.NewCorrectionService(c.Repos.Corrections, c.Repos.Runs, c.Repos.Certificates)
	c.Reviews = service.NewReviewService(c.Repos.Reviews, c.Orchestrator, c.Corrections)
	c.Patterns = pattern.NewAnalyzer(c.Repos.Corrections, c.Repos.Reviews, c.Repos.Runs, c.Repos.Suggestions, cfg.Pattern)
	c.Risk = risk.NewService(
		c.Repos.Properties,
		c.Repos.Certificates,
		c.Repos.Predictions,
		c.Repos.Feedback,
		c.Repos.Models,
		c.Repos.TrainingRuns,
		c.Cache,
		cfg.Cache.ActiveModelTTL,
		cfg.Risk,
	)

	c.Worker = service.NewExtractionWorker(c.Repos.Runs, c.Orchestrator, service.ExtractionWorkerConfig{
		PollInterval: cfg.Extraction.WorkerInterval,
		Concurrency:  cfg.Extraction.Concurrency,
		RunTimeout:   cfg.Extraction.Tier1Timeout + cfg.Extraction.Tier2Timeout,
	})
	c.Sweeper = service.NewSweeper(c.Repos.Runs, c.Repos.TrainingRuns, service.SweeperConfig{
		Interval:        cfg.Extraction.SweepInterval,
		StaleRunTimeout: cfg.Extraction.StaleRunTimeout,
		ReviewTimeout:   cfg.Extraction.ReviewTimeout,
		TrainingTimeout: cfg.Risk.TrainingTimeout,
	})

	return c, nil
}

func newNotifier(ctx context.Context, cfg config.EmailConfig) (port.ReviewNotifier, error) {
	switch cfg.Provider {
	case "ses":
		n, err := ses.NewSESNotifier(ctx, cfg)
		if err != nil {
			return nil, eris.Wrap(err, "initializing SES notifier")
		}
		return n, nil
	case "", "noop":
		return noop.NewNoopNotifier(cfg.FrontendURL), nil
	default:
		return nil, eris.Errorf("unknown email provider: %s", cfg.Provider)
	}
}

// newTiers builds the escalation ladder. Unconfigured adapters stay in the
// ladder and fail their attempts with a configuration error.
func newTiers(cfg *config.Config) ([]extraction.Tier, error) {
	ex := cfg.Extraction
	schedule := poll.Schedule{Attempts: ex.PollAttempts, Interval: ex.PollInterval}

	provider, err := vision.NewProvider(&cfg.Vision.Primary)
	if err != nil {
		return nil, err
	}
	if sc := cfg.Vision.SecondaryConfig(); sc != nil {
		secondary, err := vision.NewProvider(sc)
		if err != nil {
			return nil, err
		}
		provider = vision.NewFallback(provider, secondary)
		zap.L().Info("app: vision fallback enabled",
			zap.String("primary", cfg.Vision.Primary.Provider),
			zap.String("secondary", sc.Provider))
	}

	return []extraction.Tier{
		{
			Level:     1,
			Adapter:   layout.NewAdapter(cfg.Layout, schedule, layout.NewClient(cfg.Layout)),
			Threshold: ex.Tier1Threshold,
			Timeout:   ex.Tier1Timeout,
		},
		{
			Level:     2,
			Adapter:   vision.NewAdapter(provider),
			Threshold: ex.Tier2Threshold,
			Timeout:   ex.Tier2Timeout,
		},
		{
			Level:   3,
			Adapter: review.NewAdapter(),
		},
	}, nil
}

// Close releases the database and cache connections. A Redis-backed cache
// closes the shared client.
func (c *Container) Close() {
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			zap.L().Warn("app.Close: closing cache", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			zap.L().Warn("app.Close: closing database", zap.Error(err))
		}
	}
}

// HealthChecks returns the readiness checks for the backing services.
func (c *Container) HealthChecks() map[string]handler.Check {
	checks := map[string]handler.Check{
		"database": func(ctx context.Context) error { return postgres.Ping(ctx, c.DB) },
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	return checks
}
