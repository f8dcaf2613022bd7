// Package extraction drives a certificate through the extraction tiers and
// owns the golden thread: one append-only TierAttempt per tier invocation.
package extraction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/certificate"
	"certflow/internal/domain"
	"certflow/internal/port"
	"certflow/internal/rules"
)

const maxErrorMessage = 2000

// Tier is one rung of the escalation ladder.
type Tier struct {
	Level     int
	Adapter   port.TierAdapter
	Threshold float64
	// Timeout is the hard ceiling on one attempt. Zero means no ceiling
	// beyond the caller's context.
	Timeout time.Duration
}

// Evaluator applies business rules to a decoded certificate.
type Evaluator interface {
	Evaluate(ctx context.Context, orgID uuid.UUID, record certificate.Record) (*rules.Evaluation, error)
}

// Orchestrator runs certificates through the tiers.
type Orchestrator interface {
	// Start creates a PENDING run for the current version of a certificate,
	// superseding any unfinished run of earlier versions.
	Start(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error)
	// Process escalates a run through the remaining tiers until it is
	// approved, fails validation or is parked for review.
	Process(ctx context.Context, run *domain.ExtractionRun) (*domain.ExtractionRun, error)
	// Run is Start followed by Process. The run is created already claimed
	// so the background worker never picks it up.
	Run(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error)
	// CompleteReview records a reviewer's decision as a tier-3 attempt and
	// settles a run that is awaiting review.
	CompleteReview(ctx context.Context, input *ReviewDecisionInput) (*domain.ExtractionRun, error)
	// Supersede marks every unfinished run of a certificate SUPERSEDED.
	Supersede(ctx context.Context, orgID, certificateID uuid.UUID) (int, error)
	// GoldenThread returns a run's attempts in the order they were made.
	GoldenThread(ctx context.Context, orgID, runID uuid.UUID) ([]domain.TierAttempt, error)
}

// ReviewDecisionInput is a reviewer's verdict on a queued review.
type ReviewDecisionInput struct {
	OrgID      uuid.UUID
	ReviewID   uuid.UUID
	ReviewerID uuid.UUID
	Decision   domain.ReviewDecision
	ErrorTags  []string
}

type orchestrator struct {
	tiers      []Tier
	runs       port.ExtractionRunRepository
	attempts   port.TierAttemptRepository
	reviews    port.HumanReviewRepository
	certs      port.CertificateRepository
	storage    port.ObjectStorage
	rules      Evaluator
	notifier   port.ReviewNotifier
	linkExpiry int64
	now        func() time.Time
}

// NewOrchestrator creates an Orchestrator. Tiers are tried in ascending
// Level order; an adapter that returns a pending result parks the run for
// human review.
func NewOrchestrator(
	tiers []Tier,
	runs port.ExtractionRunRepository,
	attempts port.TierAttemptRepository,
	reviews port.HumanReviewRepository,
	certs port.CertificateRepository,
	storage port.ObjectStorage,
	evaluator Evaluator,
	notifier port.ReviewNotifier,
	reviewLinkExpiry int64,
) Orchestrator {
	sorted := append([]Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return &orchestrator{
		tiers:      sorted,
		runs:       runs,
		attempts:   attempts,
		reviews:    reviews,
		certs:      certs,
		storage:    storage,
		rules:      evaluator,
		notifier:   notifier,
		linkExpiry: reviewLinkExpiry,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (o *orchestrator) Start(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error) {
	return o.start(ctx, orgID, certificateID, false)
}

// start creates the run. A claimed run is invisible to ClaimPending, so only
// the caller processes it.
func (o *orchestrator) start(ctx context.Context, orgID, certificateID uuid.UUID, claimed bool) (*domain.ExtractionRun, error) {
	cert, err := o.certs.GetByID(ctx, orgID, certificateID)
	if err != nil {
		return nil, eris.Wrap(err, "loading certificate")
	}
	if cert.DeletedAt != nil {
		return nil, eris.Wrap(domain.ErrNotFound, "certificate has been deleted")
	}

	if n, err := o.runs.SupersedeByCertificate(ctx, orgID, certificateID); err != nil {
		return nil, eris.Wrap(err, "superseding earlier runs")
	} else if n > 0 {
		zap.L().Info("extraction.Start: superseded unfinished runs",
			zap.String("certificate_id", certificateID.String()), zap.Int64("count", n))
	}

	now := o.now()
	run := &domain.ExtractionRun{
		ID:                 uuid.New(),
		OrgID:              orgID,
		CertificateID:      certificateID,
		CertificateVersion: cert.Version,
		CertificateType:    cert.CertificateType,
		Status:             domain.RunStatusPending,
		ExtractedFields:    domain.FieldSet{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if claimed {
		run.ClaimedAt = &now
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, eris.Wrap(err, "creating extraction run")
	}
	return run, nil
}

func (o *orchestrator) Run(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error) {
	run, err := o.start(ctx, orgID, certificateID, true)
	if err != nil {
		return nil, err
	}
	return o.Process(ctx, run)
}

func (o *orchestrator) Supersede(ctx context.Context, orgID, certificateID uuid.UUID) (int, error) {
	n, err := o.runs.SupersedeByCertificate(ctx, orgID, certificateID)
	if err != nil {
		return 0, eris.Wrap(err, "superseding runs")
	}
	return int(n), nil
}

func (o *orchestrator) GoldenThread(ctx context.Context, orgID, runID uuid.UUID) ([]domain.TierAttempt, error) {
	if _, err := o.runs.GetByID(ctx, orgID, runID); err != nil {
		return nil, eris.Wrap(err, "loading run")
	}
	attempts, err := o.attempts.ListByRun(ctx, orgID, runID)
	if err != nil {
		return nil, eris.Wrap(err, "listing attempts")
	}
	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].AttemptedAt.Before(attempts[j].AttemptedAt) })
	return attempts, nil
}

// lastTier is the highest tier level the run's status says was attempted.
func lastTier(s domain.RunStatus) int {
	switch s {
	case domain.RunStatusTier1Attempted:
		return 1
	case domain.RunStatusTier2Attempted:
		return 2
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (o *orchestrator) logger(run *domain.ExtractionRun) *zap.Logger {
	return zap.L().With(
		zap.String("org_id", run.OrgID.String()),
		zap.String("run_id", run.ID.String()),
		zap.String("certificate_id", run.CertificateID.String()),
	)
}

func rawTextKey(run *domain.ExtractionRun, level int) string {
	return fmt.Sprintf("extractions/%s/%s/tier-%d.txt", run.OrgID, run.ID, level)
}
