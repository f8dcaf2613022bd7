package extraction

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/certificate"
	"certflow/internal/domain"
	humanreview "certflow/internal/tier/review"
)

func (o *orchestrator) CompleteReview(ctx context.Context, input *ReviewDecisionInput) (*domain.ExtractionRun, error) {
	if input.Decision != domain.ReviewDecisionApprove && input.Decision != domain.ReviewDecisionReject {
		return nil, eris.Wrapf(domain.ErrValidation, "unknown decision %q", input.Decision)
	}

	review, err := o.reviews.GetByID(ctx, input.OrgID, input.ReviewID)
	if err != nil {
		return nil, eris.Wrap(err, "loading review")
	}
	if review.Status == domain.ReviewStatusCompleted {
		return nil, eris.Wrapf(domain.ErrReviewClosed, "review %s", review.ID)
	}

	now := o.now()
	reviewer := input.ReviewerID
	decision := input.Decision
	review.ReviewerID = &reviewer
	if review.StartedAt == nil {
		review.StartedAt = &now
	}
	review.Decision = &decision
	review.ErrorTags = append(domain.StringList{}, input.ErrorTags...)
	review.CompletedAt = &now
	review.DurationMs = now.Sub(*review.StartedAt).Milliseconds()
	review.Status = domain.ReviewStatusCompleted
	if err := o.reviews.Complete(ctx, review); err != nil {
		return nil, eris.Wrap(err, "completing review")
	}

	run, err := o.runs.GetByID(ctx, input.OrgID, review.RunID)
	if err != nil {
		return nil, eris.Wrap(err, "loading run")
	}
	log := o.logger(run).With(zap.String("review_id", review.ID.String()))

	res := humanreview.FromDecision(review, run.ExtractedFields)
	att := &domain.TierAttempt{
		ID:               uuid.New(),
		OrgID:            run.OrgID,
		RunID:            run.ID,
		Tier:             3,
		Adapter:          humanreview.AdapterName,
		Succeeded:        true,
		Confidence:       res.Confidence,
		StructuredFields: res.Fields,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
		AttemptedAt:      now,
	}

	// A validation failure is terminal; the reviewer's verdict is recorded
	// against it but does not reopen the run.
	if run.Status == domain.RunStatusValidationFailed {
		if err := o.attempts.Append(ctx, att); err != nil {
			return nil, eris.Wrap(err, "appending review attempt")
		}
		log.Info("extraction.CompleteReview: decision recorded on validation failure",
			zap.String("decision", string(decision)))
		return run, nil
	}

	from := run.Status
	run.FinalTier = 3
	run.Confidence = res.Confidence
	completed := now
	run.CompletedAt = &completed

	var record certificate.Record
	if decision == domain.ReviewDecisionApprove {
		run.Status = domain.RunStatusApproved
		run.ExtractedFields = res.Fields
		record, _ = certificate.Decode(run.CertificateType, res.Fields)
		if record != nil {
			ev, err := o.rules.Evaluate(ctx, run.OrgID, record)
			if err != nil {
				log.Warn("extraction.CompleteReview: evaluating rules", zap.Error(err))
				outcome := domain.OutcomeNeedsReview
				run.Outcome = &outcome
			} else {
				outcome := ev.Outcome
				run.Outcome = &outcome
				run.ValidationPassed = ev.Passed
				run.FailedRule = ev.FailedRule
			}
		}
	} else {
		run.Status = domain.RunStatusRejected
		run.FailureReason = "rejected by reviewer"
	}

	// Anything other than AWAITING_REVIEW makes the verdict stale; commit
	// records it flagged and leaves the run alone.
	if from != domain.RunStatusAwaitingReview {
		att.Stale = true
		if err := o.attempts.Append(ctx, att); err != nil {
			return nil, eris.Wrap(err, "appending review attempt")
		}
		return nil, eris.Wrapf(domain.ErrStaleRun, "run is %s", from)
	}
	if err := o.commit(ctx, run, from, att); err != nil {
		return nil, err
	}
	if record != nil {
		o.applyToCertificate(ctx, run, record)
	}
	log.Info("extraction.CompleteReview: run settled", zap.String("status", string(run.Status)))
	return run, nil
}
