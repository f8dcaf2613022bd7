package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/certificate"
	"certflow/internal/domain"
	"certflow/internal/port"
	"certflow/internal/tier"
)

func (o *orchestrator) Process(ctx context.Context, run *domain.ExtractionRun) (*domain.ExtractionRun, error) {
	if run.Status.IsTerminal() {
		return run, eris.Wrapf(domain.ErrRunTerminal, "run %s is %s", run.ID, run.Status)
	}
	if run.Status == domain.RunStatusAwaitingReview {
		return run, nil
	}
	log := o.logger(run)

	cert, err := o.certs.GetByID(ctx, run.OrgID, run.CertificateID)
	if err != nil {
		return nil, eris.Wrap(err, "loading certificate")
	}
	if cert.DeletedAt != nil || cert.Version != run.CertificateVersion {
		return o.supersede(ctx, run, "certificate changed before processing")
	}
	content, err := o.storage.Download(ctx, cert.S3Bucket, cert.S3Key)
	if err != nil {
		return nil, eris.Wrapf(domain.ErrDocumentMissing, "downloading %s: %v", cert.S3Key, err)
	}

	doc := port.Document{
		OrgID:           run.OrgID,
		RunID:           run.ID,
		CertificateID:   run.CertificateID,
		CertificateType: run.CertificateType,
		Content:         content,
		ContentType:     cert.ContentType,
	}
	best := run.ExtractedFields.Clone()
	reason := domain.ReviewReasonAdapterFailure
	if len(best) > 0 {
		reason = domain.ReviewReasonLowConfidence
	}
	done := lastTier(run.Status)

	for _, t := range o.tiers {
		// Escalation is monotonic: a tier at or below one already tried is
		// never run again for this run.
		if t.Level <= done {
			continue
		}
		doc.Prior = best
		started := o.now()
		res, callErr := o.call(ctx, t, doc)
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "processing interrupted")
		}
		if callErr == nil && res.Pending {
			return o.park(ctx, run, cert, reason)
		}

		att := o.newAttempt(ctx, run, cert, t, started, res, callErr)
		from := run.Status
		run.FinalTier = t.Level
		run.Status = domain.AttemptedStatus(t.Level)

		if callErr != nil {
			log.Warn("extraction.Process: tier attempt failed",
				zap.Int("tier", t.Level),
				zap.String("adapter", t.Adapter.Name()),
				zap.String("category", string(att.ErrorCategory)),
				zap.Error(callErr))
			if err := o.commit(ctx, run, from, att); err != nil {
				return nil, err
			}
			continue
		}

		best = tier.MergeFields(best, res.Fields)
		run.ExtractedFields = best
		run.Confidence = res.Confidence
		reason = domain.ReviewReasonLowConfidence

		if res.Confidence < t.Threshold {
			log.Info("extraction.Process: below threshold, escalating",
				zap.Int("tier", t.Level),
				zap.Float64("confidence", res.Confidence),
				zap.Float64("threshold", t.Threshold))
			if err := o.commit(ctx, run, from, att); err != nil {
				return nil, err
			}
			continue
		}

		record, _ := certificate.Decode(run.CertificateType, best)
		if record == nil {
			return nil, eris.Wrapf(domain.ErrValidation, "unsupported certificate type %q", run.CertificateType)
		}
		if missing := certificate.MissingRequired(record); len(missing) > 0 {
			log.Info("extraction.Process: confident but incomplete, escalating",
				zap.Int("tier", t.Level), zap.Strings("missing", missing))
			if err := o.commit(ctx, run, from, att); err != nil {
				return nil, err
			}
			continue
		}

		ev, err := o.rules.Evaluate(ctx, run.OrgID, record)
		if err != nil {
			if cerr := o.commit(ctx, run, from, att); cerr != nil {
				log.Error("extraction.Process: recording attempt after rules failure", zap.Error(cerr))
			}
			return nil, eris.Wrap(err, "evaluating rules")
		}
		run.ValidationPassed = ev.Passed
		completed := o.now()
		run.CompletedAt = &completed

		if ev.Passed {
			outcome := ev.Outcome
			run.Status = domain.RunStatusApproved
			run.Outcome = &outcome
			if err := o.commit(ctx, run, from, att); err != nil {
				return nil, err
			}
			o.applyToCertificate(ctx, run, record)
			log.Info("extraction.Process: approved",
				zap.Int("tier", t.Level),
				zap.Float64("confidence", res.Confidence),
				zap.String("outcome", string(outcome)))
			return run, nil
		}

		run.Status = domain.RunStatusValidationFailed
		run.FailedRule = ev.FailedRule
		if err := o.commit(ctx, run, from, att); err != nil {
			return nil, err
		}
		log.Info("extraction.Process: validation failed",
			zap.Int("tier", t.Level), zap.String("rule", ev.FailedRule))
		if _, err := o.openReview(ctx, run, cert, domain.ReviewReasonValidationFailed, ev.FailedRule); err != nil {
			return nil, err
		}
		return run, nil
	}

	return o.park(ctx, run, cert, reason)
}

// call runs one adapter under the tier's ceiling. Adapter panics and
// adapters that ignore cancellation both surface as errors.
func (o *orchestrator) call(ctx context.Context, t Tier, doc port.Document) (*port.TierResult, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	type reply struct {
		res *port.TierResult
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: eris.Errorf("%s adapter panicked: %v", t.Adapter.Name(), r)}
			}
		}()
		res, err := t.Adapter.Attempt(ctx, doc)
		if err == nil && res == nil {
			err = eris.Errorf("%s adapter returned no result", t.Adapter.Name())
		}
		ch <- reply{res: res, err: err}
	}()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return nil, tier.NewTransientError(t.Adapter.Name(), eris.Wrapf(ctx.Err(), "tier %d ceiling reached", t.Level))
	}
}

func (o *orchestrator) newAttempt(ctx context.Context, run *domain.ExtractionRun, cert *domain.Certificate, t Tier, started time.Time, res *port.TierResult, err error) *domain.TierAttempt {
	att := &domain.TierAttempt{
		ID:               uuid.New(),
		OrgID:            run.OrgID,
		RunID:            run.ID,
		Tier:             t.Level,
		Adapter:          t.Adapter.Name(),
		StructuredFields: domain.FieldSet{},
		AttemptedAt:      started,
	}
	elapsed := o.now().Sub(started)
	if err != nil {
		att.ErrorCategory = tier.Category(err)
		att.ErrorMessage = truncate(err.Error(), maxErrorMessage)
		att.ProcessingTimeMs = elapsed.Milliseconds()
		return att
	}

	att.Succeeded = true
	att.Confidence = res.Confidence
	att.StructuredFields = res.Fields.Clone()
	att.EstimatedCost = res.EstimatedCost
	if res.ProcessingTime > 0 {
		elapsed = res.ProcessingTime
	}
	att.ProcessingTimeMs = elapsed.Milliseconds()
	att.RawTextRef = o.storeRawText(ctx, run, cert, t.Level, res.RawText)
	return att
}

// storeRawText keeps the adapter's raw output next to the source document and
// returns its location. Failure only costs the reference.
func (o *orchestrator) storeRawText(ctx context.Context, run *domain.ExtractionRun, cert *domain.Certificate, level int, raw string) string {
	if raw == "" {
		return ""
	}
	key := rawTextKey(run, level)
	out, err := o.storage.Upload(ctx, port.UploadInput{
		Bucket:      cert.S3Bucket,
		Key:         key,
		Body:        strings.NewReader(raw),
		ContentType: "text/plain; charset=utf-8",
		Size:        int64(len(raw)),
	})
	if err != nil {
		o.logger(run).Warn("extraction.storeRawText: upload failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	if out != nil && out.Location != "" {
		return out.Location
	}
	return "s3://" + cert.S3Bucket + "/" + key
}

// commit appends att, if any, and moves the run out of from with a
// compare-and-swap, both in one store transaction. When the run has changed
// underneath, the attempt is still appended but flagged stale and the run is
// left alone.
func (o *orchestrator) commit(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus, att *domain.TierAttempt) error {
	run.UpdatedAt = o.now()
	var err error
	if att != nil {
		err = o.runs.CommitAttempt(ctx, run, from, att)
	} else {
		err = o.runs.Transition(ctx, run, from)
	}
	if err != nil {
		if errors.Is(err, domain.ErrStaleRun) {
			o.logger(run).Info("extraction.commit: run changed during attempt, result discarded",
				zap.String("expected", string(from)), zap.Bool("attempt_recorded", att != nil))
			return err
		}
		return eris.Wrapf(err, "moving run to %s", run.Status)
	}
	return nil
}

func (o *orchestrator) supersede(ctx context.Context, run *domain.ExtractionRun, reason string) (*domain.ExtractionRun, error) {
	from := run.Status
	now := o.now()
	run.Status = domain.RunStatusSuperseded
	run.FailureReason = reason
	run.CompletedAt = &now
	if err := o.commit(ctx, run, from, nil); err != nil {
		return nil, err
	}
	return run, nil
}

// park hands the run to the review queue.
func (o *orchestrator) park(ctx context.Context, run *domain.ExtractionRun, cert *domain.Certificate, reason domain.ReviewReason) (*domain.ExtractionRun, error) {
	from := run.Status
	run.Status = domain.RunStatusAwaitingReview
	if err := o.commit(ctx, run, from, nil); err != nil {
		return nil, err
	}
	if _, err := o.openReview(ctx, run, cert, reason, ""); err != nil {
		return nil, err
	}
	o.logger(run).Info("extraction.Process: awaiting review", zap.String("reason", string(reason)))
	return run, nil
}

func (o *orchestrator) openReview(ctx context.Context, run *domain.ExtractionRun, cert *domain.Certificate, reason domain.ReviewReason, failedRule string) (*domain.HumanReview, error) {
	review := &domain.HumanReview{
		ID:         uuid.New(),
		OrgID:      run.OrgID,
		RunID:      run.ID,
		Reason:     reason,
		FailedRule: failedRule,
		Status:     domain.ReviewStatusPending,
		ErrorTags:  domain.StringList{},
		CreatedAt:  o.now(),
	}
	if err := o.reviews.Create(ctx, review); err != nil {
		return nil, eris.Wrap(err, "creating human review")
	}
	o.notify(ctx, run, cert, review)
	return review, nil
}

func (o *orchestrator) notify(ctx context.Context, run *domain.ExtractionRun, cert *domain.Certificate, review *domain.HumanReview) {
	if o.notifier == nil {
		return
	}
	log := o.logger(run)
	url, err := o.storage.GetPresignedURL(ctx, cert.S3Bucket, cert.S3Key, o.linkExpiry)
	if err != nil {
		log.Warn("extraction.notify: presigning document link", zap.Error(err))
	}
	if err := o.notifier.NotifyReviewPending(ctx, port.ReviewNotice{Review: review, Run: run, DocumentURL: url}); err != nil {
		log.Warn("extraction.notify: sending review notification", zap.Error(err))
	}
}

// applyToCertificate writes an approved extraction back to its certificate.
// The repository ignores it if the certificate has since been re-uploaded.
func (o *orchestrator) applyToCertificate(ctx context.Context, run *domain.ExtractionRun, record certificate.Record) {
	common := record.Common()
	ext := port.CertificateExtraction{
		Version:     run.CertificateVersion,
		IssueDate:   common.IssueDate,
		ExpiryDate:  common.ExpiryDate,
		Outcome:     run.Outcome,
		DefectCount: record.DefectCount(),
	}
	if err := o.certs.ApplyExtraction(ctx, run.OrgID, run.CertificateID, ext); err != nil {
		o.logger(run).Error("extraction.applyToCertificate: writing extraction", zap.Error(err))
	}
}
