// Package review is the tier-3 adapter. A human reviewer is not callable, so
// an attempt only queues the run; the result arrives later as a decision.
package review

import (
	"context"
	"time"

	"certflow/internal/domain"
	"certflow/internal/port"
)

// AdapterName identifies this adapter in the audit trail.
const AdapterName = "human-review"

// Adapter implements port.TierAdapter for the review queue.
type Adapter struct{}

// NewAdapter creates the tier-3 adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return AdapterName }

// Attempt returns a pending result carrying the best-so-far fields for the
// reviewer to check.
func (a *Adapter) Attempt(_ context.Context, doc port.Document) (*port.TierResult, error) {
	return &port.TierResult{
		Fields:  doc.Prior.Clone(),
		Pending: true,
	}, nil
}

// FromDecision converts a completed review into a tier result. Approval is
// full confidence and rejection is zero; processing time is the reviewer's
// wall-clock time from claim to decision.
func FromDecision(r *domain.HumanReview, fields domain.FieldSet) *port.TierResult {
	res := &port.TierResult{Fields: fields.Clone()}
	if r.Decision != nil && *r.Decision == domain.ReviewDecisionApprove {
		res.Confidence = 1.0
	}
	switch {
	case r.DurationMs > 0:
		res.ProcessingTime = time.Duration(r.DurationMs) * time.Millisecond
	case r.StartedAt != nil && r.CompletedAt != nil:
		res.ProcessingTime = r.CompletedAt.Sub(*r.StartedAt)
	}
	for name, fv := range res.Fields {
		fv.Confidence = res.Confidence
		fv.Tier = 3
		res.Fields[name] = fv
	}
	return res
}
