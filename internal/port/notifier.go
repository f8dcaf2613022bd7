package port

import (
	"context"

	"certflow/internal/domain"
)

// ReviewNotice carries what a reviewer needs to pick up a queued review.
type ReviewNotice struct {
	Review      *domain.HumanReview
	Run         *domain.ExtractionRun
	DocumentURL string
}

// ReviewNotifier tells reviewers that a run is waiting for them.
type ReviewNotifier interface {
	NotifyReviewPending(ctx context.Context, notice ReviewNotice) error
}
