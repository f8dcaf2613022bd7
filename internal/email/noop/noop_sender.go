package noop

import (
	"context"

	"go.uber.org/zap"

	"certflow/internal/email"
	"certflow/internal/port"
)

type noopNotifier struct {
	frontendURL string
}

// NewNoopNotifier creates a ReviewNotifier that only logs the review link.
func NewNoopNotifier(frontendURL string) port.ReviewNotifier {
	return &noopNotifier{frontendURL: frontendURL}
}

func (n *noopNotifier) NotifyReviewPending(_ context.Context, notice port.ReviewNotice) error {
	zap.L().Info("noop.NotifyReviewPending: review waiting",
		zap.String("review_id", notice.Review.ID.String()),
		zap.String("run_id", notice.Run.ID.String()),
		zap.String("reason", string(notice.Review.Reason)),
		zap.String("link", email.ReviewLink(n.frontendURL, notice)))
	return nil
}
