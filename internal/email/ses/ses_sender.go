package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"certflow/internal/config"
	"certflow/internal/email"
	"certflow/internal/port"
)

type sesNotifier struct {
	client      *sesv2.Client
	from        string
	to          string
	frontendURL string
}

// NewSESNotifier creates a ReviewNotifier that mails the review queue address.
func NewSESNotifier(ctx context.Context, cfg config.EmailConfig) (port.ReviewNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return &sesNotifier{
		client:      sesv2.NewFromConfig(awsCfg),
		from:        fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		to:          cfg.ReviewAddress,
		frontendURL: cfg.FrontendURL,
	}, nil
}

func (s *sesNotifier) NotifyReviewPending(ctx context.Context, notice port.ReviewNotice) error {
	msg := email.RenderReviewPending(s.frontendURL, notice)
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.from,
		Destination:      &types.Destination{ToAddresses: []string{s.to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &msg.Subject},
				Body: &types.Body{
					Html: &types.Content{Data: &msg.HTML},
					Text: &types.Content{Data: &msg.Text},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	zap.L().Debug("ses.NotifyReviewPending: sent", zap.String("review_id", notice.Review.ID.String()))
	return nil
}
