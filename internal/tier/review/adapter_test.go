package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certflow/internal/domain"
	"certflow/internal/port"
	"certflow/internal/tier/review"
)

func TestAttempt_IsPending(t *testing.T) {
	prior := domain.FieldSet{"c1_count": {Value: "0", Confidence: 0.6, Tier: 2}}

	res, err := review.NewAdapter().Attempt(context.Background(), port.Document{Prior: prior})

	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Equal(t, "0", res.Fields["c1_count"].Value)
}

func TestFromDecision(t *testing.T) {
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	approve, reject := domain.ReviewDecisionApprove, domain.ReviewDecisionReject
	fields := domain.FieldSet{"risk_level": {Value: "High", Confidence: 0.5, Tier: 2}}

	approved := review.FromDecision(&domain.HumanReview{Decision: &approve, StartedAt: &started, CompletedAt: &completed}, fields)
	assert.Equal(t, 1.0, approved.Confidence)
	assert.Equal(t, 90*time.Second, approved.ProcessingTime)
	assert.Equal(t, 1.0, approved.Fields["risk_level"].Confidence)
	assert.Equal(t, 3, approved.Fields["risk_level"].Tier)
	assert.Equal(t, 0.5, fields["risk_level"].Confidence)

	rejected := review.FromDecision(&domain.HumanReview{Decision: &reject, DurationMs: 1500}, fields)
	assert.Equal(t, 0.0, rejected.Confidence)
	assert.Equal(t, 1500*time.Millisecond, rejected.ProcessingTime)
}
