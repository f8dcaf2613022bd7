// Package pattern turns recurring human corrections and review rejections
// into improvement suggestions and tracks each suggestion's error rate until
// it is resolved.
package pattern

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/config"
	"certflow/internal/domain"
	"certflow/internal/port"
)

// Report summarizes one analysis pass.
type Report struct {
	OrgID        uuid.UUID           `json:"org_id"`
	WindowStart  time.Time           `json:"window_start"`
	Corrections  int                 `json:"corrections"`
	Rejections   int                 `json:"rejections"`
	Clusters     int                 `json:"clusters"`
	Created      int                 `json:"created"`
	Updated      int                 `json:"updated"`
	AutoResolved int                 `json:"auto_resolved"`
	Suggestions  []domain.Suggestion `json:"suggestions"`
}

// Analyzer runs pattern analysis and manages the suggestion lifecycle.
type Analyzer interface {
	// Run clusters the window's signals and upserts suggestions by key.
	// Running it again with no new data changes nothing but timestamps.
	Run(ctx context.Context, orgID uuid.UUID) (*Report, error)
	List(ctx context.Context, orgID uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error)
	StartWork(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error)
	Resolve(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error)
	Dismiss(ctx context.Context, orgID, suggestionID uuid.UUID, reason string) (*domain.Suggestion, error)
}

type cluster struct {
	key       string
	source    domain.SuggestionSource
	certType  domain.CertificateType
	field     string
	signature string
	support   int
	ids       []uuid.UUID
}

type analyzer struct {
	corrections port.CorrectionRepository
	reviews     port.HumanReviewRepository
	runs        port.ExtractionRunRepository
	suggestions port.SuggestionRepository
	cfg         config.PatternConfig
	now         func() time.Time
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(
	corrections port.CorrectionRepository,
	reviews port.HumanReviewRepository,
	runs port.ExtractionRunRepository,
	suggestions port.SuggestionRepository,
	cfg config.PatternConfig,
) Analyzer {
	return &analyzer{
		corrections: corrections,
		reviews:     reviews,
		runs:        runs,
		suggestions: suggestions,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CorrectionKey is the stable suggestion key for a correction cluster.
func CorrectionKey(certType domain.CertificateType, field string, ct domain.CorrectionType) string {
	return strings.ToLower(fmt.Sprintf("correction:%s:%s:%s", certType, field, ct))
}

// ReviewKey is the stable suggestion key for a rejection tag cluster.
func ReviewKey(certType domain.CertificateType, tag string) string {
	return strings.ToLower(fmt.Sprintf("review:%s:%s", certType, tag))
}

func (a *analyzer) Run(ctx context.Context, orgID uuid.UUID) (*Report, error) {
	now := a.now()
	since := now.Add(-a.cfg.Window)
	log := zap.L().With(zap.String("org_id", orgID.String()))

	corrections, err := a.corrections.ListSince(ctx, orgID, since)
	if err != nil {
		return nil, eris.Wrap(err, "listing corrections")
	}
	rejections, err := a.reviews.ListRejectedSince(ctx, orgID, since)
	if err != nil {
		return nil, eris.Wrap(err, "listing rejected reviews")
	}
	runCounts, err := a.runs.CountByTypeSince(ctx, orgID, since)
	if err != nil {
		return nil, eris.Wrap(err, "counting runs")
	}
	existing, err := a.suggestions.List(ctx, orgID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "listing suggestions")
	}
	byKey := make(map[string]*domain.Suggestion, len(existing))
	for i := range existing {
		byKey[existing[i].Key] = &existing[i]
	}

	clusters := clusterSignals(corrections, rejections)
	report := &Report{
		OrgID:       orgID,
		WindowStart: since,
		Corrections: len(corrections),
		Rejections:  len(rejections),
		Suggestions: []domain.Suggestion{},
	}

	var used []uuid.UUID
	seen := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		seen[c.key] = true
		rate := errorRate(c.support, runCounts[c.certType])
		s, ok := byKey[c.key]
		if !ok {
			if c.support < a.cfg.SupportThreshold || rate <= a.cfg.TargetErrorRate {
				continue
			}
			report.Clusters++
			created, err := a.create(ctx, orgID, c, rate, now)
			if err != nil {
				return nil, err
			}
			if created == nil {
				continue
			}
			report.Created++
			report.Suggestions = append(report.Suggestions, *created)
			if c.source == domain.SuggestionSourceCorrection {
				used = append(used, c.ids...)
			}
			continue
		}
		if c.support >= a.cfg.SupportThreshold {
			report.Clusters++
			if c.source == domain.SuggestionSourceCorrection {
				used = append(used, c.ids...)
			}
		}
		if s.Status.IsClosed() {
			continue
		}
		updated, resolved, err := a.track(ctx, s, c.support, rate, now)
		if err != nil {
			return nil, err
		}
		if !updated {
			continue
		}
		report.Updated++
		if resolved {
			report.AutoResolved++
		}
		report.Suggestions = append(report.Suggestions, *s)
	}

	// Open suggestions whose signal vanished from the window have a zero
	// error rate now.
	for i := range existing {
		s := &existing[i]
		if seen[s.Key] || s.Status.IsClosed() {
			continue
		}
		updated, resolved, err := a.track(ctx, s, 0, 0, now)
		if err != nil {
			return nil, err
		}
		if !updated {
			continue
		}
		report.Updated++
		if resolved {
			report.AutoResolved++
		}
		report.Suggestions = append(report.Suggestions, *s)
	}

	if len(used) > 0 {
		if err := a.corrections.MarkUsedForImprovement(ctx, orgID, used); err != nil {
			log.Warn("pattern.Run: marking corrections used", zap.Error(err))
		}
	}

	log.Info("pattern.Run: analysis complete",
		zap.Int("corrections", report.Corrections),
		zap.Int("rejections", report.Rejections),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("auto_resolved", report.AutoResolved))
	return report, nil
}

// create inserts a new suggestion. A concurrent analysis that created the
// same key first wins and nil is returned.
func (a *analyzer) create(ctx context.Context, orgID uuid.UUID, c *cluster, rate float64, now time.Time) (*domain.Suggestion, error) {
	s := &domain.Suggestion{
		ID:              uuid.New(),
		OrgID:           orgID,
		Key:             c.key,
		Source:          c.source,
		FieldName:       c.field,
		CertificateType: c.certType,
		Signature:       c.signature,
		Title:           title(c),
		Description:     description(c),
		Support:         c.support,
		Status:          domain.SuggestionStatusActive,
		BaselineValue:   rate,
		CurrentValue:    rate,
		TargetValue:     a.cfg.TargetErrorRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.suggestions.Create(ctx, s); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "creating suggestion %s", c.key)
	}
	return s, nil
}

// track records the latest metric on an open suggestion and auto-resolves it
// once the target is met. Progress never goes down. A suggestion whose status
// moved since it was listed is left to the operator and skipped.
func (a *analyzer) track(ctx context.Context, s *domain.Suggestion, support int, rate float64, now time.Time) (updated, resolved bool, err error) {
	from := s.Status
	s.Support = support
	s.CurrentValue = rate
	s.Progress = max(s.Progress, Progress(s.BaselineValue, rate, s.TargetValue))
	s.UpdatedAt = now
	resolved = rate <= s.TargetValue
	if resolved {
		s.Status = domain.SuggestionStatusAutoResolved
		s.Progress = 1
		s.ResolvedAt = &now
	}
	if err := a.suggestions.Update(ctx, s, from); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			zap.L().Info("pattern.track: suggestion changed concurrently, skipped",
				zap.String("key", s.Key), zap.String("expected", string(from)))
			return false, false, nil
		}
		return false, false, eris.Wrapf(err, "updating suggestion %s", s.Key)
	}
	return true, resolved, nil
}

// Progress is how far the metric has moved from baseline towards target,
// clamped to [0,1].
func Progress(baseline, current, target float64) float64 {
	if baseline <= target {
		return 1
	}
	p := (baseline - current) / (baseline - target)
	return min(max(p, 0), 1)
}

func errorRate(support, runs int) float64 {
	return float64(support) / float64(max(runs, 1))
}

func clusterSignals(corrections []domain.Correction, rejections []port.ReviewRejection) []*cluster {
	index := map[string]*cluster{}
	add := func(c cluster, id uuid.UUID) {
		existing, ok := index[c.key]
		if !ok {
			existing = &c
			index[c.key] = existing
		}
		existing.support++
		existing.ids = append(existing.ids, id)
	}

	for _, c := range corrections {
		add(cluster{
			key:       CorrectionKey(c.CertificateType, c.FieldName, c.CorrectionType),
			source:    domain.SuggestionSourceCorrection,
			certType:  c.CertificateType,
			field:     c.FieldName,
			signature: string(c.CorrectionType),
		}, c.ID)
	}
	for _, r := range rejections {
		for _, tag := range r.ErrorTags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			add(cluster{
				key:       ReviewKey(r.CertificateType, tag),
				source:    domain.SuggestionSourceReview,
				certType:  r.CertificateType,
				signature: tag,
			}, r.ReviewID)
		}
	}

	out := make([]*cluster, 0, len(index))
	for _, c := range index {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func title(c *cluster) string {
	if c.source == domain.SuggestionSourceReview {
		return fmt.Sprintf("Reviewers reject %s certificates for %q", c.certType, c.signature)
	}
	return fmt.Sprintf("Recurring %s corrections to %s on %s certificates", strings.ToLower(c.signature), c.field, c.certType)
}

func description(c *cluster) string {
	if c.source == domain.SuggestionSourceReview {
		return fmt.Sprintf("%d rejected reviews in the analysis window carried the %q tag.", c.support, c.signature)
	}
	return fmt.Sprintf("%d %s corrections to %s in the analysis window. Check the extraction prompt and label aliases for this field.",
		c.support, c.signature, c.field)
}
