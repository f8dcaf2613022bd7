package pattern

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"certflow/internal/domain"
)

func (a *analyzer) List(ctx context.Context, orgID uuid.UUID, status *domain.SuggestionStatus) ([]domain.Suggestion, error) {
	return a.suggestions.List(ctx, orgID, status)
}

func (a *analyzer) StartWork(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error) {
	return a.move(ctx, orgID, suggestionID, domain.SuggestionStatusInProgress, "", domain.SuggestionStatusActive)
}

func (a *analyzer) Resolve(ctx context.Context, orgID, suggestionID uuid.UUID) (*domain.Suggestion, error) {
	return a.move(ctx, orgID, suggestionID, domain.SuggestionStatusResolved, "",
		domain.SuggestionStatusActive, domain.SuggestionStatusInProgress)
}

// Dismiss closes a suggestion for good. A reason is required.
func (a *analyzer) Dismiss(ctx context.Context, orgID, suggestionID uuid.UUID, reason string) (*domain.Suggestion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, eris.Wrap(domain.ErrValidation, "a dismissal reason is required")
	}
	return a.move(ctx, orgID, suggestionID, domain.SuggestionStatusDismissed, reason,
		domain.SuggestionStatusActive, domain.SuggestionStatusInProgress)
}

func (a *analyzer) move(ctx context.Context, orgID, suggestionID uuid.UUID, to domain.SuggestionStatus, reason string, from ...domain.SuggestionStatus) (*domain.Suggestion, error) {
	s, err := a.suggestions.GetByID(ctx, orgID, suggestionID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, f := range from {
		if s.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, eris.Wrapf(domain.ErrInvalidTransition, "suggestion is %s, cannot move to %s", s.Status, to)
	}

	prev := s.Status
	now := a.now()
	s.Status = to
	s.UpdatedAt = now
	if to.IsClosed() {
		s.ResolvedAt = &now
	}
	if to == domain.SuggestionStatusDismissed {
		s.DismissReason = reason
	}
	if err := a.suggestions.Update(ctx, s, prev); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, eris.Wrapf(err, "suggestion changed while moving to %s", to)
		}
		return nil, eris.Wrap(err, "updating suggestion")
	}
	return s, nil
}
