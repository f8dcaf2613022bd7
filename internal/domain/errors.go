package domain

import "errors"

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrStaleRun           = errors.New("extraction run changed state concurrently")
	ErrRunTerminal        = errors.New("extraction run is already terminal")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTrainingInProgress = errors.New("a training run is already in progress for this organization")
	ErrActiveModelChanged = errors.New("active model changed concurrently")
	ErrModelNotPassed     = errors.New("model did not pass benchmark")
	ErrInsufficientData   = errors.New("not enough labeled feedback to train")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrReviewClosed       = errors.New("review is already completed")
	ErrInvalidRule        = errors.New("invalid rule expression")
	ErrDocumentMissing    = errors.New("certificate document unavailable")
)

// IsRetryable reports whether a conflict error can succeed if the caller tries again later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTrainingInProgress) ||
		errors.Is(err, ErrActiveModelChanged) ||
		errors.Is(err, ErrRateLimited)
}
