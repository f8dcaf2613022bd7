package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"certflow/internal/domain"
	"certflow/internal/port"
)

// runColumns excludes claimed_at, which only Create and ClaimPending touch.
const runColumns = `id, org_id, certificate_id, certificate_version, certificate_type,
	status, confidence, validation_passed, final_tier, outcome, extracted_fields,
	failed_rule, failure_reason, created_at, updated_at, completed_at`

type extractionRunRepo struct {
	db *sqlx.DB
}

// NewExtractionRunRepo creates a new PostgreSQL-backed ExtractionRunRepository.
func NewExtractionRunRepo(db *sqlx.DB) port.ExtractionRunRepository {
	return &extractionRunRepo{db: db}
}

func (r *extractionRunRepo) Create(ctx context.Context, run *domain.ExtractionRun) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	query := `INSERT INTO extraction_runs (` + runColumns + `, claimed_at) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17
	)`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.OrgID, run.CertificateID, run.CertificateVersion, run.CertificateType,
		run.Status, run.Confidence, run.ValidationPassed, run.FinalTier, run.Outcome, run.ExtractedFields,
		run.FailedRule, run.FailureReason, run.CreatedAt, run.UpdatedAt, run.CompletedAt, run.ClaimedAt)
	if err != nil {
		return fmt.Errorf("extractionRunRepo.Create: %w", err)
	}
	return nil
}

func (r *extractionRunRepo) GetByID(ctx context.Context, orgID, runID uuid.UUID) (*domain.ExtractionRun, error) {
	var run domain.ExtractionRun
	err := r.db.GetContext(ctx, &run,
		"SELECT "+runColumns+" FROM extraction_runs WHERE id = $1 AND org_id = $2", runID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("extractionRunRepo.GetByID: %w", err)
	}
	return &run, nil
}

func (r *extractionRunRepo) GetOwner(ctx context.Context, runID uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.db.GetContext(ctx, &orgID, "SELECT org_id FROM extraction_runs WHERE id = $1", runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("extractionRunRepo.GetOwner: %w", err)
	}
	return orgID, nil
}

func (r *extractionRunRepo) GetLatestByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) (*domain.ExtractionRun, error) {
	var run domain.ExtractionRun
	err := r.db.GetContext(ctx, &run,
		`SELECT `+runColumns+` FROM extraction_runs
		 WHERE certificate_id = $1 AND org_id = $2
		 ORDER BY created_at DESC LIMIT 1`,
		certificateID, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("extractionRunRepo.GetLatestByCertificate: %w", err)
	}
	return &run, nil
}

func (r *extractionRunRepo) Transition(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus) error {
	if err := transitionRun(ctx, r.db, run, from); err != nil {
		if errors.Is(err, domain.ErrStaleRun) {
			return err
		}
		return fmt.Errorf("extractionRunRepo.Transition: %w", err)
	}
	return nil
}

func (r *extractionRunRepo) CommitAttempt(ctx context.Context, run *domain.ExtractionRun, from domain.RunStatus, att *domain.TierAttempt) error {
	if att.ID == uuid.Nil {
		att.ID = uuid.New()
	}
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current domain.RunStatus
		if err := tx.GetContext(ctx, &current,
			"SELECT status FROM extraction_runs WHERE id = $1 AND org_id = $2 FOR UPDATE",
			run.ID, run.OrgID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		att.Stale = current != from
		if _, err := tx.NamedExecContext(ctx, insertAttemptQuery, att); err != nil {
			return err
		}
		if att.Stale {
			return nil
		}
		return transitionRun(ctx, tx, run, from)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("extractionRunRepo.CommitAttempt: %w", err)
	}
	if att.Stale {
		return domain.ErrStaleRun
	}
	return nil
}

func transitionRun(ctx context.Context, db sqlx.ExecerContext, run *domain.ExtractionRun, from domain.RunStatus) error {
	run.UpdatedAt = time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`UPDATE extraction_runs SET
			status = $1, confidence = $2, validation_passed = $3, final_tier = $4,
			outcome = $5, extracted_fields = $6, failed_rule = $7, failure_reason = $8,
			updated_at = $9, completed_at = $10
		 WHERE id = $11 AND org_id = $12 AND status = $13`,
		run.Status, run.Confidence, run.ValidationPassed, run.FinalTier,
		run.Outcome, run.ExtractedFields, run.FailedRule, run.FailureReason,
		run.UpdatedAt, run.CompletedAt,
		run.ID, run.OrgID, from)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrStaleRun
	}
	return nil
}

func (r *extractionRunRepo) ClaimPending(ctx context.Context, limit int) ([]domain.ExtractionRun, error) {
	if limit <= 0 {
		return nil, nil
	}
	var runs []domain.ExtractionRun
	err := r.db.SelectContext(ctx, &runs,
		`UPDATE extraction_runs SET claimed_at = NOW(), updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM extraction_runs
			WHERE status = $1 AND claimed_at IS NULL
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+runColumns,
		domain.RunStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("extractionRunRepo.ClaimPending: %w", err)
	}
	return runs, nil
}

func (r *extractionRunRepo) SupersedeByCertificate(ctx context.Context, orgID, certificateID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE extraction_runs SET
			status = $1, failure_reason = 'superseded by a newer certificate version',
			completed_at = NOW(), updated_at = NOW()
		 WHERE org_id = $2 AND certificate_id = $3 AND status = ANY($4)`,
		domain.RunStatusSuperseded, orgID, certificateID, statusStrings(nonTerminalStatuses))
	if err != nil {
		return 0, fmt.Errorf("extractionRunRepo.SupersedeByCertificate: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (r *extractionRunRepo) SweepStale(ctx context.Context, statuses []domain.RunStatus, before time.Time, reason string) ([]domain.ExtractionRun, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var runs []domain.ExtractionRun
	err := r.db.SelectContext(ctx, &runs,
		`UPDATE extraction_runs SET
			status = $1, failure_reason = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE status = ANY($3) AND updated_at < $4
		 RETURNING `+runColumns,
		domain.RunStatusFailed, reason, statusStrings(statuses), before)
	if err != nil {
		return nil, fmt.Errorf("extractionRunRepo.SweepStale: %w", err)
	}
	return runs, nil
}

func (r *extractionRunRepo) CountByTypeSince(ctx context.Context, orgID uuid.UUID, since time.Time) (map[domain.CertificateType]int, error) {
	var rows []struct {
		CertificateType domain.CertificateType `db:"certificate_type"`
		Count           int                    `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT certificate_type, COUNT(*) AS count FROM extraction_runs
		 WHERE org_id = $1 AND created_at >= $2
		 GROUP BY certificate_type`,
		orgID, since)
	if err != nil {
		return nil, fmt.Errorf("extractionRunRepo.CountByTypeSince: %w", err)
	}
	out := make(map[domain.CertificateType]int, len(rows))
	for _, row := range rows {
		out[row.CertificateType] = row.Count
	}
	return out, nil
}

var nonTerminalStatuses = []domain.RunStatus{
	domain.RunStatusPending,
	domain.RunStatusTier1Attempted,
	domain.RunStatusTier2Attempted,
	domain.RunStatusAwaitingReview,
}

func statusStrings(statuses []domain.RunStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
