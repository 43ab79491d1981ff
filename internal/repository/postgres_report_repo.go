package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/tinyshop/internal/model"
)

// PostgresReportRepo はPostgreSQLを使用した通報リポジトリ。
// 通報の記録と閾値到達時の自動処分を同一トランザクションで行う。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

// CreateAndModerate は通報を記録し、必要に応じて処分を適用する。
//
// 対象行をFOR UPDATEでロックしてから件数を数えるため、同一対象への通報は直列化される。
// 閾値到達時の処分は条件付きUPDATE/DELETEの影響行数で判定し、遷移はちょうど1回だけ発生する。
func (r *PostgresReportRepo) CreateAndModerate(ctx context.Context, report *model.Report) (*model.ModerationOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var outcome *model.ModerationOutcome
	switch {
	case report.TargetAccountID != nil:
		outcome, err = r.moderateAccount(ctx, tx, report)
	case report.TargetListingID != nil:
		outcome, err = r.moderateListing(ctx, tx, report)
	default:
		return nil, fmt.Errorf("report has no target")
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return outcome, nil
}

func (r *PostgresReportRepo) moderateAccount(ctx context.Context, tx *sql.Tx, report *model.Report) (*model.ModerationOutcome, error) {
	targetID := *report.TargetAccountID

	var suspended bool
	err := tx.QueryRowContext(ctx,
		`SELECT is_suspended FROM accounts WHERE id = $1 FOR UPDATE`, targetID,
	).Scan(&suspended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTargetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock target account: %w", err)
	}

	if err := insertReport(ctx, tx, report); err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE target_account_id = $1`, targetID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count account reports: %w", err)
	}

	outcome := &model.ModerationOutcome{Report: report, Count: count}
	if count < model.ModerationThreshold {
		return outcome, nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_suspended = true, updated_at = now()
		 WHERE id = $1 AND is_suspended = false`,
		targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to suspend account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		outcome.Action = model.ModerationActionAccountSuspended
	}
	return outcome, nil
}

func (r *PostgresReportRepo) moderateListing(ctx context.Context, tx *sql.Tx, report *model.Report) (*model.ModerationOutcome, error) {
	targetID := *report.TargetListingID

	var lockedID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM listings WHERE id = $1 FOR UPDATE`, targetID,
	).Scan(&lockedID)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to lock target listing: %w", err)
	}

	if !exists {
		// 商品が既に削除済みでも、過去に通報があれば処分済みとして記録のみ行う
		var seen bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reports WHERE target_listing_id = $1)`, targetID,
		).Scan(&seen); err != nil {
			return nil, fmt.Errorf("failed to check listing report history: %w", err)
		}
		if !seen {
			return nil, ErrTargetNotFound
		}
	}

	if err := insertReport(ctx, tx, report); err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE target_listing_id = $1`, targetID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count listing reports: %w", err)
	}

	outcome := &model.ModerationOutcome{Report: report, Count: count, Orphaned: !exists}
	if !exists || count < model.ModerationThreshold {
		return outcome, nil
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete listing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		outcome.Action = model.ModerationActionListingDeleted
	}
	return outcome, nil
}

func insertReport(ctx context.Context, tx *sql.Tx, report *model.Report) error {
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO reports (reporter_id, target_account_id, target_listing_id, reason)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		report.ReporterID, report.TargetAccountID, report.TargetListingID, report.Reason,
	).Scan(&report.ID, &report.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
