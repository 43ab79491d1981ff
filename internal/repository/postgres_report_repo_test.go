package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/tinyshop/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func newMockReportRepo(t *testing.T) (*PostgresReportRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresReportRepo(db), mock
}

func expectReportInsert(mock sqlmock.Sqlmock, reporterID int64, accountID, listingID any, reason string, id int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO reports (reporter_id, target_account_id, target_listing_id, reason)`)).
		WithArgs(reporterID, accountID, listingID, reason).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id, time.Now()))
}

func TestPostgresReportRepo_AccountTarget_BelowThreshold(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_suspended FROM accounts WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"is_suspended"}).AddRow(false))
	expectReportInsert(mock, 1, int64(7), nil, "spam", 11)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reports WHERE target_account_id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	outcome, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      1,
		TargetAccountID: int64Ptr(7),
		Reason:          "spam",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Count != 2 {
		t.Errorf("Count = %d, want 2", outcome.Count)
	}
	if outcome.Action != model.ModerationActionNone {
		t.Errorf("Action = %q, want none", outcome.Action)
	}
	if outcome.Report.ID != 11 {
		t.Errorf("Report.ID = %d, want 11", outcome.Report.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresReportRepo_AccountTarget_ThirdReportSuspends(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_suspended FROM accounts WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"is_suspended"}).AddRow(false))
	expectReportInsert(mock, 3, int64(7), nil, "fraud", 12)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reports WHERE target_account_id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET is_suspended = true, updated_at = now() WHERE id = $1 AND is_suspended = false`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      3,
		TargetAccountID: int64Ptr(7),
		Reason:          "fraud",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Action != model.ModerationActionAccountSuspended {
		t.Errorf("Action = %q, want %q", outcome.Action, model.ModerationActionAccountSuspended)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestPostgresReportRepo_AccountTarget_AlreadySuspended は4件目以降の通報で再度遷移しないことを検証する。
func TestPostgresReportRepo_AccountTarget_AlreadySuspended(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_suspended FROM accounts WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"is_suspended"}).AddRow(true))
	expectReportInsert(mock, 4, int64(7), nil, "again", 13)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reports WHERE target_account_id = $1`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET is_suspended = true`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	outcome, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      4,
		TargetAccountID: int64Ptr(7),
		Reason:          "again",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Action != model.ModerationActionNone {
		t.Errorf("Action = %q, want none", outcome.Action)
	}
	if outcome.Count != 4 {
		t.Errorf("Count = %d, want 4", outcome.Count)
	}
}

func TestPostgresReportRepo_AccountTarget_NotFound(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_suspended FROM accounts WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"is_suspended"}))
	mock.ExpectRollback()

	_, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      1,
		TargetAccountID: int64Ptr(404),
		Reason:          "spam",
	})
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresReportRepo_ListingTarget_ThirdReportDeletes(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM listings WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))
	expectReportInsert(mock, 2, nil, int64(20), "fake item", 30)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reports WHERE target_listing_id = $1`)).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM listings WHERE id = $1`)).
		WithArgs(int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      2,
		TargetListingID: int64Ptr(20),
		Reason:          "fake item",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Action != model.ModerationActionListingDeleted {
		t.Errorf("Action = %q, want %q", outcome.Action, model.ModerationActionListingDeleted)
	}
	if outcome.Orphaned {
		t.Error("expected Orphaned=false for existing listing")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestPostgresReportRepo_ListingTarget_AfterDeletion は自動削除後の通報が記録のみされることを検証する。
func TestPostgresReportRepo_ListingTarget_AfterDeletion(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM listings WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM reports WHERE target_listing_id = $1)`)).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	expectReportInsert(mock, 5, nil, int64(20), "late", 31)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM reports WHERE target_listing_id = $1`)).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	outcome, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      5,
		TargetListingID: int64Ptr(20),
		Reason:          "late",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Orphaned {
		t.Error("expected Orphaned=true")
	}
	if outcome.Action != model.ModerationActionNone {
		t.Errorf("Action = %q, want none", outcome.Action)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresReportRepo_ListingTarget_NeverSeen(t *testing.T) {
	repo, mock := newMockReportRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM listings WHERE id = $1 FOR UPDATE`)).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM reports WHERE target_listing_id = $1)`)).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.CreateAndModerate(context.Background(), &model.Report{
		ReporterID:      1,
		TargetListingID: int64Ptr(404),
		Reason:          "spam",
	})
	if !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
