package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

const lockAccountsSQL = `SELECT id, points FROM accounts WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`

func newMockLedgerRepo(t *testing.T) (*PostgresLedgerRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresLedgerRepo(db), mock
}

func TestPostgresLedgerRepo_Transfer_Success(t *testing.T) {
	repo, mock := newMockLedgerRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAccountsSQL)).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).
			AddRow(int64(1), int64(100)).
			AddRow(int64(2), int64(0)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET points = points - $1`)).
		WithArgs(int64(30), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET points = points + $1`)).
		WithArgs(int64(30), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO point_transfers`)).
		WithArgs(int64(1), int64(2), int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), now))
	mock.ExpectCommit()

	transfer, err := repo.Transfer(context.Background(), 1, 2, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.ID != 10 || transfer.Amount != 30 || transfer.SenderID != 1 || transfer.RecipientID != 2 {
		t.Errorf("unexpected transfer: %+v", transfer)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestPostgresLedgerRepo_Transfer_InsufficientFunds は残高不足時に更新が一切発行されないことを検証する。
func TestPostgresLedgerRepo_Transfer_InsufficientFunds(t *testing.T) {
	repo, mock := newMockLedgerRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAccountsSQL)).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).
			AddRow(int64(1), int64(10)).
			AddRow(int64(2), int64(0)))
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), 1, 2, 30)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// TestPostgresLedgerRepo_Transfer_InsufficientFundsCheckedBeforeRecipient は
// 受取人が存在しない場合でも残高不足が先に判定されることを検証する。
func TestPostgresLedgerRepo_Transfer_InsufficientFundsCheckedBeforeRecipient(t *testing.T) {
	repo, mock := newMockLedgerRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAccountsSQL)).
		WithArgs(int64(1), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).AddRow(int64(1), int64(5)))
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), 1, 99, 30)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestPostgresLedgerRepo_Transfer_RecipientNotFound(t *testing.T) {
	repo, mock := newMockLedgerRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAccountsSQL)).
		WithArgs(int64(1), int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).AddRow(int64(1), int64(100)))
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), 1, 99, 30)
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresLedgerRepo_Transfer_SenderNotFound(t *testing.T) {
	repo, mock := newMockLedgerRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAccountsSQL)).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).AddRow(int64(2), int64(100)))
	mock.ExpectRollback()

	_, err := repo.Transfer(context.Background(), 1, 2, 30)
	if !errors.Is(err, ErrSenderNotFound) {
		t.Fatalf("expected ErrSenderNotFound, got %v", err)
	}
}

// TestPostgresLedgerRepo_Transfer_RollsBackOnCreditFailure は途中の更新失敗でロールバックされることを検証する。
func TestPostgresLedgerRepo_Transfer_RollsBackOnCreditFailure(t *testing.T) {
	repo, mock := newMockLedgerRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockAccountsSQL)).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points"}).
			AddRow(int64(2), int64(0)).
			AddRow(int64(5), int64(50)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET points = points - $1`)).
		WithArgs(int64(20), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET points = points + $1`)).
		WithArgs(int64(20), int64(2)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	// 送金元のIDが大きくてもロック対象のパラメータは渡した順、結果はID昇順で返る
	_, err := repo.Transfer(context.Background(), 5, 2, 20)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to credit recipient") {
		t.Errorf("error = %v, want credit failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresLedgerRepo_ListByAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()
	repo := NewPostgresLedgerRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE sender_id = $1 OR recipient_id = $1`)).
		WithArgs(int64(1), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "amount", "created_at"}).
			AddRow(int64(2), int64(3), int64(1), int64(5), now).
			AddRow(int64(1), int64(1), int64(3), int64(10), now))

	transfers, err := repo.ListByAccount(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("len = %d, want 2", len(transfers))
	}
	if transfers[0].ID != 2 || transfers[0].RecipientID != 1 {
		t.Errorf("unexpected first transfer: %+v", transfers[0])
	}
}
