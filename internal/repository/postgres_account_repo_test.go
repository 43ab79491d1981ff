package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/hitoshi/tinyshop/internal/model"
)

var accountRowColumns = []string{"id", "email", "password_hash", "intro_text", "is_admin", "is_suspended", "points", "created_at", "updated_at"}

func newMockAccountRepo(t *testing.T) (*PostgresAccountRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresAccountRepo(db), mock
}

func TestPostgresAccountRepo_FindByID_Found(t *testing.T) {
	repo, mock := newMockAccountRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(int64(1), "a@example.com", "hash", "", false, false, int64(100), now, now))

	a, err := repo.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || a.Email != "a@example.com" || a.Points != 100 {
		t.Errorf("unexpected account: %+v", a)
	}
}

func TestPostgresAccountRepo_FindByID_NotFoundReturnsNil(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(accountRowColumns))

	a, err := repo.FindByID(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil, got %+v", a)
	}
}

func TestPostgresAccountRepo_Create_SetsID(t *testing.T) {
	repo, mock := newMockAccountRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts (email, password_hash, intro_text, is_admin, points)`)).
		WithArgs("new@example.com", "hash", "", false, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))

	a := &model.Account{Email: "new@example.com", PasswordHash: "hash"}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != 5 {
		t.Errorf("ID = %d, want 5", a.ID)
	}
}

// TestPostgresAccountRepo_Create_DuplicateEmail は一意制約違反がErrEmailTakenに変換されることを検証する。
func TestPostgresAccountRepo_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &model.Account{Email: "dup@example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPostgresAccountRepo_Suspend_Transitions(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET is_suspended = true`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.Suspend(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected changed=true")
	}
}

func TestPostgresAccountRepo_Suspend_AlreadySuspendedIsNoop(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET is_suspended = true`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	changed, err := repo.Suspend(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("expected changed=false")
	}
}

func TestPostgresAccountRepo_Suspend_NotFound(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET is_suspended = true`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.Suspend(context.Background(), 3)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestPostgresAccountRepo_AddPoints(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts SET points = points + $1`)).
		WithArgs(int64(50), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(int64(150)))

	balance, err := repo.AddPoints(context.Background(), 2, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 150 {
		t.Errorf("balance = %d, want 150", balance)
	}
}

func TestPostgresAccountRepo_AddPoints_NotFound(t *testing.T) {
	repo, mock := newMockAccountRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE accounts SET points = points + $1`)).
		WithArgs(int64(50), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"points"}))

	_, err := repo.AddPoints(context.Background(), 2, 50)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestPostgresAccountRepo_List(t *testing.T) {
	repo, mock := newMockAccountRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM accounts ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(int64(1), "admin@example.com", "h", "", true, false, int64(0), now, now).
			AddRow(int64(2), "b@example.com", "h", "hi", false, true, int64(10), now, now))

	accounts, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len = %d, want 2", len(accounts))
	}
	if !accounts[0].IsAdmin || !accounts[1].IsSuspended {
		t.Errorf("unexpected flags: %+v %+v", accounts[0], accounts[1])
	}
}
