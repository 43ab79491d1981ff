package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tinyshop/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, intro_text, is_admin, is_suspended, points, created_at, updated_at`

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.IntroText,
		&a.IsAdmin, &a.IsSuspended, &a.Points, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return a, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return a, nil
}

// Create はアカウントを作成する。
// メールアドレスが重複する場合はErrEmailTakenを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (email, password_hash, intro_text, is_admin, points)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		account.Email, account.PasswordHash, account.IntroText, account.IsAdmin, account.Points,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// List は全アカウントをID昇順で返す。
func (r *PostgresAccountRepo) List(ctx context.Context) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Suspend はアカウントを停止状態にする。
// 既に停止済みの場合はfalseを返す（冪等）。
func (r *PostgresAccountRepo) Suspend(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_suspended = true, updated_at = now()
		 WHERE id = $1 AND is_suspended = false`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to suspend account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}

	// 更新0件: 既に停止済みか、存在しないかを区別する
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return false, ErrAccountNotFound
	}
	return false, nil
}

// AddPoints はアカウントにポイントを加算し、加算後の残高を返す。
func (r *PostgresAccountRepo) AddPoints(ctx context.Context, id int64, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE accounts SET points = points + $1, updated_at = now()
		 WHERE id = $2
		 RETURNING points`,
		amount, id,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	return balance, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
