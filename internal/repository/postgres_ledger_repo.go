package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tinyshop/internal/model"
)

// PostgresLedgerRepo はPostgreSQLを使用したポイント台帳リポジトリ。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// Transfer は送金元から受取人へamountポイントを原子的に移動する。
//
// 両アカウントの行を常にID昇順でFOR UPDATEロックする。逆方向の同時送金でもロック順序が
// 一致するためデッドロックしない。残高不足は受取人の存在確認より先に判定する。
func (r *PostgresLedgerRepo) Transfer(ctx context.Context, senderID, recipientID, amount int64) (*model.PointTransfer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, points FROM accounts WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`,
		senderID, recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	balances := make(map[int64]int64, 2)
	for rows.Next() {
		var id, points int64
		if err := rows.Scan(&id, &points); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan account balance: %w", err)
		}
		balances[id] = points
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate account balances: %w", err)
	}
	rows.Close()

	senderBalance, ok := balances[senderID]
	if !ok {
		return nil, ErrSenderNotFound
	}
	if senderBalance < amount {
		return nil, ErrInsufficientFunds
	}
	if _, ok := balances[recipientID]; !ok {
		return nil, ErrRecipientNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET points = points - $1, updated_at = now() WHERE id = $2`,
		amount, senderID,
	); err != nil {
		return nil, fmt.Errorf("failed to debit sender: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET points = points + $1, updated_at = now() WHERE id = $2`,
		amount, recipientID,
	); err != nil {
		return nil, fmt.Errorf("failed to credit recipient: %w", err)
	}

	transfer := &model.PointTransfer{
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
	}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO point_transfers (sender_id, recipient_id, amount)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		senderID, recipientID, amount,
	).Scan(&transfer.ID, &transfer.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return transfer, nil
}

// ListByAccount はアカウントが送金元または受取人である送金記録を新しい順に返す。
func (r *PostgresLedgerRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.PointTransfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, amount, created_at
		 FROM point_transfers
		 WHERE sender_id = $1 OR recipient_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*model.PointTransfer
	for rows.Next() {
		t := &model.PointTransfer{}
		if err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.Amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}
	return transfers, nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
