// Package account はアカウント情報の参照と管理者向けのアカウント管理を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/repository"
)

// SuspendResult は停止処理の結果。
// Changedは今回の呼び出しで停止状態へ遷移した場合にtrueとなる。
type SuspendResult struct {
	AccountID int64
	Changed   bool
}

// Service はアカウント管理のサービス層。
type Service struct {
	accounts repository.AccountRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(accounts repository.AccountRepository) *Service {
	return &Service{accounts: accounts}
}

// GetSelf はログイン中のアカウント情報を返す。
func (s *Service) GetSelf(ctx context.Context, accountID int64) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	return account, nil
}

// ListAccounts は全アカウントを返す（管理者用）。
func (s *Service) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("アカウント一覧の取得に失敗しました: %w", err)
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}
	return accounts, nil
}

// Suspend はアカウントを停止する（管理者用）。
// 既に停止中の場合もエラーにはせず、Changed=falseを返す。
func (s *Service) Suspend(ctx context.Context, adminID, accountID int64) (*SuspendResult, error) {
	changed, err := s.accounts.Suspend(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, model.NewAccountNotFoundError()
		}
		return nil, fmt.Errorf("アカウントの停止に失敗しました: %w", err)
	}

	if changed {
		slog.Info("アカウントを停止しました",
			slog.Int64("account_id", accountID),
			slog.Int64("admin_id", adminID),
		)
	}
	return &SuspendResult{AccountID: accountID, Changed: changed}, nil
}

// Credit はアカウントにポイントを付与し、付与後の残高を返す（管理者用）。
func (s *Service) Credit(ctx context.Context, adminID, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, model.NewInvalidAmountError(amount)
	}

	balance, err := s.accounts.AddPoints(ctx, accountID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, model.NewAccountNotFoundError()
		}
		return 0, fmt.Errorf("ポイントの付与に失敗しました: %w", err)
	}

	slog.Info("ポイントを付与しました",
		slog.Int64("account_id", accountID),
		slog.Int64("admin_id", adminID),
		slog.Int64("amount", amount),
		slog.Int64("balance", balance),
	)
	return balance, nil
}
