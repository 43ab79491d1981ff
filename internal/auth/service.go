// Package auth はアカウント登録・ログインとセッショントークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/repository"
)

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token   string
	Claim   *model.Claim
	Account *model.Account
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	tokens   *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(accounts repository.AccountRepository, tokens *TokenIssuer) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
	}
}

// Register は新規アカウントを作成する。
// メールアドレスが既に登録されている場合はEMAIL_ALREADY_REGISTEREDエラーを返す。
func (s *Service) Register(ctx context.Context, email, password string) (*model.Account, error) {
	return s.createAccount(ctx, email, password, false)
}

// CreateAdmin は管理者アカウントを作成する（create-adminサブコマンド用）。
// 既に同じメールアドレスのアカウントが存在する場合は作成せず、createdにfalseを返す。
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (account *model.Account, created bool, err error) {
	account, err = s.createAccount(ctx, email, password, true)
	if err == nil {
		return account, true, nil
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailAlreadyExists {
		existing, findErr := s.accounts.FindByEmail(ctx, normalizeEmail(email))
		if findErr != nil {
			return nil, false, fmt.Errorf("failed to find existing admin: %w", findErr)
		}
		return existing, false, nil
	}
	return nil, false, err
}

func (s *Service) createAccount(ctx context.Context, email, password string, isAdmin bool) (*model.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidRequestError("email and password are required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account registered",
		slog.Int64("account_id", account.ID),
		slog.Bool("is_admin", account.IsAdmin),
	)
	return account, nil
}

// Login はメールアドレスとパスワードを検証し、セッショントークンを発行する。
// 未登録はACCOUNT_NOT_FOUND、停止中はACCOUNT_SUSPENDED、パスワード不一致はINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	if account.IsSuspended {
		slog.Warn("suspended account login rejected", slog.Int64("account_id", account.ID))
		return nil, model.NewAccountSuspendedError()
	}

	ok, err := CheckPassword(account.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	token, claim, err := s.tokens.Issue(account.ID, account.IsAdmin)
	if err != nil {
		return nil, err
	}

	slog.Info("account logged in", slog.Int64("account_id", account.ID))
	return &LoginResult{Token: token, Claim: claim, Account: account}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
