// Package ledger はアカウント間のポイント送金を提供する。
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/tinyshop/internal/metrics"
	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/repository"
)

// DefaultHistoryLimit は送金履歴の既定取得件数。
const DefaultHistoryLimit = 50

// maxHistoryLimit は送金履歴の最大取得件数。
const maxHistoryLimit = 200

// Service はポイント送金のビジネスロジックを提供する。
type Service struct {
	repo    repository.LedgerRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(repo repository.LedgerRepository, collector metrics.MetricsCollector) *Service {
	return &Service{
		repo:    repo,
		metrics: metrics.OrNop(collector),
	}
}

// Transfer はsenderIDからrecipientIDへamountポイントを送金する。
// 失敗時はどちらの残高も変更されない。
func (s *Service) Transfer(ctx context.Context, senderID, recipientID, amount int64) (*model.PointTransfer, error) {
	if amount <= 0 {
		s.metrics.RecordTransfer(metrics.TransferResultInvalid, amount)
		return nil, model.NewInvalidAmountError(amount)
	}
	if senderID == recipientID {
		s.metrics.RecordTransfer(metrics.TransferResultInvalid, amount)
		return nil, model.NewSelfTransferError()
	}

	transfer, err := s.repo.Transfer(ctx, senderID, recipientID, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			s.metrics.RecordTransfer(metrics.TransferResultInsufficientFunds, amount)
			slog.Info("transfer rejected",
				slog.Int64("sender_id", senderID),
				slog.Int64("recipient_id", recipientID),
				slog.Int64("amount", amount),
				slog.String("reason", "insufficient_funds"),
			)
			return nil, model.NewInsufficientFundsError()
		case errors.Is(err, repository.ErrRecipientNotFound):
			s.metrics.RecordTransfer(metrics.TransferResultRecipientNotFound, amount)
			return nil, model.NewRecipientNotFoundError()
		case errors.Is(err, repository.ErrSenderNotFound):
			// トークン発行後にアカウントが消えることはないため通常は発生しない
			s.metrics.RecordTransfer(metrics.TransferResultError, amount)
			return nil, model.NewAccountNotFoundError()
		}
		s.metrics.RecordTransfer(metrics.TransferResultError, amount)
		return nil, fmt.Errorf("failed to transfer points: %w", err)
	}

	s.metrics.RecordTransfer(metrics.TransferResultSuccess, amount)
	slog.Info("transfer completed",
		slog.Int64("transfer_id", transfer.ID),
		slog.Int64("sender_id", senderID),
		slog.Int64("recipient_id", recipientID),
		slog.Int64("amount", amount),
	)
	return transfer, nil
}

// History はアカウントが送金元または受取人である送金記録を新しい順に返す。
// limitが0以下の場合はDefaultHistoryLimitを使う。
func (s *Service) History(ctx context.Context, accountID int64, limit int) ([]*model.PointTransfer, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	transfers, err := s.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	if transfers == nil {
		transfers = []*model.PointTransfer{}
	}
	return transfers, nil
}
