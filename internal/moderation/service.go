// Package moderation は通報の受付と通報件数に基づく自動モデレーションを提供する。
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tinyshop/internal/metrics"
	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/repository"
)

// 通報対象種別のラベル値。
const (
	TargetKindAccount = "account"
	TargetKindListing = "listing"
)

// ReportInput は通報リクエストの入力。
// TargetAccountIDとTargetListingIDはどちらか一方のみ指定する。
type ReportInput struct {
	TargetAccountID *int64
	TargetListingID *int64
	Reason          string
}

// Service は通報と自動モデレーションのビジネスロジックを提供する。
type Service struct {
	repo    repository.ReportRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(repo repository.ReportRepository, collector metrics.MetricsCollector) *Service {
	return &Service{
		repo:    repo,
		metrics: metrics.OrNop(collector),
	}
}

// FileReport は通報を記録し、同一対象への通報がしきい値に達した場合は処分を適用する。
// 処分の有無はModerationOutcome.Actionで返す。
func (s *Service) FileReport(ctx context.Context, reporterID int64, in ReportInput) (*model.ModerationOutcome, error) {
	kind, err := validate(in)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		ReporterID:      reporterID,
		TargetAccountID: in.TargetAccountID,
		TargetListingID: in.TargetListingID,
		Reason:          strings.TrimSpace(in.Reason),
	}

	outcome, err := s.repo.CreateAndModerate(ctx, report)
	if err != nil {
		if errors.Is(err, repository.ErrTargetNotFound) {
			return nil, model.NewReportTargetNotFoundError()
		}
		return nil, fmt.Errorf("failed to file report: %w", err)
	}

	s.metrics.RecordReport(kind)
	attrs := []any{
		slog.Int64("report_id", outcome.Report.ID),
		slog.Int64("reporter_id", reporterID),
		slog.String("target", kind),
		slog.Int64("target_id", targetID(in)),
		slog.Int("count", outcome.Count),
	}
	if outcome.Action != model.ModerationActionNone {
		s.metrics.RecordModerationAction(string(outcome.Action))
		slog.Info("moderation action applied", append(attrs, slog.String("action", string(outcome.Action)))...)
	} else {
		slog.Info("report filed", append(attrs, slog.Bool("orphaned", outcome.Orphaned))...)
	}

	return outcome, nil
}

func validate(in ReportInput) (string, error) {
	hasAccount := in.TargetAccountID != nil
	hasListing := in.TargetListingID != nil
	if hasAccount == hasListing {
		return "", model.NewInvalidReportError("exactly one of target_account_id or target_listing_id is required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return "", model.NewInvalidReportError("reason is required")
	}
	if hasAccount {
		return TargetKindAccount, nil
	}
	return TargetKindListing, nil
}

func targetID(in ReportInput) int64 {
	if in.TargetAccountID != nil {
		return *in.TargetAccountID
	}
	return *in.TargetListingID
}
