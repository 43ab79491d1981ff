package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/moderation"
)

// ReportServiceInterface は通報ハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	FileReport(ctx context.Context, reporterID int64, in moderation.ReportInput) (*model.ModerationOutcome, error)
}

// ReportHandler は通報のHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// fileReportRequest は通報リクエストのボディ。
// 対象がちょうど1つであることと理由の検証はサービス層で行う。
type fileReportRequest struct {
	TargetAccountID *int64 `json:"target_account_id"`
	TargetListingID *int64 `json:"target_listing_id"`
	Reason          string `json:"reason" validate:"max=1000"`
}

type reportResponse struct {
	ID              int64     `json:"id"`
	ReporterID      int64     `json:"reporter_id"`
	TargetAccountID *int64    `json:"target_account_id"`
	TargetListingID *int64    `json:"target_listing_id"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
	ReportCount     int       `json:"report_count"`
	Action          string    `json:"action,omitempty"`
}

// FileReport はアカウントまたは商品を通報する。
// 通報数が閾値に達した場合は自動処分の結果をactionに含める。
// POST /api/reports
func (h *ReportHandler) FileReport(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}

	var req fileReportRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	outcome, err := h.service.FileReport(r.Context(), claim.AccountID, moderation.ReportInput{
		TargetAccountID: req.TargetAccountID,
		TargetListingID: req.TargetListingID,
		Reason:          req.Reason,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	rep := outcome.Report
	writeJSON(w, http.StatusCreated, reportResponse{
		ID:              rep.ID,
		ReporterID:      rep.ReporterID,
		TargetAccountID: rep.TargetAccountID,
		TargetListingID: rep.TargetListingID,
		Reason:          rep.Reason,
		CreatedAt:       rep.CreatedAt,
		ReportCount:     outcome.Count,
		Action:          string(outcome.Action),
	})
}
