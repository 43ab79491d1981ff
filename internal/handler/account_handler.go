package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/tinyshop/internal/account"
	"github.com/hitoshi/tinyshop/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	GetSelf(ctx context.Context, accountID int64) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]*model.Account, error)
	Suspend(ctx context.Context, adminID, accountID int64) (*account.SuspendResult, error)
	Credit(ctx context.Context, adminID, accountID, amount int64) (int64, error)
}

// AccountHandler は本人情報と管理者向けアカウント操作のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

type creditRequest struct {
	Amount int64 `json:"amount"`
}

type suspendResponse struct {
	AccountID   int64 `json:"account_id"`
	IsSuspended bool  `json:"is_suspended"`
	Changed     bool  `json:"changed"`
}

type creditResponse struct {
	AccountID int64 `json:"account_id"`
	Points    int64 `json:"points"`
}

// Me はログイン中のアカウント情報を返す。
// GET /api/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}

	a, err := h.service.GetSelf(r.Context(), claim.AccountID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(a))
}

// ListAccounts は全アカウントを返す（管理者のみ）。
// GET /api/admin/users
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponses(accounts))
}

// Suspend はアカウントを停止する（管理者のみ）。停止済みの場合も200を返す。
// POST /api/admin/users/{id}/suspend
func (h *AccountHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}
	accountID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.service.Suspend(r.Context(), claim.AccountID, accountID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, suspendResponse{
		AccountID:   result.AccountID,
		IsSuspended: true,
		Changed:     result.Changed,
	})
}

// Credit はアカウントにポイントを付与する（管理者のみ）。
// POST /api/admin/users/{id}/points
func (h *AccountHandler) Credit(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}
	accountID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req creditRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	points, err := h.service.Credit(r.Context(), claim.AccountID, accountID, req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, creditResponse{AccountID: accountID, Points: points})
}
