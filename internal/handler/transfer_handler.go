package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/tinyshop/internal/model"
)

// LedgerServiceInterface は送金ハンドラーが必要とするサービスインターフェース。
type LedgerServiceInterface interface {
	Transfer(ctx context.Context, senderID, recipientID, amount int64) (*model.PointTransfer, error)
	History(ctx context.Context, accountID int64, limit int) ([]*model.PointTransfer, error)
}

// TransferHandler はポイント送金のHTTPハンドラー。
type TransferHandler struct {
	service LedgerServiceInterface
}

// NewTransferHandler はTransferHandlerを生成する。
func NewTransferHandler(service LedgerServiceInterface) *TransferHandler {
	return &TransferHandler{service: service}
}

// transferRequest は送金リクエストのボディ。送金者はトークンのアカウント。
type transferRequest struct {
	RecipientID int64 `json:"recipient_id" validate:"required"`
	Amount      int64 `json:"amount"`
}

type transferResponse struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	RecipientID int64     `json:"recipient_id"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// Transfer はログイン中のアカウントから受取人へポイントを送金する。
// POST /api/transfers
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	t, err := h.service.Transfer(r.Context(), claim.AccountID, req.RecipientID, req.Amount)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransferResponse(t))
}

// History はログイン中のアカウントの送受信履歴を新しい順に返す。
// GET /api/transfers?limit=50
func (h *TransferHandler) History(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitが不正です"))
			return
		}
		limit = n
	}

	transfers, err := h.service.History(r.Context(), claim.AccountID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		res = append(res, toTransferResponse(t))
	}
	writeJSON(w, http.StatusOK, res)
}

func toTransferResponse(t *model.PointTransfer) transferResponse {
	return transferResponse{
		ID:          t.ID,
		SenderID:    t.SenderID,
		RecipientID: t.RecipientID,
		Amount:      t.Amount,
		CreatedAt:   t.CreatedAt,
	}
}
