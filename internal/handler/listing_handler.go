package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/tinyshop/internal/listing"
	"github.com/hitoshi/tinyshop/internal/model"
)

// ListingServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, sellerID int64, in listing.CreateInput) (*model.Listing, error)
	List(ctx context.Context) ([]*model.Listing, error)
	Get(ctx context.Context, id int64) (*model.ListingDetail, error)
	UpdatePrice(ctx context.Context, sellerID, id, price int64) (*model.Listing, error)
	Delete(ctx context.Context, sellerID, id int64) error
}

// ListingHandler は商品のHTTPハンドラー。
// 変更・削除の所有者確認はルーターのミドルウェアで行う。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// createListingRequest は出品リクエストのボディ。
// 商品名と価格の検証はサニタイズ後にサービス層で行う。
type createListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	ImageURL    *string `json:"image_url" validate:"omitempty,max=2048"`
}

type updateListingRequest struct {
	Price int64 `json:"price"`
}

// listingResponse は商品情報のAPIレスポンス。
type listingResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	SellerID    int64     `json:"seller_id"`
	SellerEmail string    `json:"seller_email,omitempty"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateListing は商品を出品する。
// POST /api/items
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}

	var req createListingRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	l, err := h.service.Create(r.Context(), claim.AccountID, listing.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toListingResponse(l))
}

// ListListings は商品一覧を返す。
// GET /api/items
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		res = append(res, toListingResponse(l))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetListing は出品者のメールアドレス付きで商品詳細を返す。
// GET /api/items/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res := toListingResponse(&detail.Listing)
	res.SellerEmail = detail.SellerEmail
	writeJSON(w, http.StatusOK, res)
}

// UpdateListing は商品の価格を変更する。
// PUT /api/items/{id}
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req updateListingRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	l, err := h.service.UpdatePrice(r.Context(), claim.AccountID, id, req.Price)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingResponse(l))
}

// DeleteListing は商品を削除する。
// DELETE /api/items/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	claim, ok := requireClaim(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), claim.AccountID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		SellerID:    l.SellerID,
		ImageURL:    l.ImageURL,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
