// Package listing は商品の出品・参照・価格変更・削除を提供する。
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tinyshop/internal/model"
	"github.com/hitoshi/tinyshop/internal/repository"
	"github.com/hitoshi/tinyshop/internal/security"
)

// DefaultListLimit は商品一覧の既定取得件数。
const DefaultListLimit = 100

// CreateInput は出品リクエストの入力。
// ImageURLは不透明な参照文字列として扱い、内容は検証しない。
type CreateInput struct {
	Title       string
	Description string
	Price       int64
	ImageURL    *string
}

// Service は商品に関するビジネスロジックを提供する。
type Service struct {
	repo      repository.ListingRepository
	sanitizer security.TextSanitizer
}

// NewService はServiceを生成する。
func NewService(repo repository.ListingRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// Create はsellerIDの商品を出品する。
// サニタイズ後の商品名が空、または価格が0以下の場合はINVALID_LISTINGを返す。
func (s *Service) Create(ctx context.Context, sellerID int64, in CreateInput) (*model.Listing, error) {
	title := s.sanitizer.Sanitize(in.Title)
	if title == "" {
		return nil, model.NewInvalidListingError("title is required")
	}
	if in.Price <= 0 {
		return nil, model.NewInvalidListingError("price must be positive")
	}

	listing := &model.Listing{
		Title:       title,
		Description: s.sanitizer.Sanitize(in.Description),
		Price:       in.Price,
		SellerID:    sellerID,
		ImageURL:    normalizeImageURL(in.ImageURL),
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	slog.Info("listing created",
		slog.Int64("listing_id", listing.ID),
		slog.Int64("seller_id", sellerID),
	)
	return listing, nil
}

// List は商品を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Listing, error) {
	listings, err := s.repo.List(ctx, DefaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	if listings == nil {
		listings = []*model.Listing{}
	}
	return listings, nil
}

// Get は出品者のメールアドレス付きで商品を取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.ListingDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if detail == nil {
		return nil, model.NewListingNotFoundError(id)
	}
	return detail, nil
}

// SellerOf は商品の出品者IDを返す。商品が存在しない場合はfoundにfalseを返す。
func (s *Service) SellerOf(ctx context.Context, id int64) (sellerID int64, found bool, err error) {
	sellerID, err = s.repo.FindSellerID(ctx, id)
	if errors.Is(err, repository.ErrListingNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find seller: %w", err)
	}
	return sellerID, true, nil
}

// UpdatePrice はsellerIDが出品した商品の価格を変更する。
func (s *Service) UpdatePrice(ctx context.Context, sellerID, id, price int64) (*model.Listing, error) {
	if price <= 0 {
		return nil, model.NewInvalidListingError("price must be positive")
	}

	listing, err := s.repo.UpdatePrice(ctx, id, sellerID, price)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, model.NewListingNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to update listing price: %w", err)
	}

	slog.Info("listing price updated",
		slog.Int64("listing_id", id),
		slog.Int64("seller_id", sellerID),
		slog.Int64("price", price),
	)
	return listing, nil
}

// Delete はsellerIDが出品した商品を削除する。
func (s *Service) Delete(ctx context.Context, sellerID, id int64) error {
	if err := s.repo.Delete(ctx, id, sellerID); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return model.NewListingNotFoundError(id)
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	slog.Info("listing deleted",
		slog.Int64("listing_id", id),
		slog.Int64("seller_id", sellerID),
	)
	return nil
}

func normalizeImageURL(imageURL *string) *string {
	if imageURL == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*imageURL)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
