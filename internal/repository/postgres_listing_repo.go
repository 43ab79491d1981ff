package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/tinyshop/internal/model"
)

const listingColumns = `l.id, l.title, l.description, l.price, l.seller_id, l.image_url, l.created_at, l.updated_at`

// PostgresListingRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

func scanListing(row rowScanner, extra ...any) (*model.Listing, error) {
	l := &model.Listing{}
	var imageURL sql.NullString
	dest := []any{&l.ID, &l.Title, &l.Description, &l.Price, &l.SellerID, &imageURL, &l.CreatedAt, &l.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		l.ImageURL = &imageURL.String
	}
	return l, nil
}

// Create は商品を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO listings (title, description, price, seller_id, image_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		listing.Title, listing.Description, listing.Price, listing.SellerID, listing.ImageURL,
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// FindByID は出品者のメールアドレス付きで商品を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id int64) (*model.ListingDetail, error) {
	var sellerEmail string
	l, err := scanListing(r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+`, a.email
		 FROM listings l
		 JOIN accounts a ON a.id = l.seller_id
		 WHERE l.id = $1`,
		id,
	), &sellerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}
	return &model.ListingDetail{Listing: *l, SellerEmail: sellerEmail}, nil
}

// List は商品を新しい順に最大limit件返す。
func (r *PostgresListingRepo) List(ctx context.Context, limit int) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings l ORDER BY l.created_at DESC, l.id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

// FindSellerID は商品の出品者IDを返す。
func (r *PostgresListingRepo) FindSellerID(ctx context.Context, id int64) (int64, error) {
	var sellerID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT seller_id FROM listings WHERE id = $1`, id,
	).Scan(&sellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrListingNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find listing seller: %w", err)
	}
	return sellerID, nil
}

// UpdatePrice は出品者本人の商品の価格を更新する。
// seller_idもWHERE句で照合する。
func (r *PostgresListingRepo) UpdatePrice(ctx context.Context, id, sellerID, price int64) (*model.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx,
		`UPDATE listings l SET price = $1, updated_at = now()
		 WHERE l.id = $2 AND l.seller_id = $3
		 RETURNING `+listingColumns,
		price, id, sellerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update listing price: %w", err)
	}
	return l, nil
}

// Delete は出品者本人の商品を削除する。
func (r *PostgresListingRepo) Delete(ctx context.Context, id, sellerID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM listings WHERE id = $1 AND seller_id = $2`,
		id, sellerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
