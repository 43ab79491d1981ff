// Package model はドメインモデルを定義する。
package model

import "time"

// Listing は出品された商品を表す。
type Listing struct {
	ID          int64
	Title       string
	Description string
	Price       int64
	SellerID    int64
	ImageURL    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListingDetail は出品者のメールアドレスを結合した商品詳細。
type ListingDetail struct {
	Listing
	SellerEmail string
}
