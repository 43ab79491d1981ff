// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/tinyshop/internal/model"
)

// リポジトリ層のセンチネルエラー。サービス層でmodel.APIErrorに変換する。
var (
	// ErrEmailTaken はメールアドレスが既に登録されていることを示す。
	ErrEmailTaken = errors.New("email already registered")
	// ErrAccountNotFound はアカウントが存在しないことを示す。
	ErrAccountNotFound = errors.New("account not found")
	// ErrListingNotFound は商品が存在しない、または出品者が一致しないことを示す。
	ErrListingNotFound = errors.New("listing not found")
	// ErrSenderNotFound は送金元アカウントが存在しないことを示す。
	ErrSenderNotFound = errors.New("sender not found")
	// ErrInsufficientFunds は送金元の残高が不足していることを示す。
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRecipientNotFound は受取人アカウントが存在しないことを示す。
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrTargetNotFound は通報対象が存在せず、過去の通報もないことを示す。
	ErrTargetNotFound = errors.New("report target not found")
)

// AccountRepository はアカウントデータの永続化インターフェース。
// アカウントは物理削除しない。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成し、ID・タイムスタンプを設定する。
	// メールアドレスが重複する場合はErrEmailTakenを返す。
	Create(ctx context.Context, account *model.Account) error

	// List は全アカウントをID昇順で返す。
	List(ctx context.Context) ([]*model.Account, error)

	// Suspend はアカウントを停止状態にする。
	// 今回の呼び出しで状態が遷移した場合のみtrueを返す。存在しない場合はErrAccountNotFound。
	Suspend(ctx context.Context, id int64) (bool, error)

	// AddPoints はアカウントにポイントを加算し、加算後の残高を返す。
	AddPoints(ctx context.Context, id int64, amount int64) (int64, error)
}

// ListingRepository は商品データの永続化インターフェース。
type ListingRepository interface {
	// Create は商品を作成し、ID・タイムスタンプを設定する。
	Create(ctx context.Context, listing *model.Listing) error

	// FindByID は出品者のメールアドレス付きで商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.ListingDetail, error)

	// List は商品を新しい順に最大limit件返す。
	List(ctx context.Context, limit int) ([]*model.Listing, error)

	// FindSellerID は商品の出品者IDを返す。見つからない場合はErrListingNotFound。
	FindSellerID(ctx context.Context, id int64) (int64, error)

	// UpdatePrice は出品者本人の商品の価格を更新する。
	// idとsellerIDが一致する行がない場合はErrListingNotFound。
	UpdatePrice(ctx context.Context, id, sellerID, price int64) (*model.Listing, error)

	// Delete は出品者本人の商品を削除する。
	// idとsellerIDが一致する行がない場合はErrListingNotFound。
	Delete(ctx context.Context, id, sellerID int64) error
}

// LedgerRepository はポイント台帳の永続化インターフェース。
type LedgerRepository interface {
	// Transfer は送金元から受取人へamountポイントを原子的に移動する。
	// 両アカウントの行をID昇順でロックし、残高確認・更新・送金記録を1トランザクションで行う。
	// 失敗時はいずれの残高も変更されない。
	Transfer(ctx context.Context, senderID, recipientID, amount int64) (*model.PointTransfer, error)

	// ListByAccount はアカウントが送金元または受取人である送金記録を新しい順に返す。
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.PointTransfer, error)
}

// ReportRepository は通報の永続化と自動モデレーションのインターフェース。
type ReportRepository interface {
	// CreateAndModerate は通報を記録し、同一対象への通報件数が
	// model.ModerationThreshold に達した場合は処分を同一トランザクションで適用する。
	CreateAndModerate(ctx context.Context, report *model.Report) (*model.ModerationOutcome, error)
}

// ChatMessageRepository はチャットメッセージの永続化インターフェース。
type ChatMessageRepository interface {
	// Append はメッセージを追記し、ID・作成日時を設定する。
	Append(ctx context.Context, msg *model.ChatMessage) error

	// ListByRoom はルームの直近limit件のメッセージをID昇順で返す。
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*model.ChatMessage, error)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}
