// Package model はドメインモデルを定義する。
package model

import "time"

// ModerationThreshold は自動モデレーションが発動する通報件数。
const ModerationThreshold = 3

// Report はアカウントまたは商品に対する通報を表す。
// TargetAccountIDとTargetListingIDのどちらか一方のみが設定される。
type Report struct {
	ID              int64
	ReporterID      int64
	TargetAccountID *int64
	TargetListingID *int64
	Reason          string
	CreatedAt       time.Time
}

// ModerationAction は通報によって適用された自動処分の種別。
type ModerationAction string

const (
	// ModerationActionNone は処分が発生しなかったことを示す。
	ModerationActionNone ModerationAction = ""
	// ModerationActionAccountSuspended はアカウントが停止されたことを示す。
	ModerationActionAccountSuspended ModerationAction = "account_suspended"
	// ModerationActionListingDeleted は商品が削除されたことを示す。
	ModerationActionListingDeleted ModerationAction = "listing_deleted"
)

// ModerationOutcome は通報登録の結果。
// Countは今回の通報を含む同一対象への通報件数。
type ModerationOutcome struct {
	Report *Report
	Count  int
	Action ModerationAction
	// Orphaned は対象商品が既に存在しない状態で通報が記録されたことを示す。
	Orphaned bool
}
