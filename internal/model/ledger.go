// Package model はドメインモデルを定義する。
package model

import "time"

// PointTransfer は成功したポイント送金の記録。
// 残高の更新と同一トランザクションで作成される。
type PointTransfer struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Amount      int64
	CreatedAt   time.Time
}
