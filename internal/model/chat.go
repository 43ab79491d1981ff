// Package model はドメインモデルを定義する。
package model

import "time"

// ChatMessage は2アカウント間のチャットメッセージを表す。
// 追記のみで更新・削除はされない。
type ChatMessage struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	RoomID     string
	Body       string
	CreatedAt  time.Time
}
