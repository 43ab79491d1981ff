// Package model はドメインモデルを定義する。
package model

import "time"

// Account はマーケットプレイスの利用アカウントを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	IntroText    string
	IsAdmin      bool
	IsSuspended  bool
	Points       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claim は検証済みセッショントークンの内容を表す。
// 永続化されず、トークンから毎回復元される。
type Claim struct {
	AccountID int64
	IsAdmin   bool
	ExpiresAt time.Time
}
