// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, ledger, moderation, listing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeNotOwner             = "NOT_OWNER"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailAlreadyExists   = "EMAIL_ALREADY_REGISTERED"
	ErrCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountSuspended     = "ACCOUNT_SUSPENDED"
	ErrCodeListingNotFound      = "LISTING_NOT_FOUND"
	ErrCodeInvalidListing       = "INVALID_LISTING"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeSelfTransfer         = "SELF_TRANSFER"
	ErrCodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	ErrCodeRecipientNotFound    = "RECIPIENT_NOT_FOUND"
	ErrCodeInvalidReport        = "INVALID_REPORT"
	ErrCodeReportTargetNotFound = "REPORT_TARGET_NOT_FOUND"
	ErrCodeInvalidChatMessage   = "INVALID_CHAT_MESSAGE"
	ErrCodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthenticatedError はトークン未指定・無効・期限切れのエラーを生成する。
// 失敗理由は区別しない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は管理者権限が必要な操作のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "管理者のみ実行できます。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewNotOwnerError は本人以外が商品を変更しようとした場合のエラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  "本人の商品のみ変更・削除できます。",
		Category: "listing",
		Action:   "自分が出品した商品を選択してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidCredentialsError はパスワード不一致のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "パスワードが一致しません。",
		Category: "auth",
		Action:   "パスワードを確認してください。",
	}
}

// NewEmailAlreadyExistsError はメールアドレス重複のエラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "既に登録されているメールアドレスです。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewAccountNotFoundError はアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "登録されていないアカウントです。",
		Category: "auth",
		Action:   "メールアドレスを確認するか、新規登録してください。",
	}
}

// NewAccountSuspendedError は停止中アカウントのログインエラーを生成する。
func NewAccountSuspendedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountSuspended,
		Message:  "停止されたアカウントです。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewListingNotFoundError は商品が見つからない場合のエラーを生成する。
func NewListingNotFoundError(listingID int64) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %d", listingID),
		Category: "listing",
		Action:   "商品IDを確認してください。",
	}
}

// NewInvalidListingError は商品名・価格が不正な場合のエラーを生成する。
func NewInvalidListingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidListing,
		Message:  fmt.Sprintf("商品情報が不正です: %s", reason),
		Category: "validation",
		Action:   "商品名と1以上の価格を入力してください。",
	}
}

// NewInvalidAmountError は送金額が0以下の場合のエラーを生成する。
func NewInvalidAmountError(amount int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  fmt.Sprintf("無効な送金額です: %d", amount),
		Category: "validation",
		Action:   "1以上のポイントを指定してください。",
	}
}

// NewSelfTransferError は自分自身への送金エラーを生成する。
func NewSelfTransferError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfTransfer,
		Message:  "自分自身には送金できません。",
		Category: "validation",
		Action:   "別の受取人を指定してください。",
	}
}

// NewInsufficientFundsError は残高不足のエラーを生成する。
func NewInsufficientFundsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientFunds,
		Message:  "ポイントが不足しています。",
		Category: "ledger",
		Action:   "残高を確認してから再度お試しください。",
	}
}

// NewRecipientNotFoundError は受取人が存在しない場合のエラーを生成する。
func NewRecipientNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRecipientNotFound,
		Message:  "受取人が見つかりません。",
		Category: "ledger",
		Action:   "受取人のIDを確認してください。",
	}
}

// NewInvalidReportError は通報対象または理由が不正な場合のエラーを生成する。
func NewInvalidReportError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReport,
		Message:  fmt.Sprintf("通報内容が不正です: %s", reason),
		Category: "validation",
		Action:   "通報対象（アカウントまたは商品のどちらか一方）と理由を入力してください。",
	}
}

// NewReportTargetNotFoundError は通報対象が存在しない場合のエラーを生成する。
func NewReportTargetNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeReportTargetNotFound,
		Message:  "通報対象が見つかりません。",
		Category: "moderation",
		Action:   "通報対象のIDを確認してください。",
	}
}

// NewInvalidChatMessageError はチャットメッセージが不正な場合のエラーを生成する。
func NewInvalidChatMessageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidChatMessage,
		Message:  fmt.Sprintf("チャットメッセージが不正です: %s", reason),
		Category: "validation",
		Action:   "相手のIDと本文を指定してください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
