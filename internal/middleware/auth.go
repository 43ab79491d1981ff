// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tinyshop/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimContextKey = contextKey("claim")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*model.Claim, error)
}

// OwnerLookup は商品の出品者IDの検索に必要なインターフェース。
// 商品が存在しない場合はfoundにfalseを返す。
type OwnerLookup interface {
	SellerOf(ctx context.Context, listingID int64) (sellerID int64, found bool, err error)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない、または形式が異なる場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証済みクレームをリクエストコンテキストに注入する。
// トークンがない、不正、期限切れのいずれの場合も区別せず401 UNAUTHENTICATEDを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			claim, err := verifier.Verify(token)
			if err != nil || claim == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			setRequestAccountID(r.Context(), claim.AccountID)
			next.ServeHTTP(w, r.WithContext(ContextWithClaim(r.Context(), claim)))
		})
	}
}

// RequireAdmin は管理者以外に403 FORBIDDENを返すミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, ok := ClaimFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			if !claim.IsAdmin {
				slog.Warn("admin route rejected",
					slog.Int64("account_id", claim.AccountID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewOwnershipMiddleware はURLパラメータparamの商品が本人の出品であることを確認するミドルウェアを返す。
// 出品者が異なる場合と商品が存在しない場合はどちらも403 NOT_OWNERを返す。
// NewAuthMiddlewareの後に配置する。
func NewOwnershipMiddleware(lookup OwnerLookup, param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, ok := ClaimFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			listingID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || listingID <= 0 {
				WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("invalid listing id"))
				return
			}

			sellerID, found, err := lookup.SellerOf(r.Context(), listingID)
			if err != nil {
				slog.Error("failed to look up listing owner",
					slog.Int64("listing_id", listingID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if !found || sellerID != claim.AccountID {
				WriteErrorResponse(w, http.StatusForbidden, model.NewNotOwnerError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimFromContext はリクエストコンテキストから検証済みクレームを取得する。
// NewAuthMiddlewareを通過したリクエストでのみ有効。
func ClaimFromContext(ctx context.Context) (*model.Claim, bool) {
	claim, ok := ctx.Value(claimContextKey).(*model.Claim)
	if !ok || claim == nil {
		return nil, false
	}
	return claim, true
}

// ContextWithClaim はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaim(ctx context.Context, claim *model.Claim) context.Context {
	return context.WithValue(ctx, claimContextKey, claim)
}
