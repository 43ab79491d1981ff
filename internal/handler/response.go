// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/tinyshop/internal/middleware"
	"github.com/hitoshi/tinyshop/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外のエラーはログに記録し、詳細を隠した500を返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("path", r.URL.Path),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeNotOwner,
		model.ErrCodeAccountSuspended, model.ErrCodeInsufficientFunds:
		return http.StatusForbidden
	case model.ErrCodeAccountNotFound, model.ErrCodeListingNotFound,
		model.ErrCodeRecipientNotFound, model.ErrCodeReportTargetNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailAlreadyExists:
		return http.StatusConflict
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidListing,
		model.ErrCodeInvalidAmount, model.ErrCodeSelfTransfer,
		model.ErrCodeInvalidReport, model.ErrCodeInvalidChatMessage:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeRequest はJSONボディをdstに読み込み、validateタグで検証する。
// 失敗した場合はINVALID_REQUESTのレスポンスを書き込みfalseを返す。
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(describeValidationError(err)))
		return false
	}
	return true
}

// describeValidationError は検証エラーをフィールド名付きの短い文字列にする。
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

// requireClaim はリクエストコンテキストから検証済みクレームを取り出す。
// 認証ミドルウェアを通っていない場合は401を書き込みfalseを返す。
func requireClaim(w http.ResponseWriter, r *http.Request) (*model.Claim, bool) {
	claim, ok := middleware.ClaimFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return nil, false
	}
	return claim, true
}

// parseIDParam はURLパラメータを正の整数IDとして解析する。
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("IDが不正です"))
		return 0, false
	}
	return id, true
}
