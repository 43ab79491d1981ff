package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/tinyshop/internal/auth"
	"github.com/hitoshi/tinyshop/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (*model.Account, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AuthHandler はアカウント登録とログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// credentialsRequest は登録・ログインリクエストのボディ。
// bcryptは72バイトを超えるパスワードを扱えないため上限を設ける。
type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// accountResponse はアカウント情報のAPIレスポンス。パスワードハッシュは含めない。
type accountResponse struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	IntroText   string    `json:"intro_text"`
	IsAdmin     bool      `json:"is_admin"`
	IsSuspended bool      `json:"is_suspended"`
	Points      int64     `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

// loginResponse はログイン成功時のAPIレスポンス。
type loginResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   accountResponse `json:"account"`
}

// Register はアカウントを新規登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// Login はメールアドレスとパスワードで認証し、セッショントークンを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.Claim.ExpiresAt,
		Account:   toAccountResponse(result.Account),
	})
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Email:       a.Email,
		IntroText:   a.IntroText,
		IsAdmin:     a.IsAdmin,
		IsSuspended: a.IsSuspended,
		Points:      a.Points,
		CreatedAt:   a.CreatedAt,
	}
}

func toAccountResponses(accounts []*model.Account) []accountResponse {
	res := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, toAccountResponse(a))
	}
	return res
}
