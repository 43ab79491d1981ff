package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/tinyshop/internal/model"
)

// SessionTokenTTL はセッショントークンの有効期間。
const SessionTokenTTL = 2 * time.Hour

// ErrInvalidToken はトークンが未指定・改ざん・期限切れのいずれかであることを示す。
// 失敗理由は呼び出し元に区別させない。
var ErrInvalidToken = errors.New("invalid session token")

// sessionClaims はJWTのペイロード。subにアカウントIDを格納する。
type sessionClaims struct {
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のセッショントークンを発行・検証する。
// 状態を持たないため複数goroutineから安全に利用できる。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。ttlが0以下の場合はSessionTokenTTLを使用する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = SessionTokenTTL
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はアカウントIDと管理者フラグを含むトークンを発行する。
func (i *TokenIssuer) Issue(accountID int64, isAdmin bool) (string, *model.Claim, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	claims := &sessionClaims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, &model.Claim{
		AccountID: accountID,
		IsAdmin:   isAdmin,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify はトークンの署名方式・署名・有効期限を検証し、Claimを返す。
// いずれかの検証に失敗した場合はErrInvalidTokenを返す。
func (i *TokenIssuer) Verify(tokenString string) (*model.Claim, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return nil, ErrInvalidToken
	}

	return &model.Claim{
		AccountID: accountID,
		IsAdmin:   claims.IsAdmin,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
