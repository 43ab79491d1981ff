package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, " + RequestIDHeader
	corsExposeHeaders = "Retry-After, " + RequestIDHeader
)

// NewCORSMiddleware はCORSミドルウェアを返す。
// allowedOriginにはカンマ区切りで複数のオリジンを指定できる。ワイルドカード(*)は使用しない。
//
// リクエストのOriginが許可リストにあればそのオリジンを返す。
// Originを送らないクライアント（curl、サーバー間通信）には先頭のオリジンを返す。
// 許可されていないOriginからのプリフライトは403で拒否する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	origins := parseOrigins(allowedOrigin)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin, allowed := matchOrigin(origins, r.Header.Get("Origin"))
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && o != "*" {
			origins = append(origins, o)
		}
	}
	return origins
}

// matchOrigin はリクエストのOriginに対して返すべき許可オリジンを決める。
func matchOrigin(origins []string, requestOrigin string) (string, bool) {
	if len(origins) == 0 {
		return "", false
	}
	if requestOrigin == "" {
		return origins[0], true
	}
	for _, o := range origins {
		if strings.EqualFold(o, requestOrigin) {
			return requestOrigin, true
		}
	}
	return "", false
}
