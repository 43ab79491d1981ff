package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/tinyshop/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	SensitiveRate   rate.Limit    // 送金・通報のレート（req/sec）。30/60
	SensitiveBurst  int           // 送金・通報のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/account、送金・通報 30 req/min/account。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfigPerMinute(120, 30)
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数から設定を生成する。
// バーストサイズは1分あたりのリクエスト数と同じにする。
func RateLimiterConfigPerMinute(general, sensitive int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		SensitiveRate:   rate.Limit(float64(sensitive) / 60.0),
		SensitiveBurst:  sensitive,
		CleanupInterval: 5 * time.Minute,
	}
}

// accountLimiter はアカウントごとのレートリミッターとアクセス時刻を保持する。
type accountLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterTier は1種類のレート制限を表す。
type limiterTier struct {
	name  string
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*accountLimiter
}

func newLimiterTier(name string, r rate.Limit, burst int) *limiterTier {
	return &limiterTier{
		name:     name,
		rate:     r,
		burst:    burst,
		limiters: make(map[int64]*accountLimiter),
	}
}

// get はアカウントのリミッターを取得または作成する。
func (t *limiterTier) get(accountID int64) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if al, exists := t.limiters[accountID]; exists {
		al.lastAccess = time.Now()
		return al.limiter
	}

	limiter := rate.NewLimiter(t.rate, t.burst)
	t.limiters[accountID] = &accountLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (t *limiterTier) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

// evict は最終アクセス時刻がttlを超えたエントリを削除する。
func (t *limiterTier) evict(now time.Time, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for accountID, al := range t.limiters {
		if now.Sub(al.lastAccess) > ttl {
			delete(t.limiters, accountID)
		}
	}
}

func (t *limiterTier) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, ok := ClaimFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if !t.get(claim.AccountID).Allow() {
				writeRateLimitResponse(w, t.rate)
				slog.Warn("rate limit exceeded",
					slog.Int64("account_id", claim.AccountID),
					slog.String("limit_type", t.name),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はアカウントごとのレート制限を管理する。
// API全般と、送金・通報向けのより厳しい制限の2種類を提供する。
type RateLimiter struct {
	config    RateLimiterConfig
	general   *limiterTier
	sensitive *limiterTier

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:    config,
		general:   newLimiterTier("general", config.GeneralRate, config.GeneralBurst),
		sensitive: newLimiterTier("sensitive", config.SensitiveRate, config.SensitiveBurst),
		stopCh:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// SensitiveMiddleware は送金・通報専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) SensitiveMiddleware() func(next http.Handler) http.Handler {
	return rl.sensitive.middleware()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// SensitiveLimiterCount は現在管理されている送金・通報リミッターのエントリ数を返す。
func (rl *RateLimiter) SensitiveLimiterCount() int {
	return rl.sensitive.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()
	rl.general.evict(now, ttl)
	rl.sensitive.evict(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
