package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tinyshop/internal/chat"
	"github.com/hitoshi/tinyshop/internal/metrics"
	"github.com/hitoshi/tinyshop/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	OwnerLookup       middleware.OwnerLookup
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 監視
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// ドメインサービス
	AuthService    AuthServiceInterface
	AccountService AccountServiceInterface
	ListingService ListingServiceInterface
	LedgerService  LedgerServiceInterface
	ReportService  ReportServiceInterface

	// チャット
	ChatHub     *chat.Hub
	ChatHistory ChatHistoryReader
	ChatConfig  ChatHandlerConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// 認証が必要なルートには Auth → RateLimit(General) を適用し、
// 送金と通報にはさらに RateLimit(Sensitive) を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	accountHandler := NewAccountHandler(deps.AccountService)
	listingHandler := NewListingHandler(deps.ListingService)
	transferHandler := NewTransferHandler(deps.LedgerService)
	reportHandler := NewReportHandler(deps.ReportService)

	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)

	// --- 認証不要のルート ---
	r.Get("/", Index)
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Get("/api/items", listingHandler.ListListings)
	r.Get("/api/items/{id}", listingHandler.GetListing)

	// WebSocketはクエリパラメータのトークンも受け付けるため、ハンドラー内で検証する
	if deps.ChatHub != nil {
		chatHandler := NewChatHandler(deps.ChatHub, deps.ChatHistory, deps.TokenVerifier, deps.ChatConfig)
		r.Get("/ws/chat", chatHandler.Connect)

		r.With(requireAuth, rateLimiter.GeneralMiddleware()).
			Get("/api/chats/{peerID}/messages", chatHandler.History)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimiter.GeneralMiddleware())

		r.Get("/api/me", accountHandler.Me)

		// 商品の変更・削除は出品者本人のみ
		r.Post("/api/items", listingHandler.CreateListing)
		requireOwner := middleware.NewOwnershipMiddleware(deps.OwnerLookup, "id")
		r.With(requireOwner).Put("/api/items/{id}", listingHandler.UpdateListing)
		r.With(requireOwner).Delete("/api/items/{id}", listingHandler.DeleteListing)

		// 送金と通報は専用レート制限を追加
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.SensitiveMiddleware())
			r.Post("/api/transfers", transferHandler.Transfer)
			r.Post("/api/reports", reportHandler.FileReport)
		})
		r.Get("/api/transfers", transferHandler.History)

		// 管理者
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/users", accountHandler.ListAccounts)
			r.Post("/users/{id}/suspend", accountHandler.Suspend)
			r.Post("/users/{id}/points", accountHandler.Credit)
		})
	})

	return r
}
