package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/tinyshop/internal/account"
	"github.com/hitoshi/tinyshop/internal/auth"
	"github.com/hitoshi/tinyshop/internal/chat"
	"github.com/hitoshi/tinyshop/internal/config"
	"github.com/hitoshi/tinyshop/internal/database"
	"github.com/hitoshi/tinyshop/internal/handler"
	"github.com/hitoshi/tinyshop/internal/ledger"
	"github.com/hitoshi/tinyshop/internal/listing"
	"github.com/hitoshi/tinyshop/internal/logger"
	"github.com/hitoshi/tinyshop/internal/metrics"
	"github.com/hitoshi/tinyshop/internal/middleware"
	"github.com/hitoshi/tinyshop/internal/moderation"
	"github.com/hitoshi/tinyshop/internal/repository"
	"github.com/hitoshi/tinyshop/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, commandArgs(args))
	case CommandCreateAdmin:
		return runCreateAdmin(cfg, commandArgs(args))
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(databaseURL)),
	)
	return db, nil
}

// server はHTTPサーバーと終了時に止めるべきバックグラウンド処理をまとめる。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンド処理を停止する。
func (s *server) Close() {
	s.rateLimiter.Stop()
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func newServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *server {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)
	ledgerRepo := repository.NewPostgresLedgerRepo(db)
	reportRepo := repository.NewPostgresReportRepo(db)
	chatRepo := repository.NewPostgresChatMessageRepo(db)

	// 3. ドメインサービスの初期化
	tokens := auth.NewTokenIssuer(cfg.SessionSecret, auth.SessionTokenTTL)
	authService := auth.NewService(accountRepo, tokens)
	accountService := account.NewService(accountRepo)
	listingService := listing.NewService(listingRepo, security.NewTextSanitizer())
	ledgerService := ledger.NewService(ledgerRepo, collector)
	moderationService := moderation.NewService(reportRepo, collector)
	hub := chat.NewHub(chatRepo, collector, cfg.ChatHistoryLimit)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitSensitive),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     tokens,
		OwnerLookup:       listingService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthChecker: db,
		Metrics:       collector,
		Gatherer:      reg,

		AuthService:    authService,
		AccountService: accountService,
		ListingService: listingService,
		LedgerService:  ledgerService,
		ReportService:  moderationService,

		ChatHub: hub,
		ChatConfig: handler.ChatHandlerConfig{
			AllowedOrigin: cfg.CORSAllowedOrigin,
			Client: chat.Options{
				PingInterval:    cfg.ChatPingInterval,
				EventsPerMinute: cfg.RateLimitGeneral,
			},
		},
	})

	return &server{handler: router, rateLimiter: rateLimiter}
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := newServer(cfg, db, newRegistry())
	defer srv.Close()

	// WebSocket接続はハイジャック後に自前でデッドラインを管理するため、WriteTimeoutは通常のAPI向けの値とする
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしの場合はすべての未適用マイグレーションを適用し、"down"の場合は直近の1つを取り消す。
func runMigrate(cfg *config.Config, args []string) error {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	slog.Info("running database migrations",
		slog.String("direction", direction),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch direction {
	case "up":
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case "down":
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown migrate direction %q (want up or down)", direction)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runCreateAdmin は管理者アカウントを作成する。
// 引数 <email> <password> がない場合はADMIN_EMAIL、ADMIN_PASSWORDを使用する。
// 同じメールアドレスの管理者が既に存在する場合は何もしない。
func runCreateAdmin(cfg *config.Config, args []string) error {
	email, password := cfg.AdminEmail, cfg.AdminPassword
	if len(args) >= 2 {
		email, password = args[0], args[1]
	}
	if email == "" || password == "" {
		return errors.New("admin email and password are required (args or ADMIN_EMAIL/ADMIN_PASSWORD)")
	}

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens := auth.NewTokenIssuer(cfg.SessionSecret, auth.SessionTokenTTL)
	svc := auth.NewService(repository.NewPostgresAccountRepo(db), tokens)

	a, created, err := svc.CreateAdmin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	if created {
		slog.Info("admin account created", slog.Int64("account_id", a.ID))
	} else {
		slog.Info("admin account already exists", slog.Int64("account_id", a.ID))
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報とクエリを取り除いてログ用の文字列にする。
// url.Userは"*"をエスケープするため、ユーザー情報部分は直接組み立てる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	userinfo := ""
	if u.User != nil {
		userinfo = "***@"
	}
	return u.Scheme + "://" + userinfo + u.Host + u.EscapedPath()
}
