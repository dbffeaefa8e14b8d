// Package app はアプリケーションの初期化・依存関係の組み立て・サブコマンドの実行を提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/todoapi/internal/account"
	"github.com/hitoshi/todoapi/internal/auth"
	"github.com/hitoshi/todoapi/internal/config"
	"github.com/hitoshi/todoapi/internal/database"
	"github.com/hitoshi/todoapi/internal/handler"
	"github.com/hitoshi/todoapi/internal/logger"
	"github.com/hitoshi/todoapi/internal/metrics"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/repository"
	"github.com/hitoshi/todoapi/internal/todo"
)

// shutdownTimeout はグレースフルシャットダウンの上限時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// SIGINTまたはSIGTERMを受信するまで動作する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return RunContext(ctx, w, args)
}

// RunContext はコマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// serveモードはctxがキャンセルされるとグレースフルシャットダウンする。
func RunContext(ctx context.Context, w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

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
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// データベースに到達できなくても起動し、到達できるまでTODO系のルートは503を返す。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続（再試行付き）
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.ConnectOptions{
		MaxRetries:  uint64(max(cfg.DBConnectRetries, 0)),
		PingTimeout: cfg.DBTimeout,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	reachable := err == nil
	if !reachable {
		slog.Warn("starting without database; data routes return 503 until it becomes reachable",
			slog.String("error", err.Error()),
		)
	}

	// 2. 依存関係の組み立て
	srv, err := newServer(cfg, db)
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	// 起動時に到達できればここでマイグレーションする。
	// 到達できなかった場合は最初の到達確認の成功時にstoreが実行する。
	if reachable {
		slog.Info("database connection established")
		if err := srv.store.Setup(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	// 3. HTTPサーバーの起動
	ln, err := net.Listen("tcp", srv.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.http.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := srv.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// server は組み立て済みのHTTPサーバーと、停止が必要な部品をまとめる。
type server struct {
	http        *http.Server
	rateLimiter *middleware.RateLimiter
	store       *database.Checker
}

// newServer はリポジトリ・サービス・ミドルウェアを組み立て、HTTPサーバーを返す。
func newServer(cfg *config.Config, db *sql.DB) (*server, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db, cfg.DBTimeout)
	todoRepo := repository.NewPostgresTodoRepo(db, cfg.DBTimeout)

	// 2. 認証部品の初期化
	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL)

	// 3. ドメインサービスの初期化
	accountService := account.NewService(userRepo, hasher)
	todoService := todo.NewService(todoRepo)

	// 4. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 5. データストアの到達確認（初回成功時にマイグレーション）
	store := database.NewChecker(db, cfg.DBTimeout).WithSetup(database.MigrationSetup(cfg.DatabaseURL))

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TokenVerifier:     tokens,
		UserFinder:        accountService,
		StoreChecker:      store,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		AccountService:    accountService,
		TokenIssuer:       tokens,
		TodoService:       todoService,
	})

	return &server{
		http: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		rateLimiter: rateLimiter,
		store:       store,
	}, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
