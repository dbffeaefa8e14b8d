package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoapi/internal/metrics"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	UserFinder        middleware.UserFinder
	StoreChecker      middleware.StoreChecker

	// メトリクス（nilの場合は記録しない）
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// サービス
	AccountService AccountServiceInterface
	TokenIssuer    TokenIssuer
	TodoService    TodoServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	/api/register, /api/login: RateLimit(Auth, IP単位)
//	/api/me, /api/todos: AuthGuard → RateLimit(General, ユーザー単位) → StoreAvailability
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	var (
		authRecorder AuthEventRecorder
		todoRecorder TodoOperationRecorder
		rejections   middleware.TokenRejectionRecorder
	)
	if deps.Metrics != nil {
		authRecorder = deps.Metrics
		todoRecorder = deps.Metrics
		rejections = deps.Metrics
	}

	healthHandler := NewHealthHandler(deps.StoreChecker)
	authHandler := NewAuthHandler(deps.AccountService, deps.TokenIssuer, authRecorder)
	todoHandler := NewTodoHandler(deps.TodoService, todoRecorder)

	// --- 認証不要のルート ---
	r.Get("/", healthHandler.Index)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// 登録・ログイン（IP単位のレート制限）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: AuthGuard → RateLimit(General) → StoreAvailability
		// 制限超過のリクエストはデータストアの確認に進まない。
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.UserFinder, rejections))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewStoreAvailabilityMiddleware(deps.StoreChecker))

			r.Get("/me", authHandler.Me)

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", todoHandler.ListTodos)
				r.Post("/", todoHandler.CreateTodo)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", todoHandler.UpdateTodo)
					r.Patch("/", todoHandler.UpdateTodo)
					r.Delete("/", todoHandler.DeleteTodo)
				})
			})
		})
	})

	return r
}
