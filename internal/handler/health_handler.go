package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/todoapi/internal/middleware"
)

// HealthHandler は稼働確認用のHTTPハンドラー。
type HealthHandler struct {
	store middleware.StoreChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(store middleware.StoreChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

// Index はAPIの稼働メッセージとエンドポイント一覧を返す。
// GET /
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Authentication & TODO API is running!",
		"endpoints": map[string]string{
			"register":   "POST /api/register",
			"login":      "POST /api/login",
			"me":         "GET /api/me",
			"createTodo": "POST /api/todos",
			"getTodos":   "GET /api/todos",
			"updateTodo": "PUT /api/todos/:id",
			"patchTodo":  "PATCH /api/todos/:id",
			"deleteTodo": "DELETE /api/todos/:id",
		},
	})
}

// Health はデータストアの到達可否を含む稼働状態を返す。
// データストアに到達できない場合は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.available(r.Context()) {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "down",
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "up",
	})
}

func (h *HealthHandler) available(ctx context.Context) bool {
	return h.store != nil && h.store.Available(ctx)
}
