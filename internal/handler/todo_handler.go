package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/todo"
)

// TodoServiceInterface はTODOハンドラーが必要とするサービスインターフェース。
// すべての操作は認証済みユーザーのIDを所有者として受け取る。
type TodoServiceInterface interface {
	Create(ctx context.Context, ownerID string, in todo.CreateInput) (*model.Todo, error)
	ListForOwner(ctx context.Context, ownerID string) ([]*model.Todo, error)
	Update(ctx context.Context, ownerID, id string, patch model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, ownerID, id string) (*model.Todo, error)
}

// TodoOperationRecorder は成功したTODO操作を記録する。
type TodoOperationRecorder interface {
	RecordTodoOperation(op string)
}

// TodoHandler はTODO管理のHTTPハンドラー。
type TodoHandler struct {
	service  TodoServiceInterface
	recorder TodoOperationRecorder
}

// NewTodoHandler はTodoHandlerを生成する。recorderはnilでもよい。
func NewTodoHandler(service TodoServiceInterface, recorder TodoOperationRecorder) *TodoHandler {
	return &TodoHandler{
		service:  service,
		recorder: recorder,
	}
}

// todoListResponse はTODO一覧のレスポンス。
type todoListResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Todos   []todoResponse `json:"todos"`
}

// todoResultResponse は作成・更新・削除のレスポンス。
type todoResultResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Todo    todoResponse `json:"todo"`
}

// ListTodos は認証済みユーザーのTODO一覧を新しい順に返す。
// GET /api/todos
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	todos, err := h.service.ListForOwner(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := todoListResponse{
		Success: true,
		Count:   len(todos),
		Todos:   make([]todoResponse, len(todos)),
	}
	for i, t := range todos {
		resp.Todos[i] = toTodoResponse(t)
	}

	h.record("list")
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// CreateTodo はTODOを作成する。
// POST /api/todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req todo.CreateInput
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), ownerID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.record("create")
	middleware.WriteJSON(w, http.StatusCreated, todoResultResponse{
		Success: true,
		Message: "TODO created successfully",
		Todo:    toTodoResponse(created),
	})
}

// UpdateTodo はリクエストに含まれるフィールドだけを更新する。
// PUT /api/todos/{id}, PATCH /api/todos/{id}
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var patch model.TodoPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), ownerID, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.record("update")
	middleware.WriteJSON(w, http.StatusOK, todoResultResponse{
		Success: true,
		Message: "TODO updated successfully",
		Todo:    toTodoResponse(updated),
	})
}

// DeleteTodo はTODOを削除し、削除直前の内容を返す。
// DELETE /api/todos/{id}
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.record("delete")
	middleware.WriteJSON(w, http.StatusOK, todoResultResponse{
		Success: true,
		Message: "TODO deleted successfully",
		Todo:    toTodoResponse(deleted),
	})
}

// ownerID はコンテキストから認証済みユーザーのIDを取り出す。
// 取り出せない場合は401を書き込みfalseを返す。
func (h *TodoHandler) ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthenticatedError(model.MsgAccessTokenRequired))
		return "", false
	}
	return userID, true
}

func (h *TodoHandler) record(op string) {
	if h.recorder != nil {
		h.recorder.RecordTodoOperation(op)
	}
}
