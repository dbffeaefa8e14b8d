package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/todoapi/internal/account"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// 認証イベントのメトリクスラベル
const (
	eventRegister = "register"
	eventLogin    = "login"

	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// AccountServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, in account.RegisterInput) (*model.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*model.User, error)
}

// TokenIssuer はユーザーIDからセッショントークンを発行する。
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// AuthEventRecorder は登録・ログインの結果を記録する。
type AuthEventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// AuthHandler は登録・ログイン・現在ユーザー取得のHTTPハンドラー。
type AuthHandler struct {
	accounts AccountServiceInterface
	tokens   TokenIssuer
	recorder AuthEventRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(accounts AccountServiceInterface, tokens TokenIssuer, recorder AuthEventRecorder) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		recorder: recorder,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse は登録・ログイン成功時のレスポンス。
type sessionResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

// Register はユーザーを登録し、セッショントークンを返す。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.record(eventRegister, outcomeOf(err))
		handleServiceError(w, err)
		return
	}

	h.writeSession(w, http.StatusCreated, eventRegister, "User registered successfully", user)
}

// Login はメールアドレスとパスワードを照合し、セッショントークンを返す。
// 未登録と不一致はどちらも同じ401を返し、理由はログにのみ残す。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if fields := validation.Struct(req); fields != nil {
		h.record(eventLogin, outcomeRejected)
		handleServiceError(w, model.NewValidationError(fields))
		return
	}

	user, err := h.accounts.VerifyCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrUnknownEmail) || errors.Is(err, account.ErrPasswordMismatch) {
			slog.Warn("login rejected", slog.String("reason", err.Error()))
			h.record(eventLogin, outcomeRejected)
			handleServiceError(w, model.NewInvalidCredentialsError())
			return
		}
		h.record(eventLogin, outcomeError)
		handleServiceError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, eventLogin, "Login successful", user)
}

// Me は認証済みユーザーの情報を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthenticatedError(model.MsgAccessTokenRequired))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    toUserResponse(user),
	})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, event, message string, user *model.User) {
	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.record(event, outcomeError)
		handleServiceError(w, err)
		return
	}

	h.record(event, outcomeSuccess)
	middleware.WriteJSON(w, status, sessionResponse{
		Success:   true,
		Message:   message,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserResponse(user),
	})
}

func (h *AuthHandler) record(event, outcome string) {
	if h.recorder != nil {
		h.recorder.RecordAuthEvent(event, outcome)
	}
}

// outcomeOf はサービスエラーをメトリクスの結果ラベルに分類する。
func outcomeOf(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return outcomeRejected
	}
	return outcomeError
}
