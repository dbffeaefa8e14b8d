package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/todoapi/internal/auth"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var principalContextKey = contextKey("principal")

// トークン拒否理由。ログとメトリクスにのみ使い、クライアントには返さない。
const (
	RejectMissing      = "missing"
	RejectMalformed    = "malformed"
	RejectBadSignature = "bad_signature"
	RejectExpired      = "expired"
	RejectUnknownUser  = "unknown_user"
)

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserFinder はユーザーの検索に必要なインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// TokenRejectionRecorder はトークン拒否を記録するインターフェース。
type TokenRejectionRecorder interface {
	RecordTokenRejection(reason string)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークン欠落、トークン無効、ユーザー不在はそれぞれ異なるメッセージの401を返す。
// 無効トークンの具体的な理由はログとメトリクスにのみ残す。
func NewAuthMiddleware(verifier TokenVerifier, users UserFinder, recorder TokenRejectionRecorder) func(next http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, reason, message string) {
		slog.Warn("token rejected",
			slog.String("reason", reason),
			slog.String("path", r.URL.Path),
		)
		if recorder != nil {
			recorder.RecordTokenRejection(reason)
		}
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError(message))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			token, ok := BearerToken(r)
			if !ok {
				reject(w, r, RejectMissing, model.MsgAccessTokenRequired)
				return
			}

			// 2. 署名と有効期限を検証
			claims, err := verifier.Verify(token)
			if err != nil {
				reject(w, r, rejectionReason(err), model.MsgInvalidToken)
				return
			}

			// 3. トークンのユーザーが現存するか確認
			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				slog.Error("failed to find user for token",
					slog.String("user_id", claims.UserID),
					slog.String("error", err.Error()),
				)
				if errors.Is(err, repository.ErrStoreUnavailable) {
					WriteServiceUnavailable(w)
					return
				}
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				reject(w, r, RejectUnknownUser, model.MsgUserNotFound)
				return
			}

			// 4. 認証済みユーザーをコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), user)))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return RejectExpired
	case errors.Is(err, auth.ErrTokenBadSignature):
		return RejectBadSignature
	default:
		return RejectMalformed
	}
}

// PrincipalFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(principalContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := PrincipalFromContext(ctx)
	if !ok || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithPrincipal はコンテキストに認証済みユーザーを注入する。
// リクエストログ用の状態があれば、そこにもユーザーIDを記録する。
func ContextWithPrincipal(ctx context.Context, user *model.User) context.Context {
	if st := requestStateFrom(ctx); st != nil {
		st.userID = user.ID
	}
	return context.WithValue(ctx, principalContextKey, user)
}
