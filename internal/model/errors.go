// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// FieldError は1フィールド分のバリデーション違反を表す。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError は統一エラーフォーマットを表す。
// Categoryはハンドラー層でのHTTPステータス決定とログ分類に使う。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ（クライアントに返す）
	Category string       // カテゴリ: auth, validation, todo, system
	Fields   []FieldError // バリデーションエラー時の違反一覧
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeTodoNotFound       = "TODO_NOT_FOUND"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// 認証ガードが返すメッセージ。トークン欠落と無効トークンは区別するが、
// 無効トークンの理由（改ざん・期限切れ・形式不正）は区別しない。
const (
	MsgAccessTokenRequired = "access token required"
	MsgInvalidToken        = "invalid or expired token"
	MsgUserNotFound        = "user not found"
)

// NewValidationError はバリデーションエラーを生成する。
// 違反はすべてFieldsに含め、Messageは違反メッセージを連結したものになる。
func NewValidationError(fields []FieldError) *APIError {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  strings.Join(msgs, ", "),
		Category: "validation",
		Fields:   fields,
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "request body must be valid JSON",
		Category: "validation",
	}
}

// NewDuplicateIdentityError はメールアドレス重複エラーを生成する。
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  "user already exists with this email",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// 未登録メールとパスワード不一致で同じエラーを返し、登録有無を漏らさない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "invalid credentials",
		Category: "auth",
	}
}

// NewUnauthenticatedError は認証失敗エラーを生成する。
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  message,
		Category: "auth",
	}
}

// NewTodoNotFoundError はTODO未検出エラーを生成する。
// 他ユーザー所有のTODOもこのエラーになる。
func NewTodoNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  "todo not found",
		Category: "todo",
	}
}

// NewServiceUnavailableError はデータストア到達不能エラーを生成する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "database connection unavailable, please retry later",
		Category: "system",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "something went wrong",
		Category: "system",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "too many requests, please try again later",
		Category: "system",
	}
}

// NewRouteNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "Route not found",
		Category: "system",
	}
}

// NewMethodNotAllowedError は未対応メソッドでのアクセスエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "system",
	}
}
