// Package middleware はHTTPミドルウェアとJSONレスポンスの書き込みを提供する。
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoapi/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// バリデーションエラーの場合はerrorsに違反一覧を含む。
type ErrorResponseBody struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Code    string             `json:"code,omitempty"`
	Errors  []model.FieldError `json:"errors,omitempty"`
}

// WriteJSON は任意のボディをJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", slog.String("error", err.Error()))
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, ErrorResponseBody{
		Success: false,
		Message: apiErr.Message,
		Code:    apiErr.Code,
		Errors:  apiErr.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteServiceUnavailable はデータストア到達不能の統一レスポンスを書き込む。
func WriteServiceUnavailable(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
}
