package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoapi/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError([]model.FieldError{
		{Field: "name", Message: "name is required"},
		{Field: "email", Message: "please enter a valid email"},
	}))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Success {
		t.Error("success = true, want false")
	}
	if body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
	if body.Message != "name is required, please enter a valid email" {
		t.Errorf("message = %q", body.Message)
	}
	if len(body.Errors) != 2 || body.Errors[1].Field != "email" {
		t.Errorf("errors = %+v", body.Errors)
	}
}

// TestWriteErrorResponse_OmitsEmptyErrors はバリデーション以外のエラーでerrorsが出力されないことを検証する。
func TestWriteErrorResponse_OmitsEmptyErrors(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusNotFound, model.NewTodoNotFoundError())

	var raw map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if _, ok := raw["errors"]; ok {
		t.Errorf("errors should be omitted, got %v", raw["errors"])
	}
	if raw["message"] != "todo not found" {
		t.Errorf("message = %v", raw["message"])
	}
}

// TestWriteErrorResponse_DifferentStatusCodes は異なるステータスコードで正しく動作することを検証する。
func TestWriteErrorResponse_DifferentStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		apiErr     *model.APIError
	}{
		{"Unauthorized", http.StatusUnauthorized, model.NewUnauthenticatedError(model.MsgAccessTokenRequired)},
		{"NotFound", http.StatusNotFound, model.NewTodoNotFoundError()},
		{"Conflict", http.StatusConflict, model.NewDuplicateIdentityError()},
		{"Unavailable", http.StatusServiceUnavailable, model.NewServiceUnavailableError()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorResponse(w, tt.statusCode, tt.apiErr)

			resp := w.Result()
			if resp.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body.Code != tt.apiErr.Code {
				t.Errorf("code = %q, want %q", body.Code, tt.apiErr.Code)
			}
		})
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーで一般的なメッセージのみ返すことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Message != "something went wrong" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestWriteJSON_WritesPayload(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "count": 2})

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if raw["count"] != float64(2) {
		t.Errorf("count = %v, want 2", raw["count"])
	}
}
