package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoapi/internal/model"
)

type stubChecker bool

func (s stubChecker) Available(ctx context.Context) bool { return bool(s) }

func TestStoreAvailabilityMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		status    int
		called    bool
	}{
		{"available", true, http.StatusOK, true},
		{"unavailable", false, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewStoreAvailabilityMiddleware(stubChecker(tt.available))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/todos", nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if called != tt.called {
				t.Errorf("handler called = %v, want %v", called, tt.called)
			}
			if !tt.available {
				if body := decodeError(t, w); body.Code != model.ErrCodeServiceUnavailable {
					t.Errorf("code = %q, want %q", body.Code, model.ErrCodeServiceUnavailable)
				}
			}
		})
	}
}
