package middleware

import (
	"context"
	"net/http"
)

// StoreChecker はデータストアの到達可否を判定するインターフェース。
type StoreChecker interface {
	Available(ctx context.Context) bool
}

// NewStoreAvailabilityMiddleware はデータストアに到達できない間、
// 後続のハンドラーを呼ばずに503を返すミドルウェアを返す。
func NewStoreAvailabilityMiddleware(checker StoreChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Available(r.Context()) {
				WriteServiceUnavailable(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
