package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"
)

// DefaultQueryTimeout はデータストア往復1回あたりの既定の上限時間。
const DefaultQueryTimeout = 5 * time.Second

var (
	// ErrStoreUnavailable はデータストアに到達できない、または応答が期限内に返らなかったことを表す。
	// 呼び出し側は時間をおいて再試行できる。
	ErrStoreUnavailable = errors.New("data store unavailable")

	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already registered")
)

// PostgreSQLのエラーコード
const (
	pqUniqueViolation       = "23505"
	pqClassConnectionFailed = "08"
	pqAdminShutdown         = "57P01"
	pqCannotConnectNow      = "57P03"
)

// withTimeout はクエリ用のタイムアウト付きコンテキストを返す。
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// wrapError はドライバーエラーを分類してラップする。
// 接続断・タイムアウトはErrStoreUnavailableとして扱う。
func wrapError(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code.Class()) == pqClassConnectionFailed {
			return true
		}
		switch string(pqErr.Code) {
		case pqAdminShutdown, pqCannotConnectNow:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
