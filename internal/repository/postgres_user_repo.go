package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
// timeoutは1クエリあたりの上限時間で、0以下の場合はDefaultQueryTimeoutを使う。
func NewPostgresUserRepo(db *sql.DB, timeout time.Duration) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, timeout: timeout}
}

// Create はユーザーを作成する。
// 一意制約違反はErrDuplicateEmailに変換する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return wrapError("failed to insert user", err)
	}
	return nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("failed to find user by email", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(fmt.Sprintf("failed to find user by ID %s", id), err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
