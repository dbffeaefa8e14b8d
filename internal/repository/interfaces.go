// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	// 一意性はデータストアの一意インデックスで保証する。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail は正規化済みメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// TodoChanges はTODO更新時に適用する変更内容。
// SetXxxがfalseのフィールドは既存値を維持する。
type TodoChanges struct {
	SetTitle       bool
	Title          string
	SetDescription bool
	Description    *string // nilはNULLで上書き
	SetCompleted   bool
	Completed      bool
	UpdatedAt      time.Time
}

// TodoRepository はTODOデータの永続化インターフェース。
// 更新・削除はすべて「IDかつ所有者」の複合条件で1回のアトミック操作として行い、
// 存在確認と所有者確認を分けない。
type TodoRepository interface {
	// Create はTODOを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// ListByOwner は所有者のTODOをcreated_at降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Todo, error)

	// UpdateByIDAndOwner はIDと所有者が一致するTODOを更新し、更新後の値を返す。
	// 一致する行がない場合はnilを返す。
	UpdateByIDAndOwner(ctx context.Context, id, ownerID string, changes TodoChanges) (*model.Todo, error)

	// DeleteByIDAndOwner はIDと所有者が一致するTODOを削除し、削除直前の値を返す。
	// 一致する行がない場合はnilを返す。
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Todo, error)
}
