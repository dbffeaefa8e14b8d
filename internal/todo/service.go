// Package todo は所有者単位で分離されたTODO管理のドメインロジックを提供する。
// 更新・削除は所有者の一致を条件に含めた1回の操作で行い、
// 他ユーザーのTODOは存在しないものとして扱う。
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	"github.com/hitoshi/todoapi/internal/validation"
)

// フィールドごとの検証ルール
const (
	titleRule       = "required,max=200"
	descriptionRule = "max=1000"
)

// CreateInput はTODO作成の入力。
type CreateInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// Service はTODO管理のサービス層。
type Service struct {
	todos repository.TodoRepository
	now   func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(todos repository.TodoRepository) *Service {
	return &Service{todos: todos, now: time.Now}
}

// Create はownerIDを所有者とするTODOを作成する。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Todo, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = normalizeDescription(in.Description)

	if fields := validation.Struct(in); fields != nil {
		return nil, model.NewValidationError(fields)
	}

	now := s.now().UTC()
	todo := &model.Todo{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("TODOの作成に失敗しました: %w", err)
	}

	slog.Debug("TODOを作成しました",
		slog.String("user_id", ownerID),
		slog.String("todo_id", todo.ID),
	)

	return todo, nil
}

// ListForOwner はownerIDが所有するTODOを新しい順に返す。
// 1件もない場合は空スライスを返す。
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]*model.Todo, error) {
	todos, err := s.todos.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("TODO一覧の取得に失敗しました: %w", err)
	}
	if todos == nil {
		todos = []*model.Todo{}
	}
	return todos, nil
}

// Update はownerIDが所有するTODOに部分更新を適用し、更新後の値を返す。
// 存在しない場合と他ユーザー所有の場合はどちらもTODO_NOT_FOUNDになる。
func (s *Service) Update(ctx context.Context, ownerID, id string, patch model.TodoPatch) (*model.Todo, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	changes, fields := buildChanges(patch)
	if fields != nil {
		return nil, model.NewValidationError(fields)
	}
	changes.UpdatedAt = s.now().UTC()

	todo, err := s.todos.UpdateByIDAndOwner(ctx, id, ownerID, changes)
	if err != nil {
		return nil, fmt.Errorf("TODOの更新に失敗しました: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError()
	}

	return todo, nil
}

// Delete はownerIDが所有するTODOを削除し、削除したTODOを返す。
func (s *Service) Delete(ctx context.Context, ownerID, id string) (*model.Todo, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	todo, err := s.todos.DeleteByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("TODOの削除に失敗しました: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError()
	}

	slog.Debug("TODOを削除しました",
		slog.String("user_id", ownerID),
		slog.String("todo_id", todo.ID),
	)

	return todo, nil
}

// parseID はTODO IDを検証し、正規形（小文字ハイフン区切り）で返す。
func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", model.NewValidationError([]model.FieldError{
			{Field: "id", Message: "invalid todo id"},
		})
	}
	return parsed.String(), nil
}

// buildChanges は部分更新内容を検証し、リポジトリに渡す変更内容に変換する。
// 違反はすべてまとめて返す。
func buildChanges(patch model.TodoPatch) (repository.TodoChanges, []model.FieldError) {
	var changes repository.TodoChanges
	var fields []model.FieldError

	if patch.Title.Set {
		// nullは空文字と同じく必須違反になる
		title := strings.TrimSpace(patch.Title.Value)
		if fe := validation.Var("title", title, titleRule); fe != nil {
			fields = append(fields, fe...)
		}
		changes.SetTitle = true
		changes.Title = title
	}

	if patch.Description.Set {
		changes.SetDescription = true
		if !patch.Description.Null {
			changes.Description = normalizeDescription(&patch.Description.Value)
			if changes.Description != nil {
				if fe := validation.Var("description", *changes.Description, descriptionRule); fe != nil {
					fields = append(fields, fe...)
				}
			}
		}
	}

	if patch.Completed.Set {
		changes.SetCompleted = true
		// nullは既定値のfalseに戻す
		changes.Completed = !patch.Completed.Null && patch.Completed.Value
	}

	return changes, fields
}

// normalizeDescription は説明の前後空白を除去する。空になった場合はnilを返す。
func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*d)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
