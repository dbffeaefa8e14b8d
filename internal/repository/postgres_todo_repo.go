package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
)

const todoColumns = `id, owner_id, title, description, completed, created_at, updated_at`

// PostgresTodoRepo はPostgreSQLを使用したTODOリポジトリ。
type PostgresTodoRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB, timeout time.Duration) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db, timeout: timeout}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(s rowScanner) (*model.Todo, error) {
	todo := &model.Todo{}
	var description sql.NullString
	if err := s.Scan(
		&todo.ID, &todo.OwnerID, &todo.Title, &description,
		&todo.Completed, &todo.CreatedAt, &todo.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		todo.Description = &description.String
	}
	return todo, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create はTODOを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, owner_id, title, description, completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		todo.ID, todo.OwnerID, todo.Title, nullString(todo.Description),
		todo.Completed, todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		return wrapError("failed to insert todo", err)
	}
	return nil
}

// ListByOwner は所有者のTODOをcreated_at降順で返す。
// 同時刻の作成はid降順で並べ、順序を安定させる。
func (r *PostgresTodoRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Todo, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+`
		 FROM todos
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, wrapError("failed to list todos", err)
	}
	defer rows.Close()

	todos := make([]*model.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, wrapError("failed to scan todo", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("failed to iterate todos", err)
	}
	return todos, nil
}

// UpdateByIDAndOwner はIDと所有者が一致するTODOを1文のUPDATEで更新する。
// 一致する行がない場合はnilを返す。
func (r *PostgresTodoRepo) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, changes TodoChanges) (*model.Todo, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`UPDATE todos SET
		    title       = CASE WHEN $3::boolean THEN $4 ELSE title END,
		    description = CASE WHEN $5::boolean THEN $6 ELSE description END,
		    completed   = CASE WHEN $7::boolean THEN $8::boolean ELSE completed END,
		    updated_at  = $9
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+todoColumns,
		id, ownerID,
		changes.SetTitle, changes.Title,
		changes.SetDescription, nullString(changes.Description),
		changes.SetCompleted, changes.Completed,
		changes.UpdatedAt,
	)

	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("failed to update todo", err)
	}
	return todo, nil
}

// DeleteByIDAndOwner はIDと所有者が一致するTODOを1文のDELETEで削除し、削除直前の値を返す。
// 一致する行がない場合はnilを返す。
func (r *PostgresTodoRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Todo, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND owner_id = $2 RETURNING `+todoColumns,
		id, ownerID,
	)

	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError("failed to delete todo", err)
	}
	return todo, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
