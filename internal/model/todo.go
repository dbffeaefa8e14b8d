// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Todo はユーザーが所有するTODOを表す。
// OwnerIDは作成時に認証済みユーザーのIDが設定され、以後変更されない。
type Todo struct {
	ID          string
	OwnerID     string
	Title       string
	Description *string // nilは未設定
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Optional はPATCH系リクエストの1フィールドを表す。
// 「フィールドが存在しない」「nullが明示された」「値が指定された」の3状態を区別する。
type Optional[T any] struct {
	Set   bool // JSONにキーが存在した
	Null  bool // 値がnullだった
	Value T
}

// Some は値が指定されたOptionalを返す。
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null はnullが明示されたOptionalを返す。
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
// キーが存在しない場合は呼ばれないため、Setはfalseのまま残る。
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// TodoPatch はTODOの部分更新内容を表す。
// Setがfalseのフィールドは変更しない。
type TodoPatch struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Completed   Optional[bool]   `json:"completed"`
}

// IsEmpty は変更対象のフィールドが1つもない場合にtrueを返す。
func (p TodoPatch) IsEmpty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Completed.Set
}
