// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Emailは正規化済み（前後空白除去・小文字化）の値を保持する。
// PasswordHashは外部に出してはならないため、JSONタグで明示的に除外する。
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
