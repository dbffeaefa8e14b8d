// Package account はユーザー登録と資格情報の照合を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todoapi/internal/auth"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	"github.com/hitoshi/todoapi/internal/validation"
)

var (
	// ErrUnknownEmail は未登録のメールアドレスでログインしようとしたことを表す。
	ErrUnknownEmail = errors.New("unknown email")
	// ErrPasswordMismatch はパスワードが一致しなかったことを表す。
	ErrPasswordMismatch = errors.New("password mismatch")
)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Normalize は名前の前後空白を除去し、メールアドレスを小文字化する。
// パスワードは一切変更しない。
func (in RegisterInput) Normalize() RegisterInput {
	return RegisterInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    NormalizeEmail(in.Email),
		Password: in.Password,
	}
}

// NormalizeEmail は保存・検索に使うメールアドレスの正規形を返す。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Service は資格情報ストアのサービス層。
type Service struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, hasher auth.PasswordHasher) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register は入力を正規化・検証し、ハッシュ化したパスワードでユーザーを作成する。
// 検証違反はすべてまとめてバリデーションエラーとして返す。
// メールアドレスの重複はデータストアの一意制約で検出する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in = in.Normalize()

	fields := validation.Struct(in)
	if len(in.Password) > auth.MaxPasswordBytes {
		fields = append(fields, model.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("password cannot exceed %d bytes", auth.MaxPasswordBytes),
		})
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateIdentityError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました", slog.String("user_id", user.ID))

	return user, nil
}

// VerifyCredentials はメールアドレスとパスワードを照合し、一致したユーザーを返す。
// 未登録の場合もダミーの照合を行い、応答時間から登録有無を推測できないようにする。
// 未登録はErrUnknownEmail、不一致はErrPasswordMismatchを返す。
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	if user == nil {
		s.hasher.CompareDummy(ctx, password)
		return nil, ErrUnknownEmail
	}

	ok, err := s.hasher.Compare(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("パスワードの照合に失敗しました: %w", err)
	}
	if !ok {
		return nil, ErrPasswordMismatch
	}

	return user, nil
}

// FindByID は指定IDのユーザーを返す。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}
