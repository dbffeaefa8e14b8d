package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// ErrEmptyPassword は空パスワードをハッシュしようとした場合に返る。
var ErrEmptyPassword = errors.New("password cannot be empty")

// MaxPasswordBytes はbcryptが扱える入力の最大バイト数。
const MaxPasswordBytes = 72

// dummyPassword はダミーハッシュ生成用の値。照合に成功することはない。
const dummyPassword = "todoapi-dummy-password-never-matches"

// PasswordHasher はパスワードのハッシュ化と照合を提供する。
type PasswordHasher interface {
	// Hash はソルト付きの一方向ハッシュを生成する。
	Hash(ctx context.Context, password string) (string, error)

	// Compare はパスワードがハッシュと一致するか判定する。
	// 一致すれば(true, nil)、不一致なら(false, nil)、ハッシュが壊れていればエラーを返す。
	Compare(ctx context.Context, hash, password string) (bool, error)

	// CompareDummy は必ず不一致になる照合を同じコストで実行する。
	// 未登録ユーザーのログインでも応答時間を揃えるために使う。
	CompareDummy(ctx context.Context, password string)
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
// CPUを占有する処理のため、同時実行数をセマフォで制限する。
type BcryptHasher struct {
	cost      int
	sem       *semaphore.Weighted
	dummyHash []byte
}

// NewBcryptHasher はBcryptHasherを生成する。
// costが範囲外の場合はbcrypt.DefaultCost、concurrencyが1未満の場合はGOMAXPROCSを使う。
func NewBcryptHasher(cost, concurrency int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &BcryptHasher{
		cost:      cost,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		dummyHash: dummy,
	}, nil
}

// Hash はパスワードのbcryptハッシュを生成する。
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	release := h.acquire(ctx)
	defer release()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare はbcryptの定数時間比較でパスワードを照合する。
func (h *BcryptHasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	release := h.acquire(ctx)
	defer release()

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password hash: %w", err)
}

// CompareDummy はダミーハッシュとの照合を行い、結果を捨てる。
func (h *BcryptHasher) CompareDummy(ctx context.Context, password string) {
	release := h.acquire(ctx)
	defer release()

	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// acquire はハッシュ処理の実行枠を確保する。
// 照合処理は途中キャンセルしないため、呼び出し元のキャンセルは引き継がない。
func (h *BcryptHasher) acquire(ctx context.Context) func() {
	// キャンセルされないコンテキストではAcquireはエラーを返さない
	_ = h.sem.Acquire(context.WithoutCancel(ctx), 1)
	return func() { h.sem.Release(1) }
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
