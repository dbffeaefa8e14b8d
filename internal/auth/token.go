// Package auth は認証プリミティブ（パスワードハッシュとアクセストークン）を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークン検証の失敗理由。ログとメトリクスでのみ区別し、
// クライアントには同一の認証エラーとして返すこと。
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// Claims はアクセストークンに埋め込むクレーム。
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService は自己完結型のアクセストークン（HS256 JWT）を発行・検証する。
// サーバー側にセッション表を持たないため、失効は有効期限切れか
// シークレットのローテーションでのみ起こる。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
// secretは起動時に1回だけ読み込んだ値を渡し、以後変更しないこと。
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock は時刻関数を差し替えたコピーを返す。テスト用。
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はユーザーIDに対するアクセストークンを発行する。
// 返す有効期限はトークンに埋め込まれた値（秒精度）と一致する。
func (s *TokenService) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user ID is required to issue a token")
	}

	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 失敗時はErrTokenMalformed、ErrTokenBadSignature、ErrTokenExpiredのいずれかを返す。
// 署名検証は期限検証より先に行うため、改ざんされた期限切れトークンはBadSignatureになる。
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId claim", ErrTokenMalformed)
	}

	// now >= exp を期限切れとする
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}
