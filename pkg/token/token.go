package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL はアクセストークンの有効期間。
	AccessTokenTTL = 15 * time.Minute
	// issuer はトークンのissクレーム。
	issuer = "stationgate"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	// ErrUnauthenticated はトークンが提示されなかったことを表す。
	ErrUnauthenticated = errors.New("トークンが提示されていません")
	// ErrForbidden はトークンが無効・期限切れ・失効済みのいずれかであることを表す。
	// 呼び出し元に理由を区別させないため、原因はラップしない。
	ErrForbidden = errors.New("トークンが無効です")
)

// Claims はGatewayが発行するJWTのクレーム。
type Claims struct {
	jwt.RegisteredClaims
	// Type は "access" または "refresh"。
	Type string `json:"typ"`
}

// Subject は検証済みトークンが表す利用者。
type Subject struct {
	// Name はログイン時に指定されたユーザー名。
	Name string
	// TokenID はトークンのjti。
	TokenID string
}

// Pair はログイン時に発行されるトークンの組。
type Pair struct {
	// AccessToken は有効期限付きのアクセストークン。
	AccessToken string `json:"accessToken"`
	// RefreshToken はアクセストークン再発行用のトークン。
	RefreshToken string `json:"refreshToken"`
}

// Service はトークンの発行・検証・失効を行う。
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	store         RefreshStore
	now           func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを生成する。
// アクセストークンとリフレッシュトークンは別々の秘密鍵で署名する。
func NewService(accessSecret, refreshSecret string, store RefreshStore, opts ...Option) (*Service, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("トークンの署名鍵が設定されていません")
	}
	if store == nil {
		return nil, errors.New("リフレッシュトークンストアが設定されていません")
	}
	s := &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		store:         store,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login はユーザー名に対してアクセストークンとリフレッシュトークンを発行する。
// リフレッシュトークンはアクティブセットに登録される。
func (s *Service) Login(ctx context.Context, username string) (Pair, error) {
	if username == "" {
		return Pair{}, errors.New("ユーザー名が空です")
	}

	access, err := s.issueAccess(username)
	if err != nil {
		return Pair{}, err
	}

	now := s.now()
	refreshClaims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
		},
		Type: typeRefresh,
	}
	refresh, err := sign(refreshClaims, s.refreshSecret)
	if err != nil {
		return Pair{}, err
	}

	if err := s.store.Add(ctx, refresh, username, now); err != nil {
		return Pair{}, fmt.Errorf("リフレッシュトークンの登録に失敗: %w", err)
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
// リフレッシュトークン自体はローテーションしない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrUnauthenticated
	}

	claims, err := s.parse(refreshToken, s.refreshSecret, typeRefresh)
	if err != nil {
		return "", err
	}

	active, err := s.store.Contains(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("アクティブセットの参照に失敗: %w", err)
	}
	if !active {
		return "", ErrForbidden
	}

	return s.issueAccess(claims.Subject)
}

// Logout はリフレッシュトークンをアクティブセットから除去する。
// 登録されていないトークンを指定してもエラーにしない。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.store.Remove(ctx, refreshToken); err != nil {
		return fmt.Errorf("リフレッシュトークンの除去に失敗: %w", err)
	}
	return nil
}

// VerifyAccess はアクセストークンを検証し、利用者を返す。
func (s *Service) VerifyAccess(tokenString string) (Subject, error) {
	if tokenString == "" {
		return Subject{}, ErrUnauthenticated
	}
	claims, err := s.parse(tokenString, s.accessSecret, typeAccess)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Name: claims.Subject, TokenID: claims.ID}, nil
}

func (s *Service) issueAccess(username string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			Issuer:    issuer,
		},
		Type: typeAccess,
	}
	return sign(claims, s.accessSecret)
}

// parse は署名・期限・種別を検証する。失敗理由はすべてErrForbiddenにまとめる。
func (s *Service) parse(tokenString string, secret []byte, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrForbidden
	}
	if claims.Type != wantType || claims.Subject == "" {
		return nil, ErrForbidden
	}
	return claims, nil
}

func sign(claims Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}
