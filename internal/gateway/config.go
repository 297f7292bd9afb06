package gateway

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// 開発用の署名鍵。本番環境では必ず環境変数で上書きすること。
const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Config はGatewayの起動設定。起動時に1度だけ読み込む。
type Config struct {
	// Port はリッスンポート。
	Port string `validate:"required,numeric"`
	// RateLimit はウィンドウあたりにクライアントへ許可するリクエスト数。
	RateLimit uint64 `validate:"gt=0"`
	// RateLimitWindow はレート制限カウンタのリセット間隔。
	RateLimitWindow time.Duration `validate:"gt=0"`
	// RequestTimeout は1リクエストあたりの制限時間。
	RequestTimeout time.Duration `validate:"gt=0"`
	// AccessTokenSecret はアクセストークンの署名鍵。
	AccessTokenSecret string `validate:"required"`
	// RefreshTokenSecret はリフレッシュトークンの署名鍵。アクセストークンと別の鍵にする。
	RefreshTokenSecret string `validate:"required,nefield=AccessTokenSecret"`
	// PaymentServiceURL は決済サービスのgRPC接続先。空の場合RPCブリッジは無効になる。
	PaymentServiceURL string
	// PaymentServiceHTTPURL は決済サービスのHTTP接続先。設定するとルート表に追加される。
	PaymentServiceHTTPURL string `validate:"omitempty,url"`
	// UserServiceURL はユーザーサービスのベースURL。
	UserServiceURL string `validate:"omitempty,url"`
	// StationServiceURL はステーションサービスのベースURL。
	StationServiceURL string `validate:"omitempty,url"`
	// RoutesFile はルート表のYAMLファイル。空の場合は各サービスURLから組み立てる。
	RoutesFile string `validate:"omitempty,file"`
	// RedisURL はレート制限カウンタを共有するRedis（redis://... または host:port）。
	// 空の場合はプロセス内で保持する。
	RedisURL string
	// RedisPassword はRedisのパスワード。
	RedisPassword string
	// RedisDB はRedisのデータベース番号。
	RedisDB int `validate:"gte=0"`
	// TokenDBPath はリフレッシュトークンを永続化するSQLiteファイル。空の場合はプロセス内で保持する。
	TokenDBPath string
	// RequireAuth はバックエンド向けルートでアクセストークンを要求するか。
	RequireAuth bool
	// CORSOrigins はCORSで許可するオリジン。
	CORSOrigins []string `validate:"dive,required"`
	// TrustedProxies はX-Forwarded-Forを信頼するプロキシのIPまたはCIDR。
	TrustedProxies []string `validate:"dive,ip|cidr"`
}

// LoadConfig は環境変数から設定を読み込み、検証する。
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:                  getEnvOr("PORT", "3005"),
		AccessTokenSecret:     getEnvOr("ACCESS_TOKEN_SECRET", devAccessSecret),
		RefreshTokenSecret:    getEnvOr("REFRESH_TOKEN_SECRET", devRefreshSecret),
		PaymentServiceURL:     os.Getenv("PAYMENT_SERVICE_URL"),
		PaymentServiceHTTPURL: os.Getenv("PAYMENT_SERVICE_HTTP_URL"),
		UserServiceURL:        getEnvOr("USER_SERVICE_URL", "http://localhost:3001"),
		StationServiceURL:     getEnvOr("STATION_SERVICE_URL", "http://localhost:3002"),
		RoutesFile:            os.Getenv("ROUTES_FILE"),
		RedisURL:              os.Getenv("REDIS_URL"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		TokenDBPath:           os.Getenv("TOKEN_DB_PATH"),
		CORSOrigins:           splitList(getEnvOr("CORS_ORIGINS", "*")),
		TrustedProxies:        splitList(os.Getenv("TRUSTED_PROXIES")),
	}

	var err error
	if cfg.RateLimit, err = strconv.ParseUint(getEnvOr("RATELIMIT", "100"), 10, 64); err != nil {
		return Config{}, fmt.Errorf("RATELIMITが不正です: %w", err)
	}
	if cfg.RateLimitWindow, err = parseMillis(getEnvOr("RATELIMIT_WINDOW", "60000")); err != nil {
		return Config{}, fmt.Errorf("RATELIMIT_WINDOWが不正です: %w", err)
	}
	if cfg.RequestTimeout, err = parseMillis(getEnvOr("REQUEST_TIMEOUT", "15000")); err != nil {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUTが不正です: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnvOr("REDIS_DB", "0")); err != nil {
		return Config{}, fmt.Errorf("REDIS_DBが不正です: %w", err)
	}
	if cfg.RequireAuth, err = strconv.ParseBool(getEnvOr("REQUIRE_AUTH", "true")); err != nil {
		return Config{}, fmt.Errorf("REQUIRE_AUTHが不正です: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenSecret == devAccessSecret || cfg.RefreshTokenSecret == devRefreshSecret {
		log.Println("[Gateway] 開発用の署名鍵を使用しています。本番環境ではACCESS_TOKEN_SECRETとREFRESH_TOKEN_SECRETを設定してください")
	}
	return cfg, nil
}

// Validate は設定値を検証する。
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	return nil
}

// parseMillis はミリ秒の整数をDurationに変換する。
func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
