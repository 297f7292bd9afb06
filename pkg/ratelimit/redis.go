package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis はRedisでカウンタを保持するStore。
// 複数のGatewayインスタンスで同じ予算を共有する場合に使用する。
// カウンタは最初の加算からWindow経過で失効するため、一括リセットは不要。
type Redis struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// RedisConfig はRedis接続設定。
type RedisConfig struct {
	// Addr は host:port 形式の接続先。
	Addr string
	// Password は認証パスワード。
	Password string
	// DB はデータベース番号。
	DB int
	// Prefix はカウンタキーの接頭辞。空の場合は "ratelimit:"。
	Prefix string
	// Window はカウンタの有効期間。0以下の場合は1分。
	Window time.Duration
}

// ParseRedisConfig は "redis://" 形式のURLまたは host:port 形式の文字列から接続設定を作る。
// URLにパスワードやDB番号が含まれない場合はpasswordとdbを使用する。
func ParseRedisConfig(raw, password string, db int) (RedisConfig, error) {
	if !strings.Contains(raw, "://") {
		return RedisConfig{Addr: raw, Password: password, DB: db}, nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return RedisConfig{}, fmt.Errorf("RedisのURLが不正です: %w", err)
	}
	config := RedisConfig{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	if config.Password == "" {
		config.Password = password
	}
	if config.DB == 0 {
		config.DB = db
	}
	return config, nil
}

// NewRedis はRedisストアを生成し、疎通を確認する。
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.Prefix == "" {
		config.Prefix = "ratelimit:"
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}

	return &Redis{client: client, prefix: config.Prefix, window: config.Window}, nil
}

// Increment はINCRでカウンタを加算し、キーにまだ有効期限が無ければWindowを設定する。
// 有効期限はウィンドウ最初の加算で決まり、以降の加算では延長しない。
func (r *Redis) Increment(ctx context.Context, key string) (uint64, error) {
	fullKey := r.prefix + key

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("Redisカウンタの加算に失敗: %w", err)
	}

	n, err := incr.Uint64()
	if err != nil {
		return 0, fmt.Errorf("Redisカウンタの加算に失敗: %w", err)
	}
	return n, nil
}

// ExpiresKeys はKeyExpirerを実装する。
func (r *Redis) ExpiresKeys() bool {
	return true
}

// ResetAll は接頭辞に一致する全キーを削除する。
// 削除後の最初のINCRで1から数え直される。Limiter.Runからは呼ばれず、明示的なリセットにのみ使う。
func (r *Redis) ResetAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("Redisカウンタの削除に失敗: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("Redisキーの走査に失敗: %w", err)
	}
	return nil
}

// Close はRedisクライアントを閉じる。
func (r *Redis) Close() error {
	return r.client.Close()
}
