package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Decision はAdmitの判定結果。
type Decision struct {
	// Allowed はリクエストを通過させる場合にtrue。
	Allowed bool
	// Count は加算後のカウンタ値。
	Count uint64
	// Limit はウィンドウあたりの上限。
	Limit uint64
}

// Remaining はウィンドウ内で残っているリクエスト数を返す。
func (d Decision) Remaining() uint64 {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// Config はLimiterの設定。
type Config struct {
	// MaxRequests はウィンドウあたりに許可するリクエスト数。
	MaxRequests uint64
	// Window はカウンタをリセットする間隔。
	Window time.Duration
}

// Limiter は固定ウィンドウ方式のレートリミッタ。
type Limiter struct {
	store  Store
	config Config
}

// New は新しいLimiterを生成する。
func New(store Store, config Config) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("storeが指定されていません")
	}
	if config.MaxRequests == 0 {
		return nil, errors.New("MaxRequestsは1以上を指定してください")
	}
	if config.Window <= 0 {
		return nil, fmt.Errorf("Windowが不正です: %s", config.Window)
	}
	return &Limiter{store: store, config: config}, nil
}

// Admit はクライアントのカウンタを加算し、通過可否を判定する。
// 拒否されたリクエストもカウンタに加算される。
func (l *Limiter) Admit(ctx context.Context, clientID string) (Decision, error) {
	count, err := l.store.Increment(ctx, clientID)
	if err != nil {
		return Decision{}, fmt.Errorf("カウンタの加算に失敗: %w", err)
	}
	return Decision{
		Allowed: count <= l.config.MaxRequests,
		Count:   count,
		Limit:   l.config.MaxRequests,
	}, nil
}

// Reset は全クライアントのカウンタを0に戻す。
func (l *Limiter) Reset(ctx context.Context) error {
	return l.store.ResetAll(ctx)
}

// Run はWindowごとに全カウンタをリセットする。ctxが終了するまでブロックする。
// バックグラウンドgoroutineとして呼び出されることを想定している。
// キーを自ら失効させるStoreの場合は、共有している他のLimiterのウィンドウを縮めないよう何もせずに戻る。
func (l *Limiter) Run(ctx context.Context) {
	if e, ok := l.store.(KeyExpirer); ok && e.ExpiresKeys() {
		log.Println("[RateLimit] ストアがキーの有効期限でウィンドウを管理するため、一括リセットは行いません")
		return
	}

	ticker := time.NewTicker(l.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Reset(ctx); err != nil {
				log.Printf("[RateLimit] カウンタのリセットに失敗: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close はストアを閉じる。
func (l *Limiter) Close() error {
	return l.store.Close()
}
