package ratelimit

import "context"

// Store はクライアント単位のカウンタを保持するストレージ。
// 実装は並行アクセスに対して安全でなければならない。
type Store interface {
	// Increment はキーのカウンタを1加算し、加算後の値を返す。
	// キーが存在しない場合は1で作成する。
	Increment(ctx context.Context, key string) (uint64, error)
	// ResetAll は全キーのカウンタを0に戻す。
	ResetAll(ctx context.Context) error
	// Close はストレージが保持するリソースを解放する。
	Close() error
}

// KeyExpirer はウィンドウ終了時にキーを自ら失効させるStoreが実装する。
// このStoreに対してLimiter.Runは一括リセットを行わない。
type KeyExpirer interface {
	// ExpiresKeys はキーがウィンドウ終了時に自動で失効する場合にtrueを返す。
	ExpiresKeys() bool
}
