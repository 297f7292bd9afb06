package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// RefreshStore はリフレッシュトークンのアクティブセット。
// 実装は並行アクセスに対して安全でなければならない。
type RefreshStore interface {
	// Add はトークンをアクティブセットに登録する。
	Add(ctx context.Context, token, subject string, issuedAt time.Time) error
	// Contains はトークンがアクティブセットに含まれるかを返す。
	Contains(ctx context.Context, token string) (bool, error)
	// Remove はトークンをアクティブセットから除去する。存在しなくてもエラーにしない。
	Remove(ctx context.Context, token string) error
}

// fingerprint はトークン文字列そのものを保持しないためのキーを返す。
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryStore はプロセス内で保持するアクティブセット。
type MemoryStore struct {
	mu     sync.RWMutex
	active map[string]string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]string)}
}

// Add はトークンを登録する。
func (m *MemoryStore) Add(_ context.Context, token, subject string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active[fingerprint(token)] = subject
	return nil
}

// Contains はトークンが登録済みかを返す。
func (m *MemoryStore) Contains(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.active[fingerprint(token)]
	return ok, nil
}

// Remove はトークンを除去する。
func (m *MemoryStore) Remove(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, fingerprint(token))
	return nil
}
